// Package output renders a store.WideFrame to a stream in one of a small
// set of formats. CLI presentation is a thin concern with no dedicated
// third-party rendering library to reach for, so this stays on
// encoding/json, encoding/csv, and text/tabwriter (see DESIGN.md).
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/datons/esios-go/internal/store"
)

// Format is one of the supported rendering formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV Format = "csv"
	FormatTable Format = "table"
)

// row is the JSON shape for one timestamp's worth of values.
type row struct {
	Time string `json:"time"`
	Values map[string]float64 `json:"values"`
}

// WriteFrame renders f to w in the given format, presenting timestamps in
// loc.
func WriteFrame(w io.Writer, f *store.WideFrame, format Format, loc *time.Location) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, f, loc)
	case FormatTable:
		return writeTable(w, f, loc)
	default:
		return writeJSON(w, f, loc)
	}
}

func writeJSON(w io.Writer, f *store.WideFrame, loc *time.Location) error {
	enc := json.NewEncoder(w)
	rows := make([]row, 0, len(f.Index))
	for i, t := range f.Index {
		values := make(map[string]float64, len(f.Columns))
		for _, c := range f.Columns {
			if v, ok := f.Get(i, c); ok {
				values[c] = v
			}
		}
		rows = append(rows, row{Time: t.In(loc).Format(time.RFC3339), Values: values})
	}
	return enc.Encode(rows)
}

func writeCSV(w io.Writer, f *store.WideFrame, loc *time.Location) error {
	cw := csv.NewWriter(w)
	header := append([]string{"time"}, f.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, t := range f.Index {
		record := make([]string, 0, len(f.Columns)+1)
		record = append(record, t.In(loc).Format(time.RFC3339))
		for _, c := range f.Columns {
			if v, ok := f.Get(i, c); ok {
				record = append(record, fmt.Sprintf("%g", v))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, f *store.WideFrame, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\t"+joinTab(f.Columns))
	for i, t := range f.Index {
		cells := make([]string, 0, len(f.Columns))
		for _, c := range f.Columns {
			if v, ok := f.Get(i, c); ok {
				cells = append(cells, fmt.Sprintf("%g", v))
			} else {
				cells = append(cells, "-")
			}
		}
		fmt.Fprintln(tw, t.In(loc).Format(time.RFC3339)+"\t"+joinTab(cells))
	}
	return tw.Flush()
}

func joinTab(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += "\t"
		}
		out += f
	}
	return out
}
