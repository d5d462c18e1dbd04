// Package parquetio persists store.WideFrame values to and from on-disk
// Parquet files. Wide frames have a variable, per-item column set (one
// column per geo breakdown), so a fixed Go struct schema won't do; instead
// each write builds a JSON schema string describing that frame's exact
// columns and drives xitongsys/parquet-go's JSONWriter/reader with it,
// shaping the encoder from data discovered at runtime rather than a
// compile-time struct.
package parquetio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/datons/esios-go/internal/store"
)

const timestampField = "ts"

// schemaFor builds a parquet-go JSON schema describing one REQUIRED INT64
// "ts" column (unix seconds, UTC) plus one OPTIONAL DOUBLE column per entry
// in columns. Optional columns let a row omit a column entirely to encode a
// hole, since NaN isn't valid JSON.
//
// Wide-frame columns are arbitrary geo-name strings (accents, spaces,
// parentheses), which aren't safe Thrift/Parquet field identifiers, so the
// physical schema uses a positional name ("col0", "col1", ...) instead of
// the geo name itself. The caller is responsible for passing the same
// column slice, in the same order, to both WriteFrame and ReadFrame (the
// Store always does, since it records the column list in the item's
// columns.json manifest on write and reads it back before every read).
func schemaFor(columns []string) string {
	var fields []string
	fields = append(fields, fmt.Sprintf(
		`{"Tag": "name=%s, inname=Ts, type=INT64, repetitiontype=REQUIRED"}`, timestampField))
	for i := range columns {
		n := positionalName(i)
		fields = append(fields, fmt.Sprintf(
			`{"Tag": "name=%s, inname=%s, type=DOUBLE, repetitiontype=OPTIONAL"}`, n, exportName(n)))
	}
	return fmt.Sprintf(`{
		"Tag": "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": [%s]
	}`, strings.Join(fields, ","))
}

// positionalName is the on-disk physical column name for the column at
// index i of a frame's Columns slice.
func positionalName(i int) string {
	return fmt.Sprintf("col%d", i)
}

// exportName maps a physical column name to an exported Go identifier for
// the JSON schema's "inname", since parquet-go's JSONWriter matches record
// keys against it.
func exportName(column string) string {
	if column == "" {
		return column
	}
	return strings.ToUpper(column[:1]) + column[1:]
}

type row map[string]interface{}

// WriteFrame writes f to path, overwriting any existing file. Callers that
// need atomic replace (the Store does) write to a temp path and rename it
// into place themselves.
func WriteFrame(path string, f *store.WideFrame) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open parquet writer %s: %w", path, err)
	}
	defer fw.Close()

	schema := schemaFor(f.Columns)
	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}

	for i, t := range f.Index {
		r := row{exportName(timestampField): t.UTC().Unix()}
		for ci, c := range f.Columns {
			if v, ok := f.Get(i, c); ok {
				r[exportName(positionalName(ci))] = v
			}
		}
		buf, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := pw.Write(string(buf)); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return nil
}

// ReadFrame reads the frame stored at path with the given column set. If
// the file doesn't exist, an empty frame is returned (not an error) so
// callers can treat "never written" and "empty" identically.
func ReadFrame(path string, columns []string) (*store.WideFrame, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			f := store.NewWideFrame()
			f.Columns = append(f.Columns, columns...)
			return f, nil
		}
		return nil, err
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet reader %s: %w", path, err)
	}
	defer fr.Close()

	schema := schemaFor(columns)
	pr, err := reader.NewParquetReader(fr, nil, 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()
	_ = schema // schema is embedded in the file itself; reader re-derives it.

	numRows := int(pr.GetNumRows())
	raw, err := pr.ReadByNumber(numRows)
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	out := store.NewWideFrame()
	out.Columns = append(out.Columns, columns...)
	for _, c := range columns {
		out.Data[c] = make([]float64, 0, numRows)
	}
	out.Index = make([]time.Time, 0, numRows)

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, fmt.Errorf("decode parquet rows: %w", err)
	}

	for _, rec := range decoded {
		tsRaw, ok := rec[exportName(timestampField)]
		if !ok {
			continue
		}
		sec, ok := toInt64(tsRaw)
		if !ok {
			continue
		}
		out.Index = append(out.Index, time.Unix(sec, 0).UTC())
		for ci, c := range columns {
			v := math.NaN()
			if raw, ok := rec[exportName(positionalName(ci))]; ok && raw != nil {
				if f, ok := toFloat64(raw); ok {
					v = f
				}
			}
			out.Data[c] = append(out.Data[c], v)
		}
	}
	return out, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
