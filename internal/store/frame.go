package store

import (
	"math"
	"sort"
	"time"
)

// WideFrame is a table with a strictly increasing UTC timestamp index and
// one or more named value columns. A hole is represented as
// math.NaN() in the backing slice rather than by omitting the row, so every
// column slice stays aligned 1:1 with Index.
type WideFrame struct {
	Index []time.Time
	Columns []string
	Data map[string][]float64
}

// NewWideFrame returns an empty frame ready for column assignment.
func NewWideFrame() *WideFrame {
	return &WideFrame{Data: make(map[string][]float64)}
}

// Empty reports whether the frame has no rows.
func (f *WideFrame) Empty() bool {
	return f == nil || len(f.Index) == 0
}

// HasColumn reports whether name is a column of the frame.
func (f *WideFrame) HasColumn(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f.Data[name]
	return ok
}

// Get returns the value at row i for column c. ok is false for a hole or an
// unknown column.
func (f *WideFrame) Get(i int, c string) (float64, bool) {
	col, ok := f.Data[c]
	if !ok || i < 0 || i >= len(col) {
		return 0, false
	}
	v := col[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// MinIndex and MaxIndex return the first/last timestamp; callers must check
// Empty() first.
func (f *WideFrame) MinIndex() time.Time { return f.Index[0] }
func (f *WideFrame) MaxIndex() time.Time { return f.Index[len(f.Index)-1] }

// Slice returns a new frame containing only rows whose timestamp falls in
// [start, end] inclusive.
func (f *WideFrame) Slice(start, end time.Time) *WideFrame {
	out := NewWideFrame()
	out.Columns = append(out.Columns, f.Columns...)
	for _, c := range f.Columns {
		out.Data[c] = nil
	}
	if f.Empty() {
		return out
	}
	for i, t := range f.Index {
		if t.Before(start) || t.After(end) {
			continue
		}
		out.Index = append(out.Index, t)
		for _, c := range f.Columns {
			out.Data[c] = append(out.Data[c], f.Data[c][i])
		}
	}
	return out
}

// FilterColumns restricts the frame to the named columns, preserving the
// frame's original column order. Columns not present in f are skipped.
func (f *WideFrame) FilterColumns(columns []string) *WideFrame {
	if len(columns) == 0 {
		return f
	}
	wanted := make(map[string]bool, len(columns))
	for _, c := range columns {
		wanted[c] = true
	}
	out := NewWideFrame()
	out.Index = append(out.Index, f.Index...)
	for _, c := range f.Columns {
		if wanted[c] {
			out.Columns = append(out.Columns, c)
			out.Data[c] = append([]float64{}, f.Data[c]...)
		}
	}
	return out
}

// DenseRows returns a frame restricted to rows where every one of the given
// columns holds a non-hole value, used by the gap planner's per-column
// coverage check.
func (f *WideFrame) DenseRows(columns []string) *WideFrame {
	out := NewWideFrame()
	out.Columns = append(out.Columns, columns...)
	for _, c := range columns {
		out.Data[c] = nil
	}
	if f.Empty() {
		return out
	}
	for i, t := range f.Index {
		dense := true
		for _, c := range columns {
			if _, ok := f.Get(i, c); !ok {
				dense = false
				break
			}
		}
		if !dense {
			continue
		}
		out.Index = append(out.Index, t)
		for _, c := range columns {
			v, _ := f.Get(i, c)
			out.Data[c] = append(out.Data[c], v)
		}
	}
	return out
}

// RenameColumn renames column from -> to in place, keeping column order.
func (f *WideFrame) RenameColumn(from, to string) {
	if from == to {
		return
	}
	vals, ok := f.Data[from]
	if !ok {
		return
	}
	delete(f.Data, from)
	f.Data[to] = vals
	for i, c := range f.Columns {
		if c == from {
			f.Columns[i] = to
		}
	}
}

// Merge aligns on the union of
// indices and columns; for every cell take next[t,c] if present (non-hole),
// else existing[t,c]; sort the result by index. Either argument may be nil
// or empty.
func Merge(existing, next *WideFrame) *WideFrame {
	if existing.Empty() {
		return cloneFrame(next)
	}
	if next.Empty() {
		return cloneFrame(existing)
	}

	// Union of columns, existing order first then any new columns.
	colSeen := make(map[string]bool)
	var columns []string
	for _, c := range existing.Columns {
		if !colSeen[c] {
			columns = append(columns, c)
			colSeen[c] = true
		}
	}
	for _, c := range next.Columns {
		if !colSeen[c] {
			columns = append(columns, c)
			colSeen[c] = true
		}
	}

	// Union of timestamps, sorted.
	tsSeen := make(map[int64]bool)
	var timestamps []time.Time
	for _, t := range existing.Index {
		if !tsSeen[t.UnixNano()] {
			timestamps = append(timestamps, t)
			tsSeen[t.UnixNano()] = true
		}
	}
	for _, t := range next.Index {
		if !tsSeen[t.UnixNano()] {
			timestamps = append(timestamps, t)
			tsSeen[t.UnixNano()] = true
		}
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	existingRow := indexRows(existing)
	nextRow := indexRows(next)

	out := NewWideFrame()
	out.Columns = columns
	out.Index = timestamps
	for _, c := range columns {
		col := make([]float64, len(timestamps))
		for i, t := range timestamps {
			v := math.NaN()
			if ri, ok := nextRow[t.UnixNano()]; ok {
				if nv, ok2 := next.Get(ri, c); ok2 {
					v = nv
				}
			}
			if math.IsNaN(v) {
				if ri, ok := existingRow[t.UnixNano()]; ok {
					if ev, ok2 := existing.Get(ri, c); ok2 {
						v = ev
					}
				}
			}
			col[i] = v
		}
		out.Data[c] = col
	}
	return out
}

func indexRows(f *WideFrame) map[int64]int {
	m := make(map[int64]int, len(f.Index))
	for i, t := range f.Index {
		m[t.UnixNano()] = i
	}
	return m
}

func cloneFrame(f *WideFrame) *WideFrame {
	if f.Empty() {
		return NewWideFrame()
	}
	out := NewWideFrame()
	out.Columns = append(out.Columns, f.Columns...)
	out.Index = append(out.Index, f.Index...)
	for _, c := range f.Columns {
		out.Data[c] = append([]float64{}, f.Data[c]...)
	}
	return out
}
