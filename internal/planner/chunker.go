package planner

import (
	"time"

	"github.com/datons/esios-go/internal/store"
)

// ChunkRange splits r into consecutive windows no wider than maxDays.
func ChunkRange(r store.DateRange, maxDays int) []store.DateRange {
	if r.Empty() || maxDays <= 0 {
		return nil
	}
	delta := time.Duration(maxDays-1) * 24 * time.Hour

	var out []store.DateRange
	cur := r.Start
	for !cur.After(r.End) {
		chunkEnd := cur.Add(delta)
		if chunkEnd.After(r.End) {
			chunkEnd = r.End
		}
		out = append(out, store.DateRange{Start: cur, End: chunkEnd})
		cur = chunkEnd.Add(24 * time.Hour)
	}
	return out
}

// ChunkByMonth splits r into consecutive calendar-month windows, used for
// monthly-horizon archive bundles.
func ChunkByMonth(r store.DateRange) []store.DateRange {
	if r.Empty() {
		return nil
	}
	var out []store.DateRange
	cur := firstOfMonth(r.Start)
	for !cur.After(r.End) {
		monthEnd := lastOfMonth(cur)
		winStart := cur
		if winStart.Before(r.Start) {
			winStart = r.Start
		}
		winEnd := monthEnd
		if winEnd.After(r.End) {
			winEnd = r.End
		}
		out = append(out, store.DateRange{Start: winStart, End: winEnd})
		cur = nextMonth(cur)
	}
	return out
}

func firstOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func lastOfMonth(t time.Time) time.Time {
	return nextMonth(t).Add(-24 * time.Hour)
}

func nextMonth(t time.Time) time.Time {
	return firstOfMonth(t).AddDate(0, 1, 0)
}
