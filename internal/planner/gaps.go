// Package planner computes what's missing from a cached store.WideFrame for
// a requested range (the Gap Planner) and how to slice a range into
// server-sized fetch windows (the Range Chunker). Both are pure functions
// over store types; the Gap Planner implements a pre-gap/post-gap/
// recent-refresh algorithm over continuous time ranges (see DESIGN.md).
package planner

import (
	"sort"
	"time"

	"github.com/datons/esios-go/internal/store"
)

// FindGaps returns the minimal ordered list of sub-ranges of [start, end]
// not yet satisfied by cached, restricted to columns when given. resolution
// is the one-unit step used when trimming a pre/post gap boundary away
// from the cached span's edge (pass the item's sampling interval; callers
// without a fixed one may pass time.Hour).
func FindGaps(cached *store.WideFrame, start, end time.Time, columns []string, recentTTL time.Duration, now time.Time, resolution time.Duration) []store.DateRange {
	start = start.UTC()
	end = end.UTC()

	if cached.Empty() {
		return []store.DateRange{{Start: start, End: end}}
	}

	frame := cached
	if len(columns) > 0 {
		for _, c := range columns {
			if !cached.HasColumn(c) {
				return []store.DateRange{{Start: start, End: end}}
			}
		}
		frame = cached.DenseRows(columns)
		if frame.Empty() {
			return []store.DateRange{{Start: start, End: end}}
		}
	}

	cLo := frame.MinIndex().UTC()
	cHi := frame.MaxIndex().UTC()

	var gaps []store.DateRange

	if start.Before(cLo) {
		preEnd := cLo.Add(-resolution)
		if preEnd.After(end) {
			preEnd = end
		}
		if !preEnd.Before(start) {
			gaps = append(gaps, store.DateRange{Start: start, End: preEnd})
		}
	}

	if end.After(cHi) {
		postStart := cHi.Add(resolution)
		if postStart.Before(start) {
			postStart = start
		}
		if !postStart.After(end) {
			gaps = append(gaps, store.DateRange{Start: postStart, End: end})
		}
	}

	cutoff := now.UTC().Add(-recentTTL)
	if cHi.After(cutoff) && end.After(cutoff) {
		refreshStart := start
		if cutoff.After(refreshStart) {
			refreshStart = cutoff
		}
		if !refreshStart.After(end) {
			gaps = append(gaps, store.DateRange{Start: refreshStart, End: end})
		}
	}

	return mergeRanges(gaps)
}

// mergeRanges sorts ranges by Start and merges any pair that overlaps or
// touches within one calendar day.
func mergeRanges(ranges []store.DateRange) []store.DateRange {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })

	out := []store.DateRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		gap := r.Start.Sub(last.End)
		if gap <= 24*time.Hour {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
