package planner

import (
	"math"
	"testing"
	"time"

	"github.com/datons/esios-go/internal/store"
)

func frameWithHourly(startDay, endDay string, columns ...string) *store.WideFrame {
	f := store.NewWideFrame()
	f.Columns = append(f.Columns, columns...)
	for _, c := range columns {
		f.Data[c] = nil
	}
	cur := mustDate(startDay)
	end := mustDate(endDay)
	for !cur.After(end) {
		f.Index = append(f.Index, cur)
		for _, c := range columns {
			f.Data[c] = append(f.Data[c], 1.0)
		}
		cur = cur.Add(24 * time.Hour)
	}
	return f
}

func TestFindGapsEmptyCache(t *testing.T) {
	cached := store.NewWideFrame()
	gaps := FindGaps(cached, mustDate("2024-01-01"), mustDate("2024-01-10"), nil, time.Hour, mustDate("2024-02-01"), time.Hour)
	if len(gaps) != 1 {
		t.Fatalf("FindGaps(empty) = %d gaps, want 1", len(gaps))
	}
	if !gaps[0].Start.Equal(mustDate("2024-01-01")) || !gaps[0].End.Equal(mustDate("2024-01-10")) {
		t.Errorf("gap = %+v", gaps[0])
	}
}

func TestFindGapsFullyCoveredNoRecentOverlap(t *testing.T) {
	cached := frameWithHourly("2024-01-01", "2024-01-10", "value")
	// "now" is far enough past recentTTL that the cached span isn't "recent".
	now := mustDate("2024-06-01")
	gaps := FindGaps(cached, mustDate("2024-01-01"), mustDate("2024-01-10"), nil, 48*time.Hour, now, time.Hour)
	if len(gaps) != 0 {
		t.Errorf("FindGaps(fully covered, stale) = %v, want none", gaps)
	}
}

func TestFindGapsPreAndPostGap(t *testing.T) {
	cached := frameWithHourly("2024-01-05", "2024-01-10", "value")
	now := mustDate("2024-06-01")
	gaps := FindGaps(cached, mustDate("2024-01-01"), mustDate("2024-01-15"), nil, 48*time.Hour, now, time.Hour)
	if len(gaps) != 2 {
		t.Fatalf("FindGaps(pre+post) = %d gaps, want 2 (%v)", len(gaps), gaps)
	}
	if !gaps[0].Start.Equal(mustDate("2024-01-01")) {
		t.Errorf("pre-gap start = %v, want 2024-01-01", gaps[0].Start)
	}
	if !gaps[1].End.Equal(mustDate("2024-01-15")) {
		t.Errorf("post-gap end = %v, want 2024-01-15", gaps[1].End)
	}
}

func TestFindGapsRecentRefresh(t *testing.T) {
	cached := frameWithHourly("2024-01-01", "2024-01-10", "value")
	// now is within recentTTL of the cached high-water mark, so the tail
	// re-enters the gap set for a refresh even though it's nominally cached.
	now := mustDate("2024-01-11")
	gaps := FindGaps(cached, mustDate("2024-01-01"), mustDate("2024-01-10"), nil, 48*time.Hour, now, time.Hour)
	if len(gaps) == 0 {
		t.Fatal("FindGaps(recent) = no gaps, want a refresh gap")
	}
}

func TestFindGapsMissingColumn(t *testing.T) {
	cached := frameWithHourly("2024-01-01", "2024-01-10", "Madrid")
	now := mustDate("2024-06-01")
	gaps := FindGaps(cached, mustDate("2024-01-01"), mustDate("2024-01-10"), []string{"Barcelona"}, 48*time.Hour, now, time.Hour)
	if len(gaps) != 1 {
		t.Fatalf("FindGaps(missing column) = %d gaps, want 1 (full range)", len(gaps))
	}
}

func TestFindGapsAllHoleColumn(t *testing.T) {
	cached := frameWithHourly("2024-01-01", "2024-01-10", "Madrid", "Barcelona")
	for i := range cached.Data["Barcelona"] {
		cached.Data["Barcelona"][i] = math.NaN()
	}
	now := mustDate("2024-06-01")
	// Barcelona is declared (HasColumn true) but every value is a hole, so
	// DenseRows(["Barcelona"]) has nothing dense and the column must be
	// treated the same as if it were never cached at all.
	gaps := FindGaps(cached, mustDate("2024-01-01"), mustDate("2024-01-10"), []string{"Barcelona"}, 48*time.Hour, now, time.Hour)
	if len(gaps) != 1 {
		t.Fatalf("FindGaps(all-hole column) = %d gaps, want 1 (full range)", len(gaps))
	}
	if !gaps[0].Start.Equal(mustDate("2024-01-01")) || !gaps[0].End.Equal(mustDate("2024-01-10")) {
		t.Errorf("gap = %+v, want the full requested range", gaps[0])
	}
}

func TestMergeRangesTouchingWithinOneDay(t *testing.T) {
	ranges := []store.DateRange{
		{Start: mustDate("2024-01-01"), End: mustDate("2024-01-05")},
		{Start: mustDate("2024-01-05"), End: mustDate("2024-01-10")},
		{Start: mustDate("2024-02-01"), End: mustDate("2024-02-05")},
	}
	merged := mergeRanges(ranges)
	if len(merged) != 2 {
		t.Fatalf("mergeRanges() = %d ranges, want 2 (%v)", len(merged), merged)
	}
	if !merged[0].End.Equal(mustDate("2024-01-10")) {
		t.Errorf("merged[0].End = %v, want 2024-01-10", merged[0].End)
	}
}
