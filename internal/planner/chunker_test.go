package planner

import (
	"testing"
	"time"

	"github.com/datons/esios-go/internal/store"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestChunkRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		maxDays int
		want    [][2]string
	}{
		{
			"fits in one chunk",
			"2024-01-01", "2024-01-05", 21,
			[][2]string{{"2024-01-01", "2024-01-05"}},
		},
		{
			"splits into two chunks",
			"2024-01-01", "2024-01-10", 5,
			[][2]string{{"2024-01-01", "2024-01-05"}, {"2024-01-06", "2024-01-10"}},
		},
		{
			"exact multiple",
			"2024-01-01", "2024-01-20", 10,
			[][2]string{{"2024-01-01", "2024-01-10"}, {"2024-01-11", "2024-01-20"}},
		},
		{
			"single day window",
			"2024-01-01", "2024-01-01", 21,
			[][2]string{{"2024-01-01", "2024-01-01"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := store.DateRange{Start: mustDate(tt.start), End: mustDate(tt.end)}
			got := ChunkRange(r, tt.maxDays)
			if len(got) != len(tt.want) {
				t.Fatalf("ChunkRange() = %d chunks, want %d (%v)", len(got), len(tt.want), got)
			}
			for i, w := range tt.want {
				if got[i].Start.Format("2006-01-02") != w[0] || got[i].End.Format("2006-01-02") != w[1] {
					t.Errorf("chunk[%d] = [%s, %s], want [%s, %s]", i,
						got[i].Start.Format("2006-01-02"), got[i].End.Format("2006-01-02"), w[0], w[1])
				}
			}
		})
	}
}

func TestChunkRangeEmptyOrInvalid(t *testing.T) {
	empty := store.DateRange{Start: mustDate("2024-01-10"), End: mustDate("2024-01-01")}
	if got := ChunkRange(empty, 5); got != nil {
		t.Errorf("ChunkRange(empty) = %v, want nil", got)
	}
	r := store.DateRange{Start: mustDate("2024-01-01"), End: mustDate("2024-01-05")}
	if got := ChunkRange(r, 0); got != nil {
		t.Errorf("ChunkRange(maxDays=0) = %v, want nil", got)
	}
}

func TestChunkByMonth(t *testing.T) {
	r := store.DateRange{Start: mustDate("2024-01-15"), End: mustDate("2024-03-10")}
	got := ChunkByMonth(r)
	want := [][2]string{
		{"2024-01-15", "2024-01-31"},
		{"2024-02-01", "2024-02-29"},
		{"2024-03-01", "2024-03-10"},
	}
	if len(got) != len(want) {
		t.Fatalf("ChunkByMonth() = %d windows, want %d (%v)", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Start.Format("2006-01-02") != w[0] || got[i].End.Format("2006-01-02") != w[1] {
			t.Errorf("window[%d] = [%s, %s], want [%s, %s]", i,
				got[i].Start.Format("2006-01-02"), got[i].End.Format("2006-01-02"), w[0], w[1])
		}
	}
}

func TestChunkByMonthSingleMonth(t *testing.T) {
	r := store.DateRange{Start: mustDate("2024-06-05"), End: mustDate("2024-06-20")}
	got := ChunkByMonth(r)
	if len(got) != 1 {
		t.Fatalf("ChunkByMonth() = %d windows, want 1", len(got))
	}
	if got[0].Start.Format("2006-01-02") != "2024-06-05" || got[0].End.Format("2006-01-02") != "2024-06-20" {
		t.Errorf("window = [%s, %s]", got[0].Start.Format("2006-01-02"), got[0].End.Format("2006-01-02"))
	}
}
