package managers

import (
	"context"
	"testing"
	"time"

	"github.com/datons/esios-go/internal/models"
	"github.com/datons/esios-go/internal/store"
	"github.com/datons/esios-go/internal/transport"
)

func testOpts(now time.Time) Options {
	return Options{
		ChunkDays: 21,
		RecentTTL: 0,
		MetaTTL: time.Hour,
		CatalogTTL: time.Hour,
		Resolution: time.Hour,
		Now: func() time.Time { return now },
	}
}

func TestManagerGetFetchesAndCachesMetadata(t *testing.T) {
	mock := transport.NewInMemoryTransport()
	mock.SeedJSON("indicators/600", map[string]interface{}{
		"item": map[string]interface{}{
			"id": 600,
			"name": "Demand",
		},
	})
	s := store.NewStore(t.TempDir())
	mgr := NewManager("indicators", mock, s, testOpts(time.Now().UTC()))

	h, err := mgr.Get(context.Background(), 600)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if h.Meta.Name != "Demand" {
		t.Errorf("Get().Meta.Name = %q, want Demand", h.Meta.Name)
	}

	// Second call should be served from cache: no second transport hit.
	if _, err := mgr.Get(context.Background(), 600); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if got := mock.CallCount("indicators/600"); got != 1 {
		t.Errorf("transport called %d times, want 1 (second Get should hit metadata cache)", got)
	}
}

func TestManagerListCachesCatalogue(t *testing.T) {
	mock := transport.NewInMemoryTransport()
	mock.SeedJSON("indicators", map[string]interface{}{
		"items": []models.CatalogueEntry{{ID: 1, Name: "Demand"}, {ID: 2, Name: "Wind generation"}},
	})
	s := store.NewStore(t.TempDir())
	mgr := NewManager("indicators", mock, s, testOpts(time.Now().UTC()))

	entries, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(entries))
	}

	if _, err := mgr.List(context.Background()); err != nil {
		t.Fatalf("second List() error = %v", err)
	}
	if got := mock.CallCount("indicators"); got != 1 {
		t.Errorf("transport called %d times, want 1 (second List should hit the catalogue cache)", got)
	}
}

func TestManagerSearchFiltersByNameAndShortName(t *testing.T) {
	mock := transport.NewInMemoryTransport()
	mock.SeedJSON("indicators", map[string]interface{}{
		"items": []models.CatalogueEntry{
			{ID: 1, Name: "Demand", ShortName: "DEM"},
			{ID: 2, Name: "Wind generation", ShortName: "WIND"},
		},
	})
	s := store.NewStore(t.TempDir())
	mgr := NewManager("indicators", mock, s, testOpts(time.Now().UTC()))

	got, err := mgr.Search(context.Background(), "wind")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("Search(wind) = %+v, want [{2 ...}]", got)
	}
}

func newHandleForTest(t *testing.T, mock transport.Transport, s *store.Store, opts Options) *IndicatorHandle {
	t.Helper()
	mgr := NewManager("indicators", mock, s, opts)
	return mgr.newHandle(models.Item{Endpoint: "indicators", ID: 600}, models.Metadata{ID: 600, Name: "Demand"})
}

func TestHistoricalFetchesOnCacheMiss(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock := transport.NewInMemoryTransport()
	mock.SeedJSON("indicators/600", map[string]interface{}{
		"item": map[string]interface{}{
			"values": []models.RawValue{
				{Value: 10, DatetimeUC: "2024-01-01T00:00:00"},
				{Value: 20, DatetimeUC: "2024-01-01T01:00:00"},
			},
		},
	})
	s := store.NewStore(t.TempDir())
	h := newHandleForTest(t, mock, s, testOpts(now))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	frame, err := h.Historical(context.Background(), HistoricalOptions{Start: start, End: end})
	if err != nil {
		t.Fatalf("Historical() error = %v", err)
	}
	if len(frame.Index) != 2 {
		t.Fatalf("Historical() = %d rows, want 2", len(frame.Index))
	}
	if v, ok := frame.Get(0, "600"); !ok || v != 10 {
		t.Errorf("Historical() row0 = (%v,%v), want (10,true)", v, ok)
	}
}

func TestHistoricalServesFromCacheWithoutRefetch(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock := transport.NewInMemoryTransport()
	mock.SeedJSON("indicators/600", map[string]interface{}{
		"item": map[string]interface{}{
			"values": []models.RawValue{
				{Value: 10, DatetimeUC: "2024-01-01T00:00:00"},
			},
		},
	})
	s := store.NewStore(t.TempDir())
	opts := testOpts(now)
	opts.RecentTTL = 0
	h := newHandleForTest(t, mock, s, opts)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := h.Historical(context.Background(), HistoricalOptions{Start: start, End: end}); err != nil {
		t.Fatalf("first Historical() error = %v", err)
	}
	if _, err := h.Historical(context.Background(), HistoricalOptions{Start: start, End: end}); err != nil {
		t.Fatalf("second Historical() error = %v", err)
	}
	if got := mock.CallCount("indicators/600"); got != 1 {
		t.Errorf("transport called %d times, want 1 (fully covered range should not refetch)", got)
	}
}

func TestHistoricalUncacheableWhenAggregating(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock := transport.NewInMemoryTransport()
	mock.SeedJSON("indicators/600", map[string]interface{}{
		"item": map[string]interface{}{
			"values": []models.RawValue{{Value: 5, DatetimeUC: "2024-01-01T00:00:00"}},
		},
	})
	mock.SeedJSON("indicators/600", map[string]interface{}{
		"item": map[string]interface{}{
			"values": []models.RawValue{{Value: 5, DatetimeUC: "2024-01-01T00:00:00"}},
		},
	})
	s := store.NewStore(t.TempDir())
	h := newHandleForTest(t, mock, s, testOpts(now))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := HistoricalOptions{Start: start, End: end, TimeAgg: "hour"}

	if _, err := h.Historical(context.Background(), opts); err != nil {
		t.Fatalf("first Historical() error = %v", err)
	}
	if _, err := h.Historical(context.Background(), opts); err != nil {
		t.Fatalf("second Historical() error = %v", err)
	}
	if got := mock.CallCount("indicators/600"); got != 2 {
		t.Errorf("transport called %d times, want 2 (aggregated requests bypass the cache)", got)
	}
}

func TestResolveGeoByNameAndID(t *testing.T) {
	s := store.NewStore(t.TempDir())
	mgr := NewManager("indicators", transport.NewInMemoryTransport(), s, testOpts(time.Now().UTC()))
	h := mgr.newHandle(models.Item{Endpoint: "indicators", ID: 600}, models.Metadata{
		ID: 600,
		Geos: []models.GeoRef{{ID: 8, Name: "Madrid"}},
	})

	if g, ok := h.ResolveGeo("madrid"); !ok || g.ID != 8 {
		t.Errorf("ResolveGeo(madrid) = (%+v, %v)", g, ok)
	}
	if g, ok := h.ResolveGeo("8"); !ok || g.Name != "Madrid" {
		t.Errorf("ResolveGeo(8) = (%+v, %v)", g, ok)
	}
	if _, ok := h.ResolveGeo("unknown"); ok {
		t.Error("ResolveGeo(unknown) should fail")
	}
}
