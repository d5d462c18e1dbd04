package store

import (
	"testing"
	"time"

	"github.com/datons/esios-go/internal/models"
)

func sampleFrame(t *testing.T, ts string, col string, val float64) *WideFrame {
	t.Helper()
	f := NewWideFrame()
	f.Columns = []string{col}
	parsed, err := time.Parse("2006-01-02T15:04:05", ts)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	f.Index = []time.Time{parsed.UTC()}
	f.Data[col] = []float64{val}
	return f
}

func TestStoreWriteThenRead(t *testing.T) {
	s := NewStore(t.TempDir())
	frame := sampleFrame(t, "2024-01-01T00:00:00", "value", 42)

	if err := s.Write("indicators", 100, frame); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := s.Read("indicators", 100, time.Time{}, time.Now().UTC().AddDate(1, 0, 0), nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.Index) != 1 {
		t.Fatalf("Read() = %d rows, want 1", len(got.Index))
	}
	if v, ok := got.Get(0, "value"); !ok || v != 42 {
		t.Errorf("Read() value = (%v,%v), want (42,true)", v, ok)
	}
}

func TestStoreWriteMergesWithExisting(t *testing.T) {
	s := NewStore(t.TempDir())
	first := sampleFrame(t, "2024-01-01T00:00:00", "value", 1)
	second := sampleFrame(t, "2024-01-02T00:00:00", "value", 2)

	if err := s.Write("indicators", 1, first); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	if err := s.Write("indicators", 1, second); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	got, err := s.Read("indicators", 1, time.Time{}, time.Now().UTC().AddDate(1, 0, 0), nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.Index) != 2 {
		t.Fatalf("Read() = %d rows, want 2", len(got.Index))
	}
}

func TestStoreWriteEmptyFrameIsNoop(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Write("indicators", 1, NewWideFrame()); err != nil {
		t.Fatalf("Write(empty) error = %v", err)
	}
	got, err := s.Read("indicators", 1, time.Time{}, time.Now(), nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !got.Empty() {
		t.Error("Read() after writing an empty frame should still be empty")
	}
}

func TestStoreReadMissingItemReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir())
	got, err := s.Read("indicators", 9999, time.Time{}, time.Now(), nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !got.Empty() {
		t.Error("Read() on a never-written item should be empty, not an error")
	}
}

func TestStoreMetaRoundTripAndTTL(t *testing.T) {
	s := NewStore(t.TempDir())
	meta := models.Metadata{ID: 7, Name: "Demand"}
	now := time.Now().UTC()

	if err := s.WriteMeta("indicators", 7, meta, now); err != nil {
		t.Fatalf("WriteMeta() error = %v", err)
	}

	got, ok := s.ReadMeta("indicators", 7, time.Hour)
	if !ok {
		t.Fatal("ReadMeta() ok = false, want true")
	}
	if got.Name != "Demand" {
		t.Errorf("ReadMeta().Name = %q, want Demand", got.Name)
	}

	if _, ok := s.ReadMeta("indicators", 7, -time.Second); ok {
		t.Error("ReadMeta() with an already-expired TTL should report ok=false")
	}
}

func TestStoreCatalogRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	entries := []models.CatalogueEntry{{ID: 1, Name: "Demand"}}
	now := time.Now().UTC()

	if err := s.WriteCatalog("indicators", entries, now); err != nil {
		t.Fatalf("WriteCatalog() error = %v", err)
	}
	got, ok := s.ReadCatalog("indicators", time.Hour)
	if !ok || len(got) != 1 || got[0].Name != "Demand" {
		t.Errorf("ReadCatalog() = (%v, %v)", got, ok)
	}
}

func TestStoreArchiveCatalogRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	entries := []models.ArchiveDescriptor{{ID: 5, Name: "prices"}}
	now := time.Now().UTC()

	if err := s.WriteArchiveCatalog(entries, now); err != nil {
		t.Fatalf("WriteArchiveCatalog() error = %v", err)
	}
	got, ok := s.ReadArchiveCatalog(time.Hour)
	if !ok || len(got) != 1 || got[0].Name != "prices" {
		t.Errorf("ReadArchiveCatalog() = (%v, %v)", got, ok)
	}
}

func TestStoreClearScopedToItem(t *testing.T) {
	s := NewStore(t.TempDir())
	frame := sampleFrame(t, "2024-01-01T00:00:00", "value", 1)
	if err := s.Write("indicators", 1, frame); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Write("indicators", 2, frame); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	id := 1
	n, err := s.Clear("indicators", &id)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n == 0 {
		t.Error("Clear() removed 0 files, want > 0")
	}

	got1, _ := s.Read("indicators", 1, time.Time{}, time.Now(), nil)
	if !got1.Empty() {
		t.Error("item 1 should be cleared")
	}
	got2, _ := s.Read("indicators", 2, time.Time{}, time.Now(), nil)
	if got2.Empty() {
		t.Error("item 2 should be untouched by a scoped clear")
	}
}

func TestStoreClearAllPreservesGeos(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.MergeGeos(map[int]string{1: "Madrid"}); err != nil {
		t.Fatalf("MergeGeos() error = %v", err)
	}
	frame := sampleFrame(t, "2024-01-01T00:00:00", "value", 1)
	if err := s.Write("indicators", 1, frame); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, err := s.Clear("", nil); err != nil {
		t.Fatalf("Clear(all) error = %v", err)
	}

	geos, err := s.ReadGeos()
	if err != nil {
		t.Fatalf("ReadGeos() error = %v", err)
	}
	if geos[1] != "Madrid" {
		t.Error("Clear(all) should not remove the geo registry")
	}
}

func TestStoreStatus(t *testing.T) {
	s := NewStore(t.TempDir())
	frame := sampleFrame(t, "2024-01-01T00:00:00", "value", 1)
	if err := s.Write("indicators", 1, frame); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Files == 0 {
		t.Error("Status().Files = 0, want > 0")
	}
	if st.Endpoints["indicators"] != 1 {
		t.Errorf("Status().Endpoints[indicators] = %d, want 1", st.Endpoints["indicators"])
	}
}
