// Package store is the Cache Store: the single source of truth for
// everything persisted on disk. It does no network I/O and no
// gap-planning; those are internal/transport and internal/planner's jobs
// respectively. Each item is stored as a parquet-backed Wide Frame, since
// this domain's unit of caching is a column-sparse time series, not a list
// of discrete daily records.
package store

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/datons/esios-go/internal/errs"
	"github.com/datons/esios-go/internal/logging"
	"github.com/datons/esios-go/internal/metrics"
	"github.com/datons/esios-go/internal/models"
	"github.com/datons/esios-go/internal/parquetio"
)

// Store resolves item/catalogue/geo/bundle paths under one cache root and
// serializes the write path of each item with its own mutex entry.
type Store struct {
	root string
	Geos *GeoRegistry

	mu sync.Mutex
	writeLock map[string]*sync.Mutex
}

// NewStore returns a Store rooted at root. Nothing is created on disk here;
// directories are created by the first write beneath them.
func NewStore(root string) *Store {
	return &Store{
		root: root,
		Geos: NewGeoRegistry(filepath.Join(root, "geos.json")),
		writeLock: make(map[string]*sync.Mutex),
	}
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.writeLock[key]
	if !ok {
		l = &sync.Mutex{}
		s.writeLock[key] = l
	}
	return l
}

func (s *Store) itemDir(endpoint string, id int) string {
	return filepath.Join(s.root, endpoint, strconv.Itoa(id))
}

func (s *Store) dataPath(endpoint string, id int) string {
	return filepath.Join(s.itemDir(endpoint, id), "data.parquet")
}

func (s *Store) columnsManifestPath(endpoint string, id int) string {
	return filepath.Join(s.itemDir(endpoint, id), "columns.json")
}

func (s *Store) metaPath(endpoint string, id int) string {
	return filepath.Join(s.itemDir(endpoint, id), "meta.json")
}

func (s *Store) catalogPath(endpoint string) string {
	return filepath.Join(s.root, endpoint, "catalog.json")
}

// ArchiveDir is a pure path resolver:
// {root}/archives/{id}/{name}_{date-key}/
func (s *Store) ArchiveDir(archiveID int, name, dateKey string) string {
	return filepath.Join(s.root, "archives", strconv.Itoa(archiveID), fmt.Sprintf("%s_%s", name, dateKey))
}

// ArchiveExists reports whether the bundle directory exists and holds at
// least one entry.
func (s *Store) ArchiveExists(archiveID int, name, dateKey string) bool {
	entries, err := os.ReadDir(s.ArchiveDir(archiveID, name, dateKey))
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// readRawFull loads the complete frame for (endpoint, id), with no range or
// column filtering, alongside its column manifest. A missing file pair is
// not an error: it returns an empty frame. A corrupt parquet file is
// logged, deleted, and likewise treated as empty.
func (s *Store) readRawFull(endpoint string, id int) (*WideFrame, error) {
	manifestPath := s.columnsManifestPath(endpoint, id)
	columns, err := readColumnsManifest(manifestPath)
	if err != nil {
		return NewWideFrame(), nil
	}
	if len(columns) == 0 {
		return NewWideFrame(), nil
	}

	dataPath := s.dataPath(endpoint, id)
	frame, err := parquetio.ReadFrame(dataPath, columns)
	if err != nil {
		logging.L().Warnw("corrupt cache entry, discarding", "path", dataPath, "err", err)
		os.Remove(dataPath)
		os.Remove(manifestPath)
		return NewWideFrame(), nil
	}
	return frame, nil
}

func readColumnsManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var columns []string
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, &errs.CacheCorruptionError{Path: path, Err: err}
	}
	return columns, nil
}

// Read returns the slice [start, end] of the item's cached frame, filtered
// to columns when given.
func (s *Store) Read(endpoint string, id int, start, end time.Time, columns []string) (*WideFrame, error) {
	full, err := s.readRawFull(endpoint, id)
	if err != nil {
		return nil, err
	}
	sliced := full.Slice(start, end)
	if len(columns) > 0 {
		sliced = sliced.FilterColumns(columns)
	}
	return sliced, nil
}

// Write merges frame into the item's on-disk data, new values winning on
// overlap, and persists atomically. An empty frame is a no-op.
func (s *Store) Write(endpoint string, id int, frame *WideFrame) error {
	if frame.Empty() {
		return nil
	}
	key := fmt.Sprintf("%s/%d", endpoint, id)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.readRawFull(endpoint, id)
	if err != nil {
		return err
	}
	merged := Merge(existing, frame)

	dir := s.itemDir(endpoint, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	manifest, err := json.Marshal(merged.Columns)
	if err != nil {
		return err
	}

	tmpData := s.dataPath(endpoint, id) + ".tmp"
	if err := parquetio.WriteFrame(tmpData, merged); err != nil {
		os.Remove(tmpData)
		logging.L().Warnw("cache write failed, keeping previous data", "endpoint", endpoint, "id", id, "err", err)
		return nil
	}
	if err := os.Rename(tmpData, s.dataPath(endpoint, id)); err != nil {
		os.Remove(tmpData)
		return err
	}
	return AtomicWriteFile(s.columnsManifestPath(endpoint, id), manifest, 0o644)
}

// metaEnvelope wraps a Metadata record with the instant it was cached.
type metaEnvelope struct {
	Metadata models.Metadata `json:"metadata"`
	CachedAt time.Time `json:"cached_at"`
}

// ReadMeta returns the cached metadata record for (endpoint, id) if present
// and within ttl, else (nil, false). Stale or corrupt entries are treated
// as absent; corrupt ones are deleted.
func (s *Store) ReadMeta(endpoint string, id int, ttl time.Duration) (*models.Metadata, bool) {
	path := s.metaPath(endpoint, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var env metaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.L().Warnw("corrupt metadata entry, discarding", "path", path, "err", err)
		os.Remove(path)
		return nil, false
	}
	if time.Since(env.CachedAt) > ttl {
		return nil, false
	}
	m := env.Metadata
	m.FetchedAt = env.CachedAt
	return &m, true
}

// WriteMeta persists a metadata record stamped with the current instant.
func (s *Store) WriteMeta(endpoint string, id int, meta models.Metadata, now time.Time) error {
	dir := s.itemDir(endpoint, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(metaEnvelope{Metadata: meta, CachedAt: now}, "", " ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(s.metaPath(endpoint, id), data, 0o644)
}

type catalogEnvelope struct {
	Entries []models.CatalogueEntry `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadCatalog returns the cached catalogue for endpoint if present and
// within ttl.
func (s *Store) ReadCatalog(endpoint string, ttl time.Duration) ([]models.CatalogueEntry, bool) {
	path := s.catalogPath(endpoint)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var env catalogEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.L().Warnw("corrupt catalogue entry, discarding", "path", path, "err", err)
		os.Remove(path)
		return nil, false
	}
	if time.Since(env.UpdatedAt) > ttl {
		return nil, false
	}
	return env.Entries, true
}

// WriteCatalog persists the catalogue listing for endpoint.
func (s *Store) WriteCatalog(endpoint string, entries []models.CatalogueEntry, now time.Time) error {
	dir := filepath.Join(s.root, endpoint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(catalogEnvelope{Entries: entries, UpdatedAt: now}, "", " ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(s.catalogPath(endpoint), data, 0o644)
}

func (s *Store) archiveCatalogPath() string {
	return filepath.Join(s.root, "archives", "catalog.json")
}

type archiveCatalogEnvelope struct {
	Entries []models.ArchiveDescriptor `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadArchiveCatalog returns the cached archive descriptor list if present
// and within ttl.
func (s *Store) ReadArchiveCatalog(ttl time.Duration) ([]models.ArchiveDescriptor, bool) {
	path := s.archiveCatalogPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var env archiveCatalogEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.L().Warnw("corrupt archive catalogue, discarding", "path", path, "err", err)
		os.Remove(path)
		return nil, false
	}
	if time.Since(env.UpdatedAt) > ttl {
		return nil, false
	}
	return env.Entries, true
}

// WriteArchiveCatalog persists the archive descriptor list.
func (s *Store) WriteArchiveCatalog(entries []models.ArchiveDescriptor, now time.Time) error {
	dir := filepath.Join(s.root, "archives")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(archiveCatalogEnvelope{Entries: entries, UpdatedAt: now}, "", " ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(s.archiveCatalogPath(), data, 0o644)
}

// ReadGeos returns the full geo registry.
func (s *Store) ReadGeos() (map[int]string, error) {
	return s.Geos.Load()
}

// MergeGeos idempotently merges newly observed (id, name) pairs into the
// global registry. A nil/empty map is a no-op.
func (s *Store) MergeGeos(entries map[int]string) error {
	return s.Geos.Merge(entries)
}

// Clear deletes the cached subtree scoped by (endpoint, id) and prunes any
// resulting empty directories, returning the number of files removed.
// endpoint == "" clears the whole cache root (but never geos.json, which is
// a cross-cutting registry rather than item-scoped data).
func (s *Store) Clear(endpoint string, id *int) (int, error) {
	var target string
	switch {
	case endpoint == "":
		target = s.root
	case id == nil:
		target = filepath.Join(s.root, endpoint)
	default:
		target = s.itemDir(endpoint, *id)
	}

	count := 0
	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if endpoint == "" && filepath.Base(path) == "geos.json" {
				return nil
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if endpoint == "" {
		entries, readErr := os.ReadDir(s.root)
		if readErr == nil {
			for _, e := range entries {
				if e.Name() == "geos.json" {
					continue
				}
				if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
					return count, err
				}
			}
		}
		return count, nil
	}
	if err := os.RemoveAll(target); err != nil {
		return count, err
	}
	pruneEmptyParents(filepath.Dir(target), s.root)
	return count, nil
}

func pruneEmptyParents(dir, root string) {
	for dir != root && len(dir) > len(root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

// Status reports operator-facing cache statistics: total file count, size
// in MB, and a per-endpoint item count.
type Status struct {
	Path string `json:"path"`
	Files int `json:"files"`
	SizeMB float64 `json:"size_mb"`
	Endpoints map[string]int `json:"endpoints"`
}

// Status walks the cache root and summarizes it.
func (s *Store) Status() (Status, error) {
	st := Status{Path: s.root, Endpoints: make(map[string]int)}
	var totalBytes int64

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		totalBytes += info.Size()
		st.Files++
		return nil
	})
	if err != nil {
		return st, err
	}

	for _, endpoint := range []string{"indicators", "offer_indicators"} {
		entries, err := os.ReadDir(filepath.Join(s.root, endpoint))
		if err != nil {
			continue
		}
		n := 0
		for _, e := range entries {
			if e.IsDir() {
				n++
			}
		}
		st.Endpoints[endpoint] = n
	}

	st.SizeMB = float64(totalBytes) / (1024 * 1024)
	metrics.CacheFiles.Set(float64(st.Files))
	metrics.CacheSizeBytes.Set(float64(totalBytes))
	return st, nil
}
