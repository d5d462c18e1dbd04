package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Geo is a single entry in the append-only geo-name registry shared across
// every cached item: the API's numeric geo_id paired with the
// human-readable geo_name observed for it.
type Geo struct {
	ID int `json:"geo_id"`
	Name string `json:"geo_name"`
}

// GeoRegistry is a last-write-wins, append-only map of geo_id -> geo_name
// persisted as a single JSON file at the cache root. Concurrent fetches may
// discover overlapping geos; Merge never removes a previously learned name.
type GeoRegistry struct {
	mu sync.Mutex
	path string
}

// NewGeoRegistry returns a registry backed by path (created on first Merge
// if it doesn't yet exist).
func NewGeoRegistry(path string) *GeoRegistry {
	return &GeoRegistry{path: path}
}

// Load reads the registry file, returning an empty map if it doesn't exist
// or is corrupt (corruption is never fatal for a side registry).
func (g *GeoRegistry) Load() (map[int]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load()
}

func (g *GeoRegistry) load() (map[int]string, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]string{}, nil
		}
		return map[int]string{}, nil
	}
	var entries []Geo
	if err := json.Unmarshal(data, &entries); err != nil {
		return map[int]string{}, nil
	}
	out := make(map[int]string, len(entries))
	for _, e := range entries {
		out[e.ID] = e.Name
	}
	return out, nil
}

// Merge adds/overwrites entries and persists the registry atomically.
func (g *GeoRegistry) Merge(entries map[int]string) error {
	if len(entries) == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	current, _ := g.load()
	for id, name := range entries {
		if name == "" {
			continue
		}
		current[id] = name
	}

	list := make([]Geo, 0, len(current))
	for id, name := range current {
		list = append(list, Geo{ID: id, Name: name})
	}
	data, err := json.MarshalIndent(list, "", " ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return err
	}
	return AtomicWriteFile(g.path, data, 0o644)
}
