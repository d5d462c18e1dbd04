package managers

import (
	"context"
	"strconv"
	"strings"

	"github.com/datons/esios-go/internal/logging"
	"github.com/datons/esios-go/internal/models"
	"github.com/datons/esios-go/internal/store"
	"github.com/datons/esios-go/internal/transport"
)

// Manager is the per-endpoint catalogue/lookup surface.
type Manager struct {
	Endpoint string
	transport transport.Transport
	store *store.Store
	opts Options
}

// NewManager returns a Manager for one endpoint ("indicators" or
// "offer_indicators").
func NewManager(endpoint string, t transport.Transport, s *store.Store, opts Options) *Manager {
	return &Manager{Endpoint: endpoint, transport: t, store: s, opts: opts}
}

// catalogueEnvelope matches the wire contract:
// GET /{endpoint} -> {"items": [...]}.
type catalogueEnvelope struct {
	Items []models.CatalogueEntry `json:"items"`
}

// List returns the cached catalogue if fresh, else fetches, stores the
// lightweight projection, and returns it.
func (m *Manager) List(ctx context.Context) ([]models.CatalogueEntry, error) {
	if cached, ok := m.store.ReadCatalog(m.Endpoint, m.opts.CatalogTTL); ok {
		return cached, nil
	}

	var env catalogueEnvelope
	if err := m.transport.Get(ctx, m.Endpoint, nil, &env); err != nil {
		return nil, err
	}
	entries := env.Items

	if err := m.store.WriteCatalog(m.Endpoint, entries, m.opts.now()); err != nil {
		logging.L().Warnw("catalogue write-back failed", "endpoint", m.Endpoint, "err", err)
	}
	return entries, nil
}

// Search operates over the (possibly cached) catalogue with a
// case-insensitive substring match against name and short_name.
func (m *Manager) Search(ctx context.Context, query string) ([]models.CatalogueEntry, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []models.CatalogueEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.ShortName), q) {
			out = append(out, e)
		}
	}
	return out, nil
}

// itemDetailEnvelope matches the wire contract:
// GET /{endpoint}/{id} -> {"item": {...metadata..., "values": [...]}}.
type itemDetailEnvelope struct {
	Item struct {
		models.Metadata
		Values []models.RawValue `json:"values"`
	} `json:"item"`
}

// Get returns a Handle for id: uses cached metadata without a network call
// when fresh, else fetches, stores, and merges declared geos into the
// global registry.
func (m *Manager) Get(ctx context.Context, id int) (*IndicatorHandle, error) {
	item := models.Item{Endpoint: m.Endpoint, ID: id}

	if meta, ok := m.store.ReadMeta(m.Endpoint, id, m.opts.MetaTTL); ok {
		return m.newHandle(item, *meta), nil
	}

	var env itemDetailEnvelope
	if err := m.transport.Get(ctx, item.Endpoint+"/"+strconv.Itoa(id), nil, &env); err != nil {
		return nil, err
	}
	meta := env.Item.Metadata

	if len(meta.Geos) > 0 {
		geos := make(map[int]string, len(meta.Geos))
		for _, g := range meta.Geos {
			if g.Name != "" {
				geos[g.ID] = g.Name
			}
		}
		if err := m.store.MergeGeos(geos); err != nil {
			logging.L().Warnw("geo registry merge failed", "err", err)
		}
	}

	if err := m.store.WriteMeta(m.Endpoint, id, meta, m.opts.now()); err != nil {
		logging.L().Warnw("metadata write-back failed", "endpoint", m.Endpoint, "id", id, "err", err)
	}
	return m.newHandle(item, meta), nil
}

func (m *Manager) newHandle(item models.Item, meta models.Metadata) *IndicatorHandle {
	return &IndicatorHandle{Item: item, Meta: meta, transport: m.transport, store: m.store, opts: m.opts}
}
