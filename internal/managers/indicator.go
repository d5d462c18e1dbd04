// Package managers implements the Item Handle and Manager/Catalogue layers:
// the public surface callers use to fetch historical wide frames and
// list/search/describe items, orchestrating internal/planner,
// internal/transport, and internal/store for column-sparse, gap-planned
// indicator history.
package managers

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datons/esios-go/internal/logging"
	"github.com/datons/esios-go/internal/metrics"
	"github.com/datons/esios-go/internal/models"
	"github.com/datons/esios-go/internal/planner"
	"github.com/datons/esios-go/internal/store"
	"github.com/datons/esios-go/internal/transport"
)

// Options configures the manager layer's TTLs and chunking, sourced from
// internal/config.Config.
type Options struct {
	ChunkDays int
	RecentTTL time.Duration
	MetaTTL time.Duration
	CatalogTTL time.Duration
	// Resolution is the item's sampling interval, used by the Gap Planner
	// to trim a pre/post gap boundary one unit away from cached coverage.
	// ESIOS indicators are predominantly hourly.
	Resolution time.Duration
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) resolution() time.Duration {
	if o.Resolution > 0 {
		return o.Resolution
	}
	return time.Hour
}

// IndicatorHandle is the public surface for one (endpoint, id) item:
// historical(), resolveGeo(), and its metadata.
type IndicatorHandle struct {
	Item models.Item
	Meta models.Metadata
	transport transport.Transport
	store *store.Store
	opts Options
}

// HistoricalOptions parameterizes one Historical() call.
type HistoricalOptions struct {
	Start, End time.Time
	GeoIDs []int
	TimeAgg string
	GeoAgg string
}

func (o HistoricalOptions) cacheable() bool {
	return o.TimeAgg == "" && o.GeoAgg == ""
}

// valuesEnvelope matches the wire contract:
// GET /{endpoint}/{id} -> {"item": {...metadata..., "values": [...]}}.
type valuesEnvelope struct {
	Item struct {
		Values []models.RawValue `json:"values"`
	} `json:"item"`
}

// Historical is the cache-aware historical fetch: it plans the gaps between
// what's cached and what was asked for, fetches only those chunks, merges
// the result into the cache, and returns the requested slice.
func (h *IndicatorHandle) Historical(ctx context.Context, opts HistoricalOptions) (*store.WideFrame, error) {
	useCache := opts.cacheable()
	columns := h.resolveColumns(opts.GeoIDs)

	var cached *store.WideFrame
	var err error
	if useCache {
		cached, err = h.store.Read(h.Item.Endpoint, h.Item.ID, opts.Start, opts.End, columns)
		if err != nil {
			return nil, err
		}
	} else {
		cached = store.NewWideFrame()
	}

	var gaps []store.DateRange
	if useCache {
		gaps = planner.FindGaps(cached, opts.Start, opts.End, columns, h.opts.RecentTTL, h.opts.now(), h.opts.resolution())
	} else {
		gaps = []store.DateRange{{Start: opts.Start, End: opts.End}}
	}

	if len(gaps) == 0 {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return finalizeColumns(cached, h.Item.ID), nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	var allObs []models.Observation
	geoUpdates := make(map[int]string)
	sawAnyResponse := false

	for _, gap := range gaps {
		for _, chunk := range planner.ChunkRange(gap, h.opts.ChunkDays) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			params := h.buildParams(chunk, opts)
			var env valuesEnvelope
			if err := h.transport.Get(ctx, h.endpointPath(), params, &env); err != nil {
				logging.L().Warnw("fetch chunk failed", "item", h.Item, "chunk", chunk, "err", err)
				return nil, err
			}
			raw := env.Item.Values
			if len(raw) > 0 {
				sawAnyResponse = true
			}
			variant := models.Classify(raw)
			allObs = append(allObs, variant.Flatten()...)
			for id, name := range variant.Geos() {
				geoUpdates[id] = name
			}
		}
	}

	if !sawAnyResponse && cached.Empty() {
		return store.NewWideFrame(), nil
	}

	if len(geoUpdates) > 0 {
		h.enrichGeos(geoUpdates)
	}

	newFrame := h.pivot(allObs, geoUpdates)

	if useCache && !newFrame.Empty() {
		if err := h.store.Write(h.Item.Endpoint, h.Item.ID, newFrame); err != nil {
			return nil, err
		}
	}

	var result *store.WideFrame
	if useCache {
		result, err = h.store.Read(h.Item.Endpoint, h.Item.ID, opts.Start, opts.End, columns)
		if err != nil {
			return nil, err
		}
	} else {
		result = store.Merge(cached, newFrame).Slice(opts.Start, opts.End)
		if len(columns) > 0 {
			result = result.FilterColumns(columns)
		}
	}

	return finalizeColumns(result, h.Item.ID), nil
}

// finalizeColumns renames a single-column, no-geo result from the generic
// "value" column to the item id, so multiple items can be joined side by
// side without collision.
func finalizeColumns(f *store.WideFrame, itemID int) *store.WideFrame {
	if len(f.Columns) == 1 && f.Columns[0] == "value" {
		f.RenameColumn("value", strconv.Itoa(itemID))
	}
	return f
}

// resolveColumns maps requested geo ids to their display column name,
// checking item metadata first, then the global registry, then falling
// back to the stringified id. A nil/empty geoIDs means "no column filter".
func (h *IndicatorHandle) resolveColumns(geoIDs []int) []string {
	if len(geoIDs) == 0 {
		return nil
	}
	registry, _ := h.store.ReadGeos()
	columns := make([]string, 0, len(geoIDs))
	for _, id := range geoIDs {
		columns = append(columns, h.columnNameFor(id, registry))
	}
	return columns
}

func (h *IndicatorHandle) columnNameFor(geoID int, registry map[int]string) string {
	for _, g := range h.Meta.Geos {
		if g.ID == geoID && g.Name != "" {
			return g.Name
		}
	}
	if name, ok := registry[geoID]; ok && name != "" {
		return name
	}
	return strconv.Itoa(geoID)
}

// enrichGeos appends any (geo_id, geo_name) observed but not already known
// to the item's metadata and the global registry.
func (h *IndicatorHandle) enrichGeos(seen map[int]string) {
	known := make(map[int]bool, len(h.Meta.Geos))
	for _, g := range h.Meta.Geos {
		known[g.ID] = true
	}
	for id, name := range seen {
		if !known[id] {
			h.Meta.Geos = append(h.Meta.Geos, models.GeoRef{ID: id, Name: name})
			known[id] = true
		}
	}
	if err := h.store.MergeGeos(seen); err != nil {
		logging.L().Warnw("geo registry merge failed", "err", err)
	}
	if err := h.store.WriteMeta(h.Item.Endpoint, h.Item.ID, h.Meta, h.opts.now()); err != nil {
		logging.L().Warnw("metadata write-back failed", "err", err)
	}
}

// pivot turns a flat observation list into a Wide Frame: index = timestamp,
// columns = geo name (or "value"), duplicate (timestamp, column) pairs keep
// the first occurrence.
func (h *IndicatorHandle) pivot(obs []models.Observation, freshGeoNames map[int]string) *store.WideFrame {
	registry, _ := h.store.ReadGeos()

	type cell struct {
		t time.Time
		col string
	}
	seen := make(map[cell]bool)
	byTime := make(map[int64]map[string]float64)
	var order []time.Time
	colSeen := make(map[string]bool)
	var columns []string

	for _, o := range obs {
		col := "value"
		if o.GeoID != 0 {
			col = h.resolveObservationColumn(o, registry, freshGeoNames)
		}
		key := cell{t: o.Time, col: col}
		if seen[key] {
			continue
		}
		seen[key] = true

		ts := o.Time.UnixNano()
		row, ok := byTime[ts]
		if !ok {
			row = make(map[string]float64)
			byTime[ts] = row
			order = append(order, o.Time)
		}
		row[col] = o.Value

		if !colSeen[col] {
			colSeen[col] = true
			columns = append(columns, col)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	sort.Strings(columns)

	f := store.NewWideFrame()
	f.Columns = columns
	f.Index = order
	for _, c := range columns {
		f.Data[c] = make([]float64, len(order))
		for i, t := range order {
			if v, ok := byTime[t.UnixNano()][c]; ok {
				f.Data[c][i] = v
			} else {
				f.Data[c][i] = math.NaN()
			}
		}
	}
	return f
}

func (h *IndicatorHandle) resolveObservationColumn(o models.Observation, registry, fresh map[int]string) string {
	if o.Geo != "" {
		return o.Geo
	}
	if name, ok := fresh[o.GeoID]; ok && name != "" {
		return name
	}
	if name, ok := registry[o.GeoID]; ok && name != "" {
		return name
	}
	return strconv.Itoa(o.GeoID)
}

func (h *IndicatorHandle) endpointPath() string {
	return h.Item.Endpoint + "/" + strconv.Itoa(h.Item.ID)
}

func (h *IndicatorHandle) buildParams(r store.DateRange, opts HistoricalOptions) map[string]string {
	params := map[string]string{
		"start_date": r.Start.Format(time.RFC3339),
		"end_date": r.End.Format(time.RFC3339),
	}
	if opts.TimeAgg != "" {
		params["time_trunc"] = opts.TimeAgg
	}
	if opts.GeoAgg != "" {
		params["geo_agg"] = opts.GeoAgg
	}
	return params
}

// ResolveGeo resolves a geo name or id to its canonical (id, name) pair. A
// name is matched case-insensitively against item metadata, then against
// the global registry; a numeric id is looked up in the global registry,
// then in item metadata.
func (h *IndicatorHandle) ResolveGeo(input string) (models.GeoRef, bool) {
	for _, g := range h.Meta.Geos {
		if strings.EqualFold(g.Name, input) {
			return g, true
		}
	}
	registry, _ := h.store.ReadGeos()
	for id, name := range registry {
		if strings.EqualFold(name, input) {
			return models.GeoRef{ID: id, Name: name}, true
		}
	}
	if id, err := strconv.Atoi(input); err == nil {
		if name, ok := registry[id]; ok {
			return models.GeoRef{ID: id, Name: name}, true
		}
		for _, g := range h.Meta.Geos {
			if g.ID == id {
				return g, true
			}
		}
	}
	return models.GeoRef{}, false
}
