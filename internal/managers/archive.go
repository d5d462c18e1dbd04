package managers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datons/esios-go/internal/core"
	"github.com/datons/esios-go/internal/errs"
	"github.com/datons/esios-go/internal/logging"
	"github.com/datons/esios-go/internal/models"
	"github.com/datons/esios-go/internal/store"
	"github.com/datons/esios-go/internal/transport"
)

// ArchiveHandle downloads and caches bundle archives for one archive id.
type ArchiveHandle struct {
	Descriptor models.ArchiveDescriptor
	transport transport.Transport
	store *store.Store
}

// NewArchiveHandle wraps descriptor for download.
func NewArchiveHandle(descriptor models.ArchiveDescriptor, t transport.Transport, s *store.Store) *ArchiveHandle {
	return &ArchiveHandle{Descriptor: descriptor, transport: t, store: s}
}

// DateType values mirror the wire contract's date_type param.
const (
	DateTypeDatos = "datos"
	DateTypePublicacion = "publicacion"
)

// Download materializes every per-day (horizon D) or per-month (horizon M)
// chunk of [start, end], skipping chunks already on disk, and returns the
// sorted list of materialized file paths. A per-chunk failure is logged and
// does not abort the remaining chunks; if any chunk failed, the returned
// paths are still the usable partial result, accompanied by a
// PartialRangeError naming what was requested versus what was actually
// served so the caller can decide whether to retry the gap.
func (h *ArchiveHandle) Download(ctx context.Context, start, end time.Time, dateType string, overwrite bool) ([]string, error) {
	keys := h.dateKeys(start, end)
	var paths []string
	var failedKeys []string

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			sort.Strings(paths)
			return paths, err
		}
		dir := h.store.ArchiveDir(h.Descriptor.ID, h.Descriptor.Name, k.key)
		if h.store.ArchiveExists(h.Descriptor.ID, h.Descriptor.Name, k.key) {
			existing, err := collectFiles(dir)
			if err != nil {
				logging.L().Warnw("listing cached bundle failed", "dir", dir, "err", err)
				failedKeys = append(failedKeys, k.key)
				continue
			}
			paths = append(paths, existing...)
			continue
		}

		files, err := h.downloadOne(ctx, dir, k, dateType, overwrite)
		if err != nil {
			logging.L().Warnw("archive chunk download failed", "archive", h.Descriptor.ID, "date_key", k.key, "err", err)
			failedKeys = append(failedKeys, k.key)
			continue
		}
		paths = append(paths, files...)
	}

	sort.Strings(paths)

	if len(failedKeys) > 0 {
		sort.Strings(failedKeys)
		requested := fmt.Sprintf("%s/%s", core.FormatDate(start), core.FormatDate(end))
		served := fmt.Sprintf("%d/%d chunks, missing %s", len(keys)-len(failedKeys), len(keys), strings.Join(failedKeys, ","))
		return paths, &errs.PartialRangeError{Requested: requested, Served: served}
	}
	return paths, nil
}

type dateKey struct {
	key string
	start time.Time
	end time.Time
}

// dateKeys enumerates the per-day or per-month chunks Download iterates
// over, according to the archive's horizon.
func (h *ArchiveHandle) dateKeys(start, end time.Time) []dateKey {
	var out []dateKey
	if h.Descriptor.Horizon == core.HorizonMonthly {
		for cur := core.FirstOfMonth(start); !cur.After(end); cur = cur.AddDate(0, 1, 0) {
			monthEnd := core.LastOfMonth(cur)
			if monthEnd.After(end) {
				monthEnd = end
			}
			out = append(out, dateKey{key: core.DateKeyMonthly(cur), start: cur, end: monthEnd})
		}
		return out
	}
	for cur := core.DateOnly(start); !cur.After(end); cur = core.AddDays(cur, 1) {
		out = append(out, dateKey{key: core.DateKeyDaily(cur), start: cur, end: cur})
	}
	return out
}

func (h *ArchiveHandle) downloadOne(ctx context.Context, dir string, k dateKey, dateType string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}

	// Named with a uuid rather than CreateTemp's counter suffix so two
	// concurrent downloads of the same date key never race on the same
	// scratch path.
	tmpName := filepath.Join(filepath.Dir(dir), ".archive-dl-"+uuid.NewString())
	tmp, err := os.Create(tmpName)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpName)

	endpoint := "archives/" + strconv.Itoa(h.Descriptor.ID)
	params := map[string]string{
		"date_type": dateType,
		"locale": "es",
	}
	if k.start.Equal(k.end) {
		params["date"] = core.FormatDate(k.start)
	} else {
		params["start_date"] = core.FormatDate(k.start)
		params["end_date"] = core.FormatDate(k.end)
	}

	if err := h.transport.Download(ctx, endpoint, params, tmp); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	switch h.Descriptor.Type {
	case core.ArchiveTypeZip:
		if err := store.ExpandArchive(tmpName, dir, overwrite); err != nil {
			return nil, err
		}
	default:
		finalName := filepath.Join(dir, fmt.Sprintf("%s_%s.xls", h.Descriptor.Name, k.key))
		data, err := os.ReadFile(tmpName)
		if err != nil {
			return nil, err
		}
		if err := store.AtomicWriteFile(finalName, data, 0o644); err != nil {
			return nil, err
		}
	}

	return collectFiles(dir)
}

func collectFiles(dir string) ([]string, error) {
	var out []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			nested, err := collectFiles(full)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, full)
	}
	return out, nil
}

// ArchiveCatalogueManager lists available archives, mirroring Manager's
// list/search shape but over the archives endpoint's lighter descriptor.
type ArchiveCatalogueManager struct {
	transport transport.Transport
	store *store.Store
	opts Options
}

// NewArchiveCatalogueManager returns a manager for the archives endpoint.
func NewArchiveCatalogueManager(t transport.Transport, s *store.Store, opts Options) *ArchiveCatalogueManager {
	return &ArchiveCatalogueManager{transport: t, store: s, opts: opts}
}

type archiveListEnvelope struct {
	Items []models.ArchiveDescriptor `json:"items"`
}

// List returns the cached archive catalogue if fresh, else fetches and
// stores it.
func (m *ArchiveCatalogueManager) List(ctx context.Context) ([]models.ArchiveDescriptor, error) {
	if cached, ok := m.store.ReadArchiveCatalog(m.opts.CatalogTTL); ok {
		return cached, nil
	}

	var env archiveListEnvelope
	if err := m.transport.Get(ctx, "archives", nil, &env); err != nil {
		return nil, err
	}

	if err := m.store.WriteArchiveCatalog(env.Items, m.opts.now()); err != nil {
		logging.L().Warnw("archive catalogue write-back failed", "err", err)
	}
	return env.Items, nil
}

// Handle resolves an ArchiveHandle for id using the archive list's
// descriptor.
func (m *ArchiveCatalogueManager) Handle(ctx context.Context, id int) (*ArchiveHandle, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		if d.ID == id {
			return NewArchiveHandle(d, m.transport, m.store), nil
		}
	}
	return nil, fmt.Errorf("archive %d not found in catalogue", id)
}
