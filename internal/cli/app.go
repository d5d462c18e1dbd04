package cli

import (
	"github.com/datons/esios-go/internal/managers"
	"github.com/datons/esios-go/internal/store"
	"github.com/datons/esios-go/internal/transport"
)

// newStore builds the Cache Store rooted at the resolved configuration's
// cache directory.
func newStore() *store.Store {
	return store.NewStore(cfg.CacheDir)
}

// newTransport builds the production HTTP Transport from resolved config.
func newTransport() transport.Transport {
	return transport.NewClient(cfg.APIKey, cfg.BaseURL)
}

func managerOptions() managers.Options {
	return managers.Options{
		ChunkDays: cfg.ChunkDays,
		RecentTTL: cfg.RecentTTL,
		MetaTTL: cfg.MetaTTL,
		CatalogTTL: cfg.CatalogTTL,
	}
}

func newManager(endpoint string) *managers.Manager {
	return managers.NewManager(endpoint, newTransport(), newStore(), managerOptions())
}

func newArchiveManager() *managers.ArchiveCatalogueManager {
	return managers.NewArchiveCatalogueManager(newTransport(), newStore(), managerOptions())
}
