// Package models holds the wire/domain types shared by internal/transport,
// internal/managers, internal/store, and internal/cli: catalogue entries,
// item identity, metadata, and archive bundle descriptions.
package models

import "time"

// Item identifies a single indicator or offer-indicator by its endpoint
// ("indicators" or "offer_indicators") and numeric ID.
type Item struct {
	Endpoint string `json:"endpoint"`
	ID int `json:"id"`
}

// CatalogueEntry is one row of an endpoint's catalogue listing.
type CatalogueEntry struct {
	ID int `json:"id"`
	Name string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Metadata is the full per-item metadata payload returned by the API's
// indicator/offer_indicator detail endpoints.
type Metadata struct {
	ID int `json:"id"`
	Name string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
	ColumnName string `json:"column_name,omitempty"`
	Disabled bool `json:"disabled"`
	Geos []GeoRef `json:"geos,omitempty"`
	Tags []string `json:"tags,omitempty"`
	Extra map[string]string `json:"-"`
	FetchedAt time.Time `json:"-"`
}

// GeoRef names one geographic breakdown an item's values may be reported
// under.
type GeoRef struct {
	ID int `json:"geo_id"`
	Name string `json:"geo_name"`
}

// ArchiveDescriptor describes a downloadable archive/bundle item: its ID,
// display name, and the horizon at which ESIOS publishes it (daily or
// monthly).
type ArchiveDescriptor struct {
	ID int `json:"id"`
	Name string `json:"name"`
	Horizon string `json:"horizon"` // core.HorizonDaily | core.HorizonMonthly
	Type string `json:"type"` // core.ArchiveTypeZip | core.ArchiveTypeXLS
	FileName string `json:"file_name,omitempty"`
}

// DownloadedBundle records where one horizon-period's archive payload was
// written on disk and whether it was a compressed container that got
// expanded in place.
type DownloadedBundle struct {
	Archive ArchiveDescriptor
	DateKey string
	Path string
	Expanded bool
	SkippedAt time.Time
}
