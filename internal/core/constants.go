// Package core provides shared constants and small date/time helpers used
// throughout the esios client and CLI.
package core

import (
	"os"
	"path/filepath"
)

// API configuration.
const (
	APIBaseURL = "https://api.esios.ree.es"
	APIVersion = "v1"
	APIKeyEnvVar = "ESIOS_API_KEY"
	DefaultTZ = "Europe/Madrid"
)

// Endpoints an Item can belong to.
const (
	EndpointIndicators = "indicators"
	EndpointOfferIndicators = "offer_indicators"
)

// Date/time formats used on the wire and on disk.
const (
	DateFmt = "2006-01-02"
	DatetimeFmt = "2006-01-02T15:04:05"
	DateKeyDay = "20060102"
	DateKeyMon = "200601"
)

// Fetch/caching defaults.
const (
	DefaultRecentTTLHours = 48
	DefaultMetaTTLDays = 7
	DefaultCatalogTTLHours = 24
	DefaultChunkMaxDays = 21
)

// Archive horizons and types.
const (
	HorizonDaily = "D"
	HorizonMonthly = "M"

	ArchiveTypeZip = "zip"
	ArchiveTypeXLS = "xls"
)

// Version is the current CLI version.
const Version = "0.1.0"

// CacheRoot returns the default on-disk cache root, honouring XDG_CACHE_HOME.
func CacheRoot() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "esios")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "esios")
}
