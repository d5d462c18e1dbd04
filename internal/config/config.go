// Package config loads layered configuration:
// config file < environment variables < CLI flags, using spf13/viper for
// the merge, turning root.go's persistent flags into a proper layered
// source instead of flags alone.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/datons/esios-go/internal/core"
	"github.com/datons/esios-go/internal/errs"
)

// Config is the resolved, validated configuration for one CLI invocation.
type Config struct {
	APIKey string
	BaseURL string
	CacheDir string
	Timezone string
	LogLevel string
	ChunkDays int
	RecentTTL time.Duration
	MetaTTL time.Duration
	CatalogTTL time.Duration
}

// Load resolves configuration from (in ascending precedence) the config
// file, ESIOS_-prefixed environment variables, and pre-bound CLI flags on
// v, then validates the required fields.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range configDirs() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, &errs.ConfigError{Msg: "reading config file: " + err.Error()}
		}
	}

	v.SetEnvPrefix("ESIOS")
	v.AutomaticEnv()

	cfg := &Config{
		APIKey: v.GetString("api_key"),
		BaseURL: v.GetString("base_url"),
		CacheDir: v.GetString("cache_dir"),
		Timezone: v.GetString("timezone"),
		LogLevel: v.GetString("log_level"),
		ChunkDays: v.GetInt("chunk_days"),
		RecentTTL: v.GetDuration("recent_ttl"),
		MetaTTL: v.GetDuration("meta_ttl"),
		CatalogTTL: v.GetDuration("catalog_ttl"),
	}

	if cfg.APIKey == "" {
		return nil, &errs.ConfigError{Msg: "missing API key: set " + core.APIKeyEnvVar + " or api_key in the config file"}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", core.APIBaseURL)
	v.SetDefault("cache_dir", core.CacheRoot())
	v.SetDefault("timezone", core.DefaultTZ)
	v.SetDefault("log_level", "info")
	v.SetDefault("chunk_days", core.DefaultChunkMaxDays)
	v.SetDefault("recent_ttl", time.Duration(core.DefaultRecentTTLHours)*time.Hour)
	v.SetDefault("meta_ttl", time.Duration(core.DefaultMetaTTLDays)*24*time.Hour)
	v.SetDefault("catalog_ttl", time.Duration(core.DefaultCatalogTTLHours)*time.Hour)
}

// configDirs lists candidate directories for config.yaml, honouring
// XDG_CONFIG_HOME before falling back to ~/.config/esios.
func configDirs() []string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return []string{filepath.Join(dir, "esios")}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}
	}
	return []string{filepath.Join(home, ".config", "esios")}
}

// ConfigFilePath returns the path config get/set should read and write,
// regardless of whether it currently exists.
func ConfigFilePath() string {
	return filepath.Join(configDirs()[0], "config.yaml")
}
