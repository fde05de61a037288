// Package config loads shop settings from defaults, an optional config file
// and SHOPKEEPER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/dvloznov/shopkeeper/internal/search"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverGCS    = "gcs"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Shop     ShopConfig     `mapstructure:"shop"`
	Store    StoreConfig    `mapstructure:"store"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Search   SearchConfig   `mapstructure:"search"`
	Persist  PersistConfig  `mapstructure:"persist"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Notion   NotionConfig   `mapstructure:"notion"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ShopConfig holds the defaults for the shop profile and calendar.
type ShopConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Currency string `mapstructure:"currency"`
	Timezone string `mapstructure:"timezone"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix"`
}

// GeminiConfig holds the assistant backend settings. An empty APIKey
// disables every Gemini-backed collaborator.
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SearchConfig bounds the combination search.
type SearchConfig struct {
	MaxMultiple     int `mapstructure:"max_multiple"`
	MaxPairQuantity int `mapstructure:"max_pair_quantity"`
	TopK            int `mapstructure:"top_k"`
}

// PersistConfig tunes the persistence queue.
type PersistConfig struct {
	Workers    int `mapstructure:"workers"`
	MaxRetries int `mapstructure:"max_retries"`
	Buffer     int `mapstructure:"buffer"`
}

// BigQueryConfig enables the sales mirror when Project is set.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

// NotionConfig holds Notion sync credentials.
type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// Load reads configuration from file and env. Env var overrides use prefix SHOPKEEPER_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv("SHOPKEEPER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "shopkeeper"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SHOPKEEPER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("Load: read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("shop.name", "")
	v.SetDefault("shop.type", "General Store")
	v.SetDefault("shop.currency", "INR")
	v.SetDefault("shop.timezone", "Asia/Kolkata")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.sqlite_path", filepath.Join(os.Getenv("HOME"), ".local", "share", "shopkeeper", "shop.db"))
	v.SetDefault("store.gcs_bucket", "")
	v.SetDefault("store.gcs_prefix", "shopkeeper")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.timeout", "20s")
	v.SetDefault("search.max_multiple", search.DefaultMaxMultiple)
	v.SetDefault("search.max_pair_quantity", search.DefaultMaxPairQuantity)
	v.SetDefault("search.top_k", search.DefaultTopK)
	v.SetDefault("persist.workers", 1)
	v.SetDefault("persist.max_retries", 3)
	v.SetDefault("persist.buffer", 100)
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "shop")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverGCS:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverGCS && c.Store.GCSBucket == "" {
		return fmt.Errorf("store.gcs_bucket is required for the gcs driver")
	}
	if _, err := time.LoadLocation(c.Shop.Timezone); err != nil {
		return fmt.Errorf("invalid shop.timezone %q: %w", c.Shop.Timezone, err)
	}
	return nil
}

// Location returns the shop time zone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Shop.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SearchOptions converts the search section into engine options.
func (c Config) SearchOptions() search.Config {
	return search.Config{
		MaxMultiple:     c.Search.MaxMultiple,
		MaxPairQuantity: c.Search.MaxPairQuantity,
		TopK:            c.Search.TopK,
	}
}
