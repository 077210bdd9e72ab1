package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"P3Recon/internal/domain"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "P3RECON_CONFIG"
	databaseDrvEnv  = "DATABASE_DRIVER"
	databaseDSNEnv  = "DATABASE_DSN"
	serverAddrEnv   = "P3RECON_ADDR"
	datasetURLEnv   = "DATASET_URL"
	logLevelEnv     = "LOG_LEVEL"
)

// Enricher kinds understood by the application wiring.
const (
	KindFeed = "feed"
	KindPage = "page"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Database  DatabaseConfig   `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Cache     CacheConfig      `yaml:"cache"`
	Dataset   DatasetConfig    `yaml:"dataset"`
	Refresh   RefreshConfig    `yaml:"refresh"`
	Search    SearchConfig     `yaml:"search"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Enrichers []EnricherConfig `yaml:"enrichers"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the relational store. Driver is "sqlite" or "pgx".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig is the listen address of the JSON API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// CacheConfig tunes the on-disk request cache and outbound pacing.
type CacheConfig struct {
	Dir         string        `yaml:"dir"`
	TTL         time.Duration `yaml:"ttl"`
	MinInterval time.Duration `yaml:"minInterval"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"userAgent"`
}

// DatasetConfig points at the parcel CSV and its local copy.
type DatasetConfig struct {
	URL       string `yaml:"url"`
	LocalPath string `yaml:"localPath"`
}

// RefreshConfig holds default size thresholds for refreshes.
type RefreshConfig struct {
	MinAcres    float64 `yaml:"minAcres"`
	MinBldgSqft float64 `yaml:"minBldgSqft"`
}

// SearchConfig bounds caller-supplied search radii.
type SearchConfig struct {
	DefaultRadiusMiles float64 `yaml:"defaultRadiusMiles"`
	MaxRadiusMiles     float64 `yaml:"maxRadiusMiles"`
}

// SchedulerConfig defines when background refreshes run. Empty expression disables it.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// EnricherConfig declares one signal source. Kind "feed" runs a search-feed
// query built from the candidate plus Keywords; kind "page" scans a fixed page
// for the candidate's town. Options are extra query parameters appended to a
// feed URL (locale, edition); page enrichers ignore them.
type EnricherConfig struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	SignalType string            `yaml:"signalType"`
	URL        string            `yaml:"url"`
	Keywords   []string          `yaml:"keywords"`
	Limit      int               `yaml:"limit"`
	Options    map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An explicit path wins over the P3RECON_CONFIG variable.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Enrichers) == 0 {
		cfg.Enrichers = defaultConfig().Enrichers
	}

	return cfg
}

// Validate reports the first setting the application cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return &domain.ConfigError{Field: "database.driver", Reason: fmt.Sprintf("unsupported driver %q", c.Database.Driver)}
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return &domain.ConfigError{Field: "database.dsn", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return &domain.ConfigError{Field: "cache.dir", Reason: "must not be empty"}
	}
	if c.Cache.TTL <= 0 {
		return &domain.ConfigError{Field: "cache.ttl", Reason: "must be positive"}
	}
	if c.Cache.Timeout <= 0 {
		return &domain.ConfigError{Field: "cache.timeout", Reason: "must be positive"}
	}
	if strings.TrimSpace(c.Dataset.LocalPath) == "" {
		return &domain.ConfigError{Field: "dataset.localPath", Reason: "must not be empty"}
	}

	seen := map[string]bool{}
	for i, e := range c.Enrichers {
		field := fmt.Sprintf("enrichers[%d]", i)
		if e.Name == "" {
			return &domain.ConfigError{Field: field + ".name", Reason: "must not be empty"}
		}
		if seen[e.Name] {
			return &domain.ConfigError{Field: field + ".name", Reason: fmt.Sprintf("duplicate enricher %q", e.Name)}
		}
		seen[e.Name] = true
		if e.Kind != KindFeed && e.Kind != KindPage {
			return &domain.ConfigError{Field: field + ".kind", Reason: fmt.Sprintf("unknown kind %q", e.Kind)}
		}
		if e.URL == "" {
			return &domain.ConfigError{Field: field + ".url", Reason: "must not be empty"}
		}
		if e.SignalType == "" {
			return &domain.ConfigError{Field: field + ".signalType", Reason: "must not be empty"}
		}
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDrvEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(datasetURLEnv); v != "" {
		c.Dataset.URL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Cache.Dir != "" {
		base.Cache.Dir = override.Cache.Dir
	}
	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}
	if override.Cache.MinInterval > 0 {
		base.Cache.MinInterval = override.Cache.MinInterval
	}
	if override.Cache.Timeout > 0 {
		base.Cache.Timeout = override.Cache.Timeout
	}
	if override.Cache.UserAgent != "" {
		base.Cache.UserAgent = override.Cache.UserAgent
	}

	if override.Dataset.URL != "" {
		base.Dataset.URL = override.Dataset.URL
	}
	if override.Dataset.LocalPath != "" {
		base.Dataset.LocalPath = override.Dataset.LocalPath
	}

	if override.Refresh.MinAcres > 0 {
		base.Refresh.MinAcres = override.Refresh.MinAcres
	}
	if override.Refresh.MinBldgSqft > 0 {
		base.Refresh.MinBldgSqft = override.Refresh.MinBldgSqft
	}

	if override.Search.DefaultRadiusMiles > 0 {
		base.Search.DefaultRadiusMiles = override.Search.DefaultRadiusMiles
	}
	if override.Search.MaxRadiusMiles > 0 {
		base.Search.MaxRadiusMiles = override.Search.MaxRadiusMiles
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if len(override.Enrichers) > 0 {
		base.Enrichers = override.Enrichers
	}

	return base
}

// Default returns the built-in configuration without file or env input.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/p3recon.db"},
		Server:   ServerConfig{Addr: "127.0.0.1:8080"},
		Cache: CacheConfig{
			Dir:         "data/cache",
			TTL:         24 * time.Hour,
			MinInterval: time.Second,
			Timeout:     30 * time.Second,
			UserAgent:   "P3Recon/1.0 (parcel research)",
		},
		Dataset:   DatasetConfig{URL: "", LocalPath: "data/parcels.csv"},
		Refresh:   RefreshConfig{MinAcres: 0, MinBldgSqft: 0},
		Search:    SearchConfig{DefaultRadiusMiles: 10, MaxRadiusMiles: 200},
		Scheduler: SchedulerConfig{CronExpression: "", Timezone: defaultTimezone, location: tz},
		Enrichers: []EnricherConfig{
			{
				Name:       "news",
				Kind:       KindFeed,
				SignalType: string(domain.SignalNews),
				URL:        "https://news.google.com/rss/search?q={query}",
				Keywords:   []string{"redevelopment", "facility"},
				Limit:      3,
				Options:    map[string]string{"hl": "en-US", "gl": "US", "ceid": "US:en"},
			},
			{
				Name:       "warn",
				Kind:       KindPage,
				SignalType: string(domain.SignalWARN),
				URL:        "https://jobs.mo.gov/warn",
			},
			{
				Name:       "foreclosure",
				Kind:       KindFeed,
				SignalType: string(domain.SignalTaxSale),
				URL:        "https://news.google.com/rss/search?q={query}",
				Keywords:   []string{"tax sale", "foreclosure"},
				Limit:      2,
				Options:    map[string]string{"hl": "en-US", "gl": "US", "ceid": "US:en"},
			},
		},
	}
}
