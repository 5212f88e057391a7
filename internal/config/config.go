package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	ValidatorStoreFile  = "file"
	ValidatorStoreRedis = "redis"

	defaultListen       = ":8080"
	defaultAssetDir     = "./tags"
	defaultCacheDir     = "./cache"
	defaultExportName   = "tags-export.json"
	defaultFetchTimeout = 60 * time.Second
	defaultQueryTimeout = 2 * time.Minute
	defaultScheduleAt   = "03:00"
)

type CatalogConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type SyncConfig struct {
	AssetDir        string        `yaml:"asset_dir"`
	CacheDir        string        `yaml:"cache_dir"`
	ExportPath      string        `yaml:"export_path"`
	Recheck         bool          `yaml:"recheck"`
	Force           bool          `yaml:"force"`
	ExcludePrefixes []string      `yaml:"exclude_prefixes"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	ValidatorStore  string        `yaml:"validator_store"`
}

type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	At      string `yaml:"at"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type Config struct {
	Listen    string          `yaml:"listen"`
	RedisURL  string          `yaml:"redis_url"`
	Log       LogConfig       `yaml:"log"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Sync      SyncConfig      `yaml:"sync"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

func (c *Config) SetDefaults() {
	c.Listen = defaultListen
	c.Log.Level = LogLevelInfo
	c.Log.MaxSizeMB = 10
	c.Log.MaxBackups = 3
	c.Catalog.Timeout = defaultQueryTimeout
	c.Sync.AssetDir = defaultAssetDir
	c.Sync.CacheDir = defaultCacheDir
	c.Sync.FetchTimeout = defaultFetchTimeout
	c.Sync.ValidatorStore = ValidatorStoreFile
	c.Scheduler.Enabled = true
	c.Scheduler.At = defaultScheduleAt
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load reads defaults, then the YAML file at path (a missing file is not an
// error), then a .env file from the working directory, then the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Sync.ExportPath == "" {
		cfg.Sync.ExportPath = filepath.Join(cfg.Sync.CacheDir, defaultExportName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"STASH_URL":       &c.Catalog.URL,
		"STASH_APIKEY":    &c.Catalog.APIKey,
		"TAG_PATH":        &c.Sync.AssetDir,
		"CACHE_PATH":      &c.Sync.CacheDir,
		"EXPORT_PATH":     &c.Sync.ExportPath,
		"VALIDATOR_STORE": &c.Sync.ValidatorStore,
		"REDIS_URL":       &c.RedisURL,
		"LISTEN":          &c.Listen,
		"LOG_LEVEL":       &c.Log.Level,
		"LOG_FILE":        &c.Log.File,
		"SCHEDULE_AT":     &c.Scheduler.At,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	boolVars := map[string]*bool{
		"RECHECK_ETAG":      &c.Sync.Recheck,
		"FORCE_REFRESH":     &c.Sync.Force,
		"SCHEDULER_ENABLED": &c.Scheduler.Enabled,
	}
	for name, dst := range boolVars {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}

		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean in %s: %q", name, v)
		}
		*dst = b
	}

	if v, ok := os.LookupEnv("EXCLUDE_PREFIXES"); ok {
		c.Sync.ExcludePrefixes = splitList(v)
	}

	return nil
}

func (c *Config) Validate() error {
	switch c.Log.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	switch c.Sync.ValidatorStore {
	case ValidatorStoreFile:
	case ValidatorStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("validator store %q requires redis_url", c.Sync.ValidatorStore)
		}
	default:
		return fmt.Errorf("unknown validator store %q", c.Sync.ValidatorStore)
	}

	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog url must be set")
	}
	if u, err := url.Parse(c.Catalog.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid catalog url %q", c.Catalog.URL)
	}

	if c.Sync.AssetDir == "" {
		return fmt.Errorf("asset_dir must be set")
	}

	if c.Sync.CacheDir == "" {
		return fmt.Errorf("cache_dir must be set")
	}

	if c.Scheduler.Enabled {
		if _, err := time.Parse("15:04", c.Scheduler.At); err != nil {
			return fmt.Errorf("invalid scheduler time %q: %w", c.Scheduler.At, err)
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
