// Package config loads markdex configuration from YAML files with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/markdex/markdex/internal/logging"
)

// Duration wraps time.Duration so YAML values like "5m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RepoConfig describes the git repository holding the documents.
type RepoConfig struct {
	// URL is the remote to clone from. Empty means DataDir must
	// already contain a repository.
	URL string `yaml:"url"`
	// Branch to sync. Empty uses the remote default.
	Branch string `yaml:"branch"`
	// DataDir is where the local clone lives.
	DataDir string `yaml:"data_dir"`
	// Username and Token authenticate HTTP remotes.
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
	// SyncInterval is the period of the background sync loop.
	SyncInterval Duration `yaml:"sync_interval"`
}

// IndexConfig tunes the in-memory index.
type IndexConfig struct {
	// RetireGrace is how long superseded index views stay open.
	RetireGrace Duration `yaml:"retire_grace"`
	// CreatedCacheSize bounds the creation-time LRU cache.
	CreatedCacheSize int `yaml:"created_cache_size"`
	// Workers bounds concurrent document loads per sync cycle.
	Workers int `yaml:"workers"`
}

// SearchConfig tunes pagination.
type SearchConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// CacheConfig describes the optional Redis search cache. An empty
// Addr disables caching.
type CacheConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// Config is the root configuration.
type Config struct {
	Repo    RepoConfig     `yaml:"repo"`
	Index   IndexConfig    `yaml:"index"`
	Search  SearchConfig   `yaml:"search"`
	Server  ServerConfig   `yaml:"server"`
	Cache   CacheConfig    `yaml:"cache"`
	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Repo: RepoConfig{
			DataDir:      filepath.Join(home, ".markdex", "repo"),
			SyncInterval: Duration(5 * time.Minute),
		},
		Index: IndexConfig{
			RetireGrace:      Duration(time.Minute),
			CreatedCacheSize: 4096,
			Workers:          4,
		},
		Search: SearchConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Cache: CacheConfig{
			TTL: Duration(30 * time.Second),
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the config file at path, layered over defaults, then
// applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg fields from MARKDEX_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MARKDEX_REPO_URL"); v != "" {
		cfg.Repo.URL = v
	}
	if v := os.Getenv("MARKDEX_REPO_BRANCH"); v != "" {
		cfg.Repo.Branch = v
	}
	if v := os.Getenv("MARKDEX_DATA_DIR"); v != "" {
		cfg.Repo.DataDir = v
	}
	if v := os.Getenv("MARKDEX_REPO_USERNAME"); v != "" {
		cfg.Repo.Username = v
	}
	if v := os.Getenv("MARKDEX_REPO_TOKEN"); v != "" {
		cfg.Repo.Token = v
	}
	if v := os.Getenv("MARKDEX_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Repo.SyncInterval = Duration(d)
		}
	}
	if v := os.Getenv("MARKDEX_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MARKDEX_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MARKDEX_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MARKDEX_CACHE_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = n
		}
	}
	if v := os.Getenv("MARKDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MARKDEX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks invariants that would otherwise surface as obscure
// runtime failures.
func (c *Config) Validate() error {
	if c.Repo.DataDir == "" {
		return fmt.Errorf("repo.data_dir must not be empty")
	}
	if c.Repo.SyncInterval.Std() <= 0 {
		return fmt.Errorf("repo.sync_interval must be positive")
	}
	if c.Index.RetireGrace.Std() < 0 {
		return fmt.Errorf("index.retire_grace must not be negative")
	}
	if c.Index.Workers <= 0 {
		return fmt.Errorf("index.workers must be positive")
	}
	if c.Search.DefaultPageSize <= 0 {
		return fmt.Errorf("search.default_page_size must be positive")
	}
	if c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("search.max_page_size must be at least default_page_size")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}
