// Package config loads runtime configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides. A double underscore descends
// into a section: STUDYSEARCH_SEARCH__FUSION_K overrides search.fusion_k.
const EnvPrefix = "STUDYSEARCH_"

// Config is the top-level configuration, corresponding to studysearch.yml
type Config struct {
	DBPath            string `yaml:"db_path" koanf:"db_path"`
	EmbeddingProvider string `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingAPIKey   string `yaml:"embedding_api_key" koanf:"embedding_api_key"`
	CacheSize         int    `yaml:"cache_size" koanf:"cache_size"`
	Verbose           bool   `yaml:"verbose" koanf:"verbose"`

	Search SearchConfig `yaml:"search" koanf:"search"`
	Ingest IngestConfig `yaml:"ingest" koanf:"ingest"`
}

// SearchConfig tunes ranking behavior
type SearchConfig struct {
	FusionK     float64 `yaml:"fusion_k" koanf:"fusion_k"`
	BoostWeight float64 `yaml:"boost_weight" koanf:"boost_weight"`
	DecayRate   float64 `yaml:"decay_rate" koanf:"decay_rate"`
	CacheTTLSec int     `yaml:"cache_ttl_sec" koanf:"cache_ttl_sec"`
}

// IngestConfig tunes the ingestion pipeline
type IngestConfig struct {
	ChunkSize   int `yaml:"chunk_size" koanf:"chunk_size"`
	Overlap     int `yaml:"overlap" koanf:"overlap"`
	Concurrency int `yaml:"concurrency" koanf:"concurrency"`
	BatchSize   int `yaml:"batch_size" koanf:"batch_size"`
}

// DefaultConfig returns the configuration used when nothing is specified
func DefaultConfig() *Config {
	return &Config{
		DBPath:    "studysearch.db",
		CacheSize: 10000,
	}
}

// Load reads configuration from the given YAML file if it exists, then
// overlays STUDYSEARCH_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration contains usable values
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}
	if c.Search.FusionK < 0 {
		return fmt.Errorf("search.fusion_k must be non-negative")
	}
	if c.Search.BoostWeight < 0 {
		return fmt.Errorf("search.boost_weight must be non-negative")
	}
	if c.Search.DecayRate < 0 {
		return fmt.Errorf("search.decay_rate must be non-negative")
	}
	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("ingest.concurrency must be non-negative")
	}
	return nil
}
