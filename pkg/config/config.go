// Package config loads engine configuration from loomgraph.toml.
//
// Every numeric layout constant, resolver threshold, and backend address is
// configuration, not protocol: defaults are compiled in and a TOML file
// overrides them. A missing file is not an error.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/telariq/loomgraph/pkg/layout"
	"github.com/telariq/loomgraph/pkg/merge"
	"github.com/telariq/loomgraph/pkg/resolve"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "loomgraph.toml"

// Config is the full configuration tree.
type Config struct {
	Resolver ResolverConfig `toml:"resolver"`
	Merge    MergeConfig    `toml:"merge"`
	Layout   layout.Config  `toml:"layout"`
	Store    StoreConfig    `toml:"store"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Cache    CacheConfig    `toml:"cache"`
	Serve    ServeConfig    `toml:"serve"`
}

// ResolverConfig tunes entity resolution.
type ResolverConfig struct {
	// FuzzyThreshold is the minimum normalized Levenshtein similarity for a
	// same-type fuzzy match.
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
}

// MergeConfig tunes delta application.
type MergeConfig struct {
	// Policy is "best-effort" or "strict".
	Policy string `toml:"policy"`
}

// ParsePolicy maps the configured policy name to a merge policy.
func (c MergeConfig) ParsePolicy() (merge.Policy, error) {
	switch c.Policy {
	case "", "best-effort":
		return merge.PolicyBestEffort, nil
	case "strict":
		return merge.PolicyStrict, nil
	default:
		return 0, fmt.Errorf("invalid merge policy %q (must be best-effort or strict)", c.Policy)
	}
}

// StoreConfig tunes the reconciliation store.
type StoreConfig struct {
	// HighlightMillis is how long new nodes and edges keep their highlight
	// flag in the projection.
	HighlightMillis int `toml:"highlight_ms"`
}

// PipelineConfig tunes the staged apply pipeline.
type PipelineConfig struct {
	// Engine selects the layout strategy: "force" or "layered".
	Engine string `toml:"engine"`

	// CheckpointEvery fires a checkpoint event every Nth version.
	// Zero disables checkpointing.
	CheckpointEvery int `toml:"checkpoint_every"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is "file", "redis", or "none".
	Backend string `toml:"backend"`

	// Dir is the file backend's directory.
	Dir string `toml:"dir"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// ServeConfig configures the dev HTTP server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Resolver: ResolverConfig{FuzzyThreshold: resolve.DefaultFuzzyThreshold},
		Merge:    MergeConfig{Policy: "best-effort"},
		Layout:   layout.DefaultConfig(),
		Store:    StoreConfig{HighlightMillis: 3000},
		Pipeline: PipelineConfig{Engine: "force", CheckpointEvery: 10},
		Cache:    CacheConfig{Backend: "file", Dir: defaultCacheDir(), RedisAddr: "localhost:6379"},
		Serve:    ServeConfig{Addr: ":8080"},
	}
}

// Load reads a TOML file over the defaults. A missing file returns the
// defaults; a malformed file or an unknown policy is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := cfg.Merge.ParsePolicy(); err != nil {
		return Config{}, err
	}
	switch cfg.Pipeline.Engine {
	case "force", "layered":
	default:
		return Config{}, fmt.Errorf("invalid layout engine %q (must be force or layered)", cfg.Pipeline.Engine)
	}
	return cfg, nil
}

// NewEngine builds the configured layout engine.
func (c Config) NewEngine() layout.Engine {
	if c.Pipeline.Engine == "layered" {
		return layout.NewLayeredEngine(c.Layout)
	}
	return layout.NewForceEngine(c.Layout)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/loomgraph"
	}
	return ".loomgraph-cache"
}
