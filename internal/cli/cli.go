// Package cli implements the loomgraph command-line interface.
//
// This package provides commands for replaying extraction batch streams
// through the incremental graph pipeline, serving the dev HTTP API, and
// managing the derived-result cache. The CLI is built using cobra and
// supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - replay: Feed extraction batch files through the pipeline
//   - serve: Run the dev HTTP server with the live reconciliation store
//   - cache: Manage the layout and checkpoint cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/telariq/loomgraph/pkg/buildinfo"
	"github.com/telariq/loomgraph/pkg/cache"
	"github.com/telariq/loomgraph/pkg/config"
	"github.com/telariq/loomgraph/pkg/merge"
	"github.com/telariq/loomgraph/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "loomgraph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Loomgraph maintains an incrementally laid-out knowledge graph",
		Long:         `Loomgraph is an incremental knowledge-graph state engine: extraction batches are resolved against the current graph, merged as versioned deltas, and positioned by a deterministic layout engine.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to loomgraph.toml (default: ./loomgraph.toml)")

	// Register all subcommands
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// loadConfig reads the configured TOML file (or compiled defaults).
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner from the loaded configuration.
func (c *CLI) newRunner(cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	backend, err := newCache(cfg, noCache)
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Merge.ParsePolicy()
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(backend, nil, c.Logger, pipeline.Options{
		FuzzyThreshold:  cfg.Resolver.FuzzyThreshold,
		Policy:          policy,
		Engine:          cfg.Pipeline.Engine,
		LayoutConfig:    cfg.Layout,
		CheckpointEvery: cfg.Pipeline.CheckpointEvery,
	}), nil
}

// newCache builds the configured cache backend.
func newCache(cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "redis":
		return newRedisCache(cfg)
	default:
		return cache.NewFileCache(cfg.Cache.Dir)
	}
}

// mergePolicy resolves the configured policy, falling back to best-effort.
func mergePolicy(cfg config.Config) merge.Policy {
	policy, err := cfg.Merge.ParsePolicy()
	if err != nil {
		return merge.PolicyBestEffort
	}
	return policy
}
