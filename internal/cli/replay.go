package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/layout"
	"github.com/telariq/loomgraph/pkg/pipeline"
)

// replayCommand creates the replay command.
func (c *CLI) replayCommand() *cobra.Command {
	var (
		noCache bool
		watch   bool
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "replay <file-or-dir>...",
		Short: "Feed extraction batch files through the pipeline",
		Long: `Replay reads extraction batch files (JSON) in order and applies each
through the build, merge, and layout stages, printing per-batch statistics.
Directories are expanded to their *.json entries in lexical order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectBatchFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no batch files found in %s", strings.Join(args, ", "))
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cfg, noCache)
			if err != nil {
				return fmt.Errorf("create runner: %w", err)
			}
			defer runner.Close()

			if watch {
				return c.replayWatch(cmd, runner, files)
			}
			return c.replayPlain(cmd, runner, files, outPath)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the layout cache")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "show replay progress in an interactive view")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the final snapshot JSON to this file")

	return cmd
}

// replayPlain runs the replay with line-oriented output.
func (c *CLI) replayPlain(cmd *cobra.Command, runner *pipeline.Runner, files []string, outPath string) error {
	ctx := cmd.Context()
	snap := graph.NewSnapshot()
	var positions layout.Positions

	start := time.Now()
	for _, path := range files {
		batch, err := readBatch(path)
		if err != nil {
			return err
		}

		res, err := runner.Apply(ctx, snap, batch, positions)
		if err != nil {
			return fmt.Errorf("apply %s: %w", filepath.Base(path), err)
		}
		snap = res.Snapshot
		positions = res.Positions

		printInfo("v%d %s", snap.Version, filepath.Base(path))
		printStats(res.Stats.EntityCount, res.Stats.RelationCount, res.CacheInfo.LayoutHit)
		for _, w := range res.BuildWarnings {
			printWarning("%s: %s", w.Code, w.Message)
		}
		for _, w := range res.MergeWarnings {
			printWarning("%s: %s", w.Code, w.Message)
		}
		for _, w := range res.LayoutWarnings {
			printWarning("%s: %s", w.Code, w.Message)
		}
	}

	printSuccess("Replayed %d batches in %s", len(files), time.Since(start).Round(time.Millisecond))
	printDetail("final version %d, %d entities, %d relations",
		snap.Version, len(snap.Entities), len(snap.Relations))

	if outPath != "" {
		data, err := graph.MarshalSnapshot(snap)
		if err != nil {
			return fmt.Errorf("serialize snapshot: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		printFile(outPath)
	}
	return nil
}

// collectBatchFiles expands the argument list into an ordered list of batch
// files. Directory arguments contribute their *.json entries sorted by name.
func collectBatchFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

// readBatch parses one extraction batch file.
func readBatch(path string) (graph.ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.ExtractionResult{}, err
	}
	var batch graph.ExtractionResult
	if err := json.Unmarshal(data, &batch); err != nil {
		return graph.ExtractionResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return batch, nil
}
