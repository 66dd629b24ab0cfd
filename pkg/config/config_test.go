package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/telariq/loomgraph/pkg/merge"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Resolver.FuzzyThreshold != 0.8 {
		t.Errorf("fuzzy threshold = %v, want 0.8", cfg.Resolver.FuzzyThreshold)
	}
	if p, err := cfg.Merge.ParsePolicy(); err != nil || p != merge.PolicyBestEffort {
		t.Errorf("policy = %v err = %v, want best-effort", p, err)
	}
	if cfg.Layout.NodeWidth != 160 || cfg.Layout.Iterations != 300 {
		t.Errorf("layout defaults wrong: %+v", cfg.Layout)
	}
	if cfg.Pipeline.CheckpointEvery != 10 {
		t.Errorf("checkpoint every = %d, want 10", cfg.Pipeline.CheckpointEvery)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serve.Addr != ":8080" {
		t.Errorf("addr = %s, want default", cfg.Serve.Addr)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loomgraph.toml")
	content := `
[resolver]
fuzzy_threshold = 0.9

[merge]
policy = "strict"

[layout]
node_width = 200.0
iterations = 100

[pipeline]
engine = "layered"
checkpoint_every = 5

[serve]
addr = ":9999"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Resolver.FuzzyThreshold != 0.9 {
		t.Errorf("threshold = %v, want 0.9", cfg.Resolver.FuzzyThreshold)
	}
	if p, _ := cfg.Merge.ParsePolicy(); p != merge.PolicyStrict {
		t.Errorf("policy = %v, want strict", p)
	}
	if cfg.Layout.NodeWidth != 200 || cfg.Layout.Iterations != 100 {
		t.Errorf("layout overrides not applied: %+v", cfg.Layout)
	}
	// Untouched sections keep defaults.
	if cfg.Layout.NodeHeight != 48 {
		t.Errorf("node height = %v, want default 48", cfg.Layout.NodeHeight)
	}
	if cfg.Pipeline.Engine != "layered" || cfg.Pipeline.CheckpointEvery != 5 {
		t.Errorf("pipeline overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Serve.Addr != ":9999" {
		t.Errorf("addr = %s, want :9999", cfg.Serve.Addr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	badPolicy := filepath.Join(dir, "policy.toml")
	os.WriteFile(badPolicy, []byte("[merge]\npolicy = \"whatever\"\n"), 0o644)
	if _, err := Load(badPolicy); err == nil {
		t.Error("expected error for invalid policy")
	}

	badEngine := filepath.Join(dir, "engine.toml")
	os.WriteFile(badEngine, []byte("[pipeline]\nengine = \"spiral\"\n"), 0o644)
	if _, err := Load(badEngine); err == nil {
		t.Error("expected error for invalid engine")
	}
}
