package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VM.MaxStackDepth != 4096 {
		t.Errorf("expected default max_stack_depth 4096, got %d", cfg.VM.MaxStackDepth)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccil.toml")
	content := "[vm]\ndebug = true\nmax_stack_depth = 10\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.VM.Debug || cfg.VM.MaxStackDepth != 10 {
		t.Errorf("unexpected config: %+v", cfg.VM)
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccil.toml")
	if err := os.WriteFile(path, []byte("not valid [[[ toml"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed TOML")
	}
}
