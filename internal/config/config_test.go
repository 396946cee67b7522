package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ESOLOG_DATA_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImportConcurrency != 2 {
		t.Fatalf("import concurrency = %d", cfg.ImportConcurrency)
	}
	if cfg.DetailCacheEntries != 64 {
		t.Fatalf("cache entries = %d", cfg.DetailCacheEntries)
	}
	if cfg.LogDBDir != filepath.Join(cfg.DataDir, "logdbs") {
		t.Fatalf("logdb dir = %q", cfg.LogDBDir)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ESOLOG_DATA_DIR", t.TempDir())
	t.Setenv("ESOLOG_IMPORT_CONCURRENCY", "8")
	t.Setenv("ESOLOG_IMPORT_TIMEOUT", "5m")
	t.Setenv("ESOLOG_INDEX_RESCAN_SCHEDULE", "*/5 * * * *")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImportConcurrency != 8 {
		t.Fatalf("import concurrency = %d", cfg.ImportConcurrency)
	}
	if cfg.ImportTimeout != 5*time.Minute {
		t.Fatalf("timeout = %v", cfg.ImportTimeout)
	}
	if cfg.IndexRescanSchedule != "*/5 * * * *" {
		t.Fatalf("schedule = %q", cfg.IndexRescanSchedule)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ESOLOG_DATA_DIR", dir)
	yaml := "import_concurrency: 4\ndetail_cache_entries: 128\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImportConcurrency != 4 || cfg.DetailCacheEntries != 128 {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
}

func TestLoadValidationCollectsErrors(t *testing.T) {
	t.Setenv("ESOLOG_DATA_DIR", t.TempDir())
	t.Setenv("ESOLOG_IMPORT_CONCURRENCY", "-1")
	t.Setenv("ESOLOG_INDEX_RESCAN_SCHEDULE", "not a cron")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadInvalidIntRejected(t *testing.T) {
	t.Setenv("ESOLOG_DATA_DIR", t.TempDir())
	t.Setenv("ESOLOG_DETAIL_CACHE_ENTRIES", "many")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid integer")
	}
}
