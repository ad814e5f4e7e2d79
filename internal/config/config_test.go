package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RIOT_API_KEY", "TFT_DATA_DIR", "TURSO_DATABASE_URL", "TURSO_AUTH_TOKEN",
		"DATABASE_URL", "DISCORD_WEBHOOK_URL", "LOG_LEVEL", "TFT_TARGET_MATCHES",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Riot.RankedQueueID != 1100 {
		t.Errorf("RankedQueueID = %d, want 1100", cfg.Riot.RankedQueueID)
	}
	if cfg.Crawl.RequestInterval != 1400*time.Millisecond {
		t.Errorf("RequestInterval = %v, want 1.4s", cfg.Crawl.RequestInterval)
	}
	if cfg.Crawl.PageSize*cfg.Crawl.PagesPerSeed != 600 {
		t.Errorf("rotation offset = %d, want 600", cfg.Crawl.PageSize*cfg.Crawl.PagesPerSeed)
	}
	if got := len(cfg.Items.Components); got != 9 {
		t.Errorf("len(Components) = %d, want 9", got)
	}
	if got := len(cfg.Patches.Windows); got != 3 {
		t.Fatalf("len(Windows) = %d, want 3", got)
	}
	want := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	if !cfg.Patches.Windows[1].Start.Equal(want) {
		t.Errorf("Windows[1].Start = %v, want %v", cfg.Patches.Windows[1].Start, want)
	}
	if cfg.Paths.RawDir != filepath.Join("data", "raw_matches") {
		t.Errorf("RawDir = %q", cfg.Paths.RawDir)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, "crawl:\n  target_matches: 50\npaths:\n  data_dir: "+dir+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawl.TargetMatches != 50 {
		t.Errorf("TargetMatches = %d, want 50", cfg.Crawl.TargetMatches)
	}
	if cfg.Crawl.PageSize != 200 {
		t.Errorf("PageSize = %d, want default 200", cfg.Crawl.PageSize)
	}
	if cfg.Paths.DB != filepath.Join(dir, "tft.db") {
		t.Errorf("DB = %q, want under %q", cfg.Paths.DB, dir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RIOT_API_KEY", "  RGAPI-test  ")
	t.Setenv("TFT_TARGET_MATCHES", "25")
	t.Setenv("TFT_DATA_DIR", "/srv/tft")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Riot.APIKey != "RGAPI-test" {
		t.Errorf("APIKey = %q", cfg.Riot.APIKey)
	}
	if cfg.Crawl.TargetMatches != 25 {
		t.Errorf("TargetMatches = %d, want 25", cfg.Crawl.TargetMatches)
	}
	if cfg.Paths.StateFile != filepath.Join("/srv/tft", "fetch_state.json") {
		t.Errorf("StateFile = %q", cfg.Paths.StateFile)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  string
	}{
		{name: "page size too large", body: "crawl:\n  page_size: 500\n"},
		{name: "unknown ladder tier", body: "crawl:\n  ladder_tiers: [diamond]\n"},
		{name: "unsorted windows", body: "patches:\n  windows:\n    - label: B\n      start: 2026-02-01T00:00:00Z\n    - label: A\n      start: 2026-01-01T00:00:00Z\n"},
		{name: "bad log format", body: "log:\n  format: xml\n"},
		{name: "bad target env", env: "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.env != "" {
				t.Setenv("TFT_TARGET_MATCHES", tt.env)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
