package patch

import (
	"testing"
	"time"

	"tft-analyzer/internal/config"
)

func testBucketer() *Bucketer {
	day := func(m time.Month, d int) time.Time { return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC) }
	return NewBucketer(config.PatchesConfig{
		Windows: []config.PatchWindow{
			{Label: "TFT16.3", Start: day(time.January, 22)},
			{Label: "TFT16.2", Start: day(time.January, 8)},
			{Label: "TFT16.4", Start: day(time.February, 4)},
		},
		BeforeLabel:   "TFT16.1x",
		VersionPrefix: "TFT",
	})
}

func TestForTime(t *testing.T) {
	b := testBucketer()

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"before first window", time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC), "TFT16.1x"},
		{"exactly at window start", time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC), "TFT16.2"},
		{"inside middle window", time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC), "TFT16.3"},
		{"after last window", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "TFT16.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.ForTime(tt.at); got != tt.want {
				t.Errorf("ForTime(%v) = %q, want %q", tt.at, got, tt.want)
			}
		})
	}
}

func TestForVersion(t *testing.T) {
	b := testBucketer()

	tests := []struct {
		version string
		want    string
		ok      bool
	}{
		{"Version 16.4.560.1234 (Feb 03 2026/18:00:00) [PUBLIC] <Releases/16.4>", "TFT16.4", true},
		{"16.2.1", "TFT16.2", true},
		{"  Version 15.24.7", "TFT15.24", true},
		{"Version unknown", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := b.ForVersion(tt.version)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ForVersion(%q) = (%q, %v), want (%q, %v)", tt.version, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLabel(t *testing.T) {
	b := testBucketer()
	ms := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC).UnixMilli()
	version := "Version 16.3.1"

	if got, ok := b.Label(&ms, &version); !ok || got != "TFT16.4" {
		t.Errorf("Label(date, version) = (%q, %v), want date bucket", got, ok)
	}
	if got, ok := b.Label(nil, &version); !ok || got != "TFT16.3" {
		t.Errorf("Label(nil, version) = (%q, %v), want version bucket", got, ok)
	}
	if _, ok := b.Label(nil, nil); ok {
		t.Error("Label(nil, nil) should not produce a bucket")
	}

	noWindows := NewBucketer(config.PatchesConfig{BeforeLabel: "x", VersionPrefix: "TFT"})
	if got, _ := noWindows.Label(&ms, &version); got != "TFT16.3" {
		t.Errorf("without windows Label = %q, want version bucket", got)
	}
}

func TestFromMillis(t *testing.T) {
	got := FromMillis(1767225600000).Format(DatetimeLayout)
	if got != "2026-01-01 00:00:00 UTC" {
		t.Errorf("FromMillis formatted = %q", got)
	}
}
