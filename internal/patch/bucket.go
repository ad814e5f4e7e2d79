// Package patch assigns matches to patch buckets.
package patch

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"tft-analyzer/internal/config"
)

// DatetimeLayout is the human-readable timestamp stored next to raw records.
const DatetimeLayout = "2006-01-02 15:04:05 UTC"

var versionPattern = regexp.MustCompile(`^(?:Version\s*)?(\d+)\.(\d+)`)

// Bucketer labels matches by game date, falling back to the version string.
type Bucketer struct {
	windows []config.PatchWindow
	before  string
	prefix  string
}

func NewBucketer(cfg config.PatchesConfig) *Bucketer {
	windows := make([]config.PatchWindow, len(cfg.Windows))
	copy(windows, cfg.Windows)
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	return &Bucketer{
		windows: windows,
		before:  cfg.BeforeLabel,
		prefix:  cfg.VersionPrefix,
	}
}

// ForTime returns the label of the latest window starting at or before t.
func (b *Bucketer) ForTime(t time.Time) string {
	label := b.before
	for _, w := range b.windows {
		if !t.Before(w.Start) {
			label = w.Label
		}
	}
	return label
}

// ForVersion turns "Version 16.4.560.1234 (...)" into "TFT16.4".
func (b *Bucketer) ForVersion(version string) (string, bool) {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(version))
	if m == nil {
		return "", false
	}
	return b.prefix + m[1] + "." + m[2], true
}

// Label picks the bucket for a match. Date windows win when both the
// timestamp and windows are present; otherwise the version is used.
func (b *Bucketer) Label(gameDatetimeMs *int64, version *string) (string, bool) {
	if gameDatetimeMs != nil && len(b.windows) > 0 {
		return b.ForTime(FromMillis(*gameDatetimeMs)), true
	}
	if version != nil {
		return b.ForVersion(*version)
	}
	return "", false
}

// FromMillis converts epoch milliseconds to UTC.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
