package storage

import (
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

// ErrCorruptState marks a state file that cannot be trusted for resuming.
var ErrCorruptState = errors.New("corrupt state file")

// LoadCrawlState reads the crawl position. A missing file is a fresh start.
func LoadCrawlState(path string) (CrawlState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return CrawlState{}, nil
	}
	if err != nil {
		return CrawlState{}, errors.Wrapf(err, "failed to read %s", path)
	}

	var st CrawlState
	if err := json.Unmarshal(data, &st); err != nil {
		return CrawlState{}, errors.Mark(errors.Wrapf(err, "failed to parse %s", path), ErrCorruptState)
	}
	if st.SeedIndex < 0 || st.SeedIndex > len(st.Seeds) || st.PageStart < 0 {
		return CrawlState{}, errors.Mark(
			errors.Newf("%s: seed index %d of %d, page start %d", path, st.SeedIndex, len(st.Seeds), st.PageStart),
			ErrCorruptState)
	}
	return st, nil
}

// SaveCrawlState atomically replaces the state file.
func SaveCrawlState(path string, st CrawlState) error {
	if st.Seeds == nil {
		st.Seeds = []string{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode crawl state")
	}
	return WriteFileAtomic(path, data)
}
