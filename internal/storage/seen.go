package storage

import (
	"io/fs"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

const seenFalsePositiveRate = 0.001

// SeenSet is the grow-only set of fetched match ids. The bloom filter
// answers most misses without touching the map.
type SeenSet struct {
	ids    map[string]struct{}
	filter *bloom.BloomFilter
}

// NewSeenSet sizes the filter for about expected ids.
func NewSeenSet(expected uint) *SeenSet {
	if expected == 0 {
		expected = 1000
	}
	return &SeenSet{
		ids:    make(map[string]struct{}),
		filter: bloom.NewWithEstimates(expected, seenFalsePositiveRate),
	}
}

// LoadSeenSet reads a JSON array of match ids. A missing file is empty.
func LoadSeenSet(path string, expected uint) (*SeenSet, error) {
	set := NewSeenSet(expected)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return set, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to parse %s", path), ErrCorruptState)
	}
	for _, id := range ids {
		set.Add(id)
	}
	return set, nil
}

func (s *SeenSet) Contains(id string) bool {
	if !s.filter.TestString(id) {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	if s.Contains(id) {
		return false
	}
	s.ids[id] = struct{}{}
	s.filter.AddString(id)
	return true
}

func (s *SeenSet) Len() int {
	return len(s.ids)
}

// IDs returns the ids in sorted order.
func (s *SeenSet) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save atomically writes the set as a sorted JSON array.
func (s *SeenSet) Save(path string) error {
	data, err := json.Marshal(s.IDs())
	if err != nil {
		return errors.Wrap(err, "failed to encode seen set")
	}
	return WriteFileAtomic(path, data)
}
