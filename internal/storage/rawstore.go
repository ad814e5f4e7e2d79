package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

const rawExt = ".json"

// RawStore keeps one JSON file per match, named by match id.
type RawStore struct {
	dir string
}

func NewRawStore(dir string) (*RawStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return &RawStore{dir: dir}, nil
}

func (s *RawStore) Dir() string {
	return s.dir
}

// Path returns the file for matchID.
func (s *RawStore) Path(matchID string) string {
	return filepath.Join(s.dir, matchID+rawExt)
}

// Has reports whether matchID is already on disk.
func (s *RawStore) Has(matchID string) (bool, error) {
	if err := checkMatchID(matchID); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(matchID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", matchID)
	}
	return true, nil
}

// Write stores the upstream document with derived appended under "_derived".
// The rest of the document is kept as received.
func (s *RawStore) Write(matchID string, body []byte, derived Derived) error {
	if err := checkMatchID(matchID); err != nil {
		return err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return errors.Wrapf(err, "match %s: upstream document is not a JSON object", matchID)
	}
	d, err := json.Marshal(derived)
	if err != nil {
		return errors.Wrap(err, "failed to encode derived block")
	}
	doc["_derived"] = d

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode match %s", matchID)
	}
	return WriteFileAtomic(s.Path(matchID), out)
}

// List returns every record file in filename order.
func (s *RawStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", s.dir)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, rawExt) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// DecodeRecord parses a stored record.
func DecodeRecord(data []byte) (*RawRecord, error) {
	var rec RawRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func checkMatchID(matchID string) error {
	if matchID == "" || strings.ContainsAny(matchID, `/\`) || matchID == "." || matchID == ".." {
		return errors.Newf("invalid match id %q", matchID)
	}
	return nil
}
