// Package loadout canonicalizes unit item loadouts and enumerates the item
// combinations they contain.
package loadout

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	// Separator joins item ids inside a key. Item ids never contain it.
	Separator = "|"

	// Empty is the key of a unit holding no items.
	Empty = ""
)

var ErrInvalidItem = errors.New("invalid item identifier")

// Key returns the canonical key for a unit's items: the ids sorted and joined
// with Separator, duplicates kept. Two loadouts share a key exactly when they
// hold the same items with the same multiplicities.
func Key(items []string) (string, error) {
	if len(items) == 0 {
		return Empty, nil
	}

	sorted := make([]string, len(items))
	copy(sorted, items)
	for _, id := range sorted {
		if err := validate(id); err != nil {
			return "", err
		}
	}
	sort.Strings(sorted)
	return strings.Join(sorted, Separator), nil
}

// Split reverses Key.
func Split(key string) []string {
	if key == Empty {
		return nil
	}
	return strings.Split(key, Separator)
}

func validate(id string) error {
	if id == "" {
		return errors.Wrap(ErrInvalidItem, "empty item id")
	}
	if strings.Contains(id, Separator) {
		return errors.Wrapf(ErrInvalidItem, "item id %q contains %q", id, Separator)
	}
	return nil
}
