package loadout

import (
	"sort"
	"strings"
)

// MaxK is the largest combination size tracked.
const MaxK = 3

// Combo is a sorted tuple of K item ids.
type Combo struct {
	K     int
	Items [MaxK]string
}

func newCombo(ids ...string) Combo {
	c := Combo{K: len(ids)}
	copy(c.Items[:], ids)
	sort.Strings(c.Items[:c.K])
	return c
}

// IDs returns the K item ids of c.
func (c Combo) IDs() []string {
	return c.Items[:c.K]
}

func (c Combo) String() string {
	return strings.Join(c.IDs(), Separator)
}

// Combos lists the combinations of size k that a loadout contributes.
//
// For k=1 every distinct item counts once. For k=2 and k=3 positions are
// chosen i<j[<l] over the multiset, so two copies of an item can pair with
// each other; the same sorted tuple may therefore appear more than once and
// callers deduplicate per game.
func Combos(items []string, k int) []Combo {
	switch k {
	case 1:
		distinct := Distinct(items)
		out := make([]Combo, 0, len(distinct))
		for _, id := range distinct {
			out = append(out, newCombo(id))
		}
		return out
	case 2, 3:
		return combinations(items, k)
	default:
		return nil
	}
}

// Distinct returns the distinct ids of items in sorted order.
func Distinct(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, id := range items {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func combinations(items []string, k int) []Combo {
	n := len(items)
	if n < k {
		return nil
	}

	var out []Combo
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if k == 2 {
				out = append(out, newCombo(items[i], items[j]))
				continue
			}
			for l := j + 1; l < n; l++ {
				out = append(out, newCombo(items[i], items[j], items[l]))
			}
		}
	}
	return out
}
