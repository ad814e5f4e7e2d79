package loadout

import "strings"

// ComponentSet classifies basic component items. Matching ignores case so
// spelling variants of the same id ("TearOfTheGoddess", "TearOftheGoddess")
// classify the same way.
type ComponentSet struct {
	ids map[string]struct{}
}

func NewComponentSet(ids []string) ComponentSet {
	set := ComponentSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[strings.ToLower(id)] = struct{}{}
	}
	return set
}

// IsComponent reports whether id is a basic component.
func (c ComponentSet) IsComponent(id string) bool {
	_, ok := c.ids[strings.ToLower(id)]
	return ok
}

// Completed drops components and blank ids, keeping order and duplicates.
func (c ComponentSet) Completed(items []string) []string {
	out := make([]string, 0, len(items))
	for _, id := range items {
		if id == "" || c.IsComponent(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
