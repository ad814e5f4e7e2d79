package itemstats

import (
	"github.com/cockroachdb/errors"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/loadout"
)

// ComboKey is the accumulation key for one combination of a champion.
type ComboKey struct {
	ChampionKey
	Combo loadout.Combo
}

// ComboTotals holds running sums. Means are taken at output time.
type ComboTotals struct {
	Games        int
	PlacementSum int
	TopHalf      int
}

func (t ComboTotals) AvgPlace() float64 {
	if t.Games == 0 {
		return 0
	}
	return float64(t.PlacementSum) / float64(t.Games)
}

func (t ComboTotals) TopHalfRate() float64 {
	if t.Games == 0 {
		return 0
	}
	return float64(t.TopHalf) / float64(t.Games)
}

type comboGame struct {
	gameKey
	Combo loadout.Combo
}

// Aggregator accumulates k-combinations of completed items per champion.
type Aggregator struct {
	k          int
	components loadout.ComponentSet
	cutoff     int

	seen   map[comboGame]struct{}
	totals map[ComboKey]*ComboTotals
}

// NewAggregator builds an aggregator for combinations of size k. A placement
// at or below topHalfCutoff counts as a top-half finish.
func NewAggregator(k int, components loadout.ComponentSet, topHalfCutoff int) (*Aggregator, error) {
	if k < 1 || k > loadout.MaxK {
		return nil, errors.Newf("combination size %d out of range 1..%d", k, loadout.MaxK)
	}
	return &Aggregator{
		k:          k,
		components: components,
		cutoff:     topHalfCutoff,
		seen:       make(map[comboGame]struct{}),
		totals:     make(map[ComboKey]*ComboTotals),
	}, nil
}

// K returns the combination size.
func (a *Aggregator) K() int {
	return a.k
}

// Add records the combinations of one loadout. A combination already counted
// for the same (patch, champion, match, participant) is not counted again.
func (a *Aggregator) Add(obs db.LoadoutObservation) {
	if obs.Placement == nil || obs.ItemsKey == loadout.Empty {
		return
	}
	items := a.components.Completed(loadout.Split(obs.ItemsKey))
	if len(items) < a.k {
		return
	}

	champ := ChampionKey{PatchBucket: obs.PatchBucket, ChampionID: obs.ChampionID}
	game := gameKey{ChampionKey: champ, MatchID: obs.MatchID, PUUID: obs.PUUID}
	place := *obs.Placement

	for _, combo := range loadout.Combos(items, a.k) {
		cg := comboGame{gameKey: game, Combo: combo}
		if _, ok := a.seen[cg]; ok {
			continue
		}
		a.seen[cg] = struct{}{}

		key := ComboKey{ChampionKey: champ, Combo: combo}
		t, ok := a.totals[key]
		if !ok {
			t = &ComboTotals{}
			a.totals[key] = t
		}
		t.Games++
		t.PlacementSum += place
		if place <= a.cutoff {
			t.TopHalf++
		}
	}
}

// Totals returns a copy of the accumulated totals.
func (a *Aggregator) Totals() map[ComboKey]ComboTotals {
	out := make(map[ComboKey]ComboTotals, len(a.totals))
	for k, v := range a.totals {
		out[k] = *v
	}
	return out
}
