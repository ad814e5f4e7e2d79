// Package itemstats computes per-champion item combination performance:
// champion baselines, k-combination totals and their placement deltas.
package itemstats

import "tft-analyzer/internal/db"

// ChampionKey identifies a champion within a patch.
type ChampionKey struct {
	PatchBucket string
	ChampionID  string
}

// gameKey is one participant's game with a champion.
type gameKey struct {
	ChampionKey
	MatchID string
	PUUID   string
}

// Baseline holds the placement totals of every game a champion was fielded.
type Baseline struct {
	Games        int
	PlacementSum int
}

// AvgPlace is the mean placement, or 0 when no games were counted.
func (b Baseline) AvgPlace() float64 {
	if b.Games == 0 {
		return 0
	}
	return float64(b.PlacementSum) / float64(b.Games)
}

// BaselineCalculator counts each (match, participant) once per champion,
// however many units or loadouts of that champion the participant fielded.
type BaselineCalculator struct {
	seen   map[gameKey]struct{}
	totals map[ChampionKey]*Baseline
}

func NewBaselineCalculator() *BaselineCalculator {
	return &BaselineCalculator{
		seen:   make(map[gameKey]struct{}),
		totals: make(map[ChampionKey]*Baseline),
	}
}

// Add records an observation. Observations without a placement are ignored.
func (c *BaselineCalculator) Add(obs db.LoadoutObservation) {
	if obs.Placement == nil {
		return
	}
	champ := ChampionKey{PatchBucket: obs.PatchBucket, ChampionID: obs.ChampionID}
	game := gameKey{ChampionKey: champ, MatchID: obs.MatchID, PUUID: obs.PUUID}
	if _, ok := c.seen[game]; ok {
		return
	}
	c.seen[game] = struct{}{}

	b, ok := c.totals[champ]
	if !ok {
		b = &Baseline{}
		c.totals[champ] = b
	}
	b.Games++
	b.PlacementSum += *obs.Placement
}

// Baselines returns a copy of the accumulated totals.
func (c *BaselineCalculator) Baselines() map[ChampionKey]Baseline {
	out := make(map[ChampionKey]Baseline, len(c.totals))
	for k, v := range c.totals {
		out[k] = *v
	}
	return out
}
