package itemstats

import (
	"sort"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/loadout"
)

// ComputeDeltas joins combination totals to their champion baseline.
// delta = avg_place(combo) - baseline_avg_place; negative means the
// combination places better than the champion does overall. Combinations
// without a baseline are dropped. Rows are ordered by patch, champion and
// items.
func ComputeDeltas(totals map[ComboKey]ComboTotals, baselines map[ChampionKey]Baseline) []db.CombinationStat {
	keys := make([]ComboKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessComboKey(keys[i], keys[j]) })

	out := make([]db.CombinationStat, 0, len(keys))
	for _, key := range keys {
		base, ok := baselines[key.ChampionKey]
		if !ok || base.Games == 0 {
			continue
		}
		t := totals[key]
		avg := t.AvgPlace()
		baseAvg := base.AvgPlace()

		out = append(out, db.CombinationStat{
			PatchBucket:      key.PatchBucket,
			ChampionID:       key.ChampionID,
			Items:            append([]string(nil), key.Combo.IDs()...),
			Games:            t.Games,
			AvgPlace:         avg,
			Top4Rate:         t.TopHalfRate(),
			BaselineAvgPlace: baseAvg,
			Delta:            avg - baseAvg,
		})
	}
	return out
}

func lessComboKey(a, b ComboKey) bool {
	if a.PatchBucket != b.PatchBucket {
		return a.PatchBucket < b.PatchBucket
	}
	if a.ChampionID != b.ChampionID {
		return a.ChampionID < b.ChampionID
	}
	return lessCombo(a.Combo, b.Combo)
}

func lessCombo(a, b loadout.Combo) bool {
	for i := 0; i < a.K && i < b.K; i++ {
		if a.Items[i] != b.Items[i] {
			return a.Items[i] < b.Items[i]
		}
	}
	return a.K < b.K
}
