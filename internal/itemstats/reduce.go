package itemstats

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/loadout"
	"tft-analyzer/internal/logging"
)

// LoadoutSource streams joined loadout observations.
type LoadoutSource interface {
	ForEachLoadout(ctx context.Context, fn func(db.LoadoutObservation) error) error
}

// StatsWriter replaces the contents of a stats table.
type StatsWriter interface {
	ReplaceCombinationStats(ctx context.Context, k int, stats []db.CombinationStat) error
}

// Result is the output of one aggregation pass.
type Result struct {
	Observations int
	Baselines    map[ChampionKey]Baseline
	Stats        [loadout.MaxK][]db.CombinationStat // indexed by k-1
}

// Reducer rebuilds the combination stats tables from the relational store.
type Reducer struct {
	source     LoadoutSource
	writer     StatsWriter
	components loadout.ComponentSet
	cutoff     int
	logger     *zap.Logger
}

func NewReducer(source LoadoutSource, writer StatsWriter, components loadout.ComponentSet, topHalfCutoff int, logger *zap.Logger) *Reducer {
	return &Reducer{
		source:     source,
		writer:     writer,
		components: components,
		cutoff:     topHalfCutoff,
		logger:     logging.OrNop(logger).Named("reduce"),
	}
}

// Compute makes a single pass over the store, feeding the baseline and all
// three aggregators, then joins the totals to the baselines.
func (r *Reducer) Compute(ctx context.Context) (*Result, error) {
	baseline := NewBaselineCalculator()
	aggs := make([]*Aggregator, 0, loadout.MaxK)
	for k := 1; k <= loadout.MaxK; k++ {
		agg, err := NewAggregator(k, r.components, r.cutoff)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
	}

	res := &Result{}
	err := r.source.ForEachLoadout(ctx, func(obs db.LoadoutObservation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Observations++
		baseline.Add(obs)
		for _, agg := range aggs {
			agg.Add(obs)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read loadouts")
	}

	res.Baselines = baseline.Baselines()
	for _, agg := range aggs {
		res.Stats[agg.K()-1] = ComputeDeltas(agg.Totals(), res.Baselines)
	}
	return res, nil
}

// Run computes fresh stats and replaces every stats table with them.
func (r *Reducer) Run(ctx context.Context) (*Result, error) {
	res, err := r.Compute(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("aggregated loadouts",
		zap.Int("observations", res.Observations),
		zap.Int("champions", len(res.Baselines)))

	for i, stats := range res.Stats {
		k := i + 1
		if err := r.writer.ReplaceCombinationStats(ctx, k, stats); err != nil {
			return nil, errors.Wrapf(err, "failed to rebuild k=%d stats", k)
		}
		r.logger.Info("rebuilt stats table", zap.Int("k", k), zap.Int("rows", len(stats)))
	}
	return res, nil
}
