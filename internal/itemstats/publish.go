package itemstats

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tft-analyzer/internal/logging"
)

// Sink is a remote database that mirrors the stats tables.
type Sink interface {
	StatsWriter
	Name() string
	CreateTables(ctx context.Context) error
}

// Publish pushes every stats table in res to each sink, stopping at the
// first failure.
func Publish(ctx context.Context, res *Result, sinks []Sink, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("publish")
	if res == nil {
		return nil
	}

	for _, sink := range sinks {
		logger.Info("starting push", zap.String("sink", sink.Name()))
		if err := sink.CreateTables(ctx); err != nil {
			return errors.Wrapf(err, "%s: failed to create tables", sink.Name())
		}
		for i, stats := range res.Stats {
			k := i + 1
			if err := sink.ReplaceCombinationStats(ctx, k, stats); err != nil {
				return errors.Wrapf(err, "%s: failed to push k=%d stats", sink.Name(), k)
			}
			logger.Info("pushed stats", zap.String("sink", sink.Name()), zap.Int("k", k), zap.Int("rows", len(stats)))
		}
	}
	return nil
}
