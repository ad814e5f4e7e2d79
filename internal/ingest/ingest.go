package ingest

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/logging"
	"tft-analyzer/internal/storage"
)

const progressEvery = 500

// MatchWriter persists normalized rows.
type MatchWriter interface {
	InsertMatch(ctx context.Context, rows *db.MatchRows) error
}

// Summary reports one ingestion run.
type Summary struct {
	Files    int
	Ingested int
	Skipped  int
}

// Ingester normalizes every raw record on disk into the store.
type Ingester struct {
	raw        *storage.RawStore
	store      MatchWriter
	normalizer *Normalizer
	logger     *zap.Logger
}

func NewIngester(raw *storage.RawStore, store MatchWriter, normalizer *Normalizer, logger *zap.Logger) *Ingester {
	return &Ingester{
		raw:        raw,
		store:      store,
		normalizer: normalizer,
		logger:     logging.OrNop(logger).Named("ingest"),
	}
}

// Run ingests records in filename order. Malformed records are counted and
// skipped; storage errors stop the run.
func (i *Ingester) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	paths, err := i.raw.List()
	if err != nil {
		return sum, err
	}
	sum.Files = len(paths)
	i.logger.Info("ingesting raw records", zap.Int("files", len(paths)), zap.String("dir", i.raw.Dir()))

	for idx, path := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return sum, errors.Wrapf(err, "failed to read %s", path)
		}

		rows, err := i.normalizer.NormalizeBytes(data)
		if errors.Is(err, ErrMalformedRecord) {
			sum.Skipped++
			i.logger.Warn("skipping malformed record", zap.String("file", path), zap.Error(err))
			continue
		}
		if err != nil {
			return sum, err
		}

		if err := i.store.InsertMatch(ctx, rows); err != nil {
			return sum, errors.Wrapf(err, "failed to ingest %s", path)
		}
		sum.Ingested++

		if (idx+1)%progressEvery == 0 {
			i.logger.Info("progress", zap.Int("done", idx+1), zap.Int("total", len(paths)))
		}
	}

	return sum, nil
}
