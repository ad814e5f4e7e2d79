package commands

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/export"
	"tft-analyzer/internal/ingest"
	"tft-analyzer/internal/itemstats"
	"tft-analyzer/internal/loadout"
	"tft-analyzer/internal/patch"
	"tft-analyzer/internal/storage"
)

func runIngest(ctx context.Context, s *session, store *db.Store) (ingest.Summary, error) {
	raw, err := storage.NewRawStore(s.cfg.Paths.RawDir)
	if err != nil {
		return ingest.Summary{}, err
	}
	normalizer := ingest.NewNormalizer(patch.NewBucketer(s.cfg.Patches))
	sum, err := ingest.NewIngester(raw, store, normalizer, s.logger).Run(ctx)
	if err != nil {
		return sum, err
	}

	export.RenderSummary(s.out, "Ingest Summary", []export.KV{
		{Key: "Files", Value: sum.Files},
		{Key: "Ingested", Value: sum.Ingested},
		{Key: "Skipped (malformed)", Value: sum.Skipped},
	})
	counts, err := store.Counts(ctx)
	if err != nil {
		return sum, err
	}
	export.RenderCounts(s.out, counts)
	return sum, nil
}

func runReduce(ctx context.Context, s *session, store *db.Store) (*itemstats.Result, error) {
	components := loadout.NewComponentSet(s.cfg.Items.Components)
	res, err := itemstats.NewReducer(store, store, components, s.cfg.Stats.TopHalfCutoff, s.logger).Run(ctx)
	if err != nil {
		return nil, err
	}

	rows := []export.KV{
		{Key: "Loadouts read", Value: res.Observations},
		{Key: "Champion baselines", Value: len(res.Baselines)},
	}
	for i, stats := range res.Stats {
		name, _, _ := db.StatsTable(i + 1)
		rows = append(rows, export.KV{Key: name, Value: len(stats)})
	}
	export.RenderSummary(s.out, "Reduce Summary", rows)
	return res, nil
}

func runExport(ctx context.Context, s *session, store *db.Store, dir string) ([]export.File, error) {
	if dir == "" {
		dir = s.cfg.Paths.ExportDir
	}
	files, err := export.WriteCSV(ctx, store, dir, s.logger)
	if err != nil {
		return files, err
	}

	rows := make([]export.KV, 0, len(files))
	for _, f := range files {
		rows = append(rows, export.KV{Key: f.Path, Value: f.Rows})
	}
	export.RenderSummary(s.out, "Export Summary", rows)
	return files, nil
}

// runPublish mirrors the stats tables to every configured remote database.
func runPublish(ctx context.Context, s *session, res *itemstats.Result) error {
	sinks, closeAll, err := openSinks(ctx, s)
	if err != nil {
		return err
	}
	defer closeAll()

	if len(sinks) == 0 {
		s.logger.Warn("publish requested but no TURSO_DATABASE_URL or DATABASE_URL is set")
		return nil
	}
	return itemstats.Publish(ctx, res, sinks, s.logger)
}

func openSinks(ctx context.Context, s *session) ([]itemstats.Sink, func(), error) {
	var sinks []itemstats.Sink
	closeAll := func() {
		for _, sink := range sinks {
			if c, ok := sink.(interface{ Close() error }); ok {
				if err := c.Close(); err != nil {
					s.logger.Warn("failed to close sink", zap.String("sink", sink.Name()), zap.Error(err))
				}
			}
		}
	}

	pub := s.cfg.Publish
	if pub.TursoURL != "" {
		turso, err := db.NewTursoClient(ctx, pub.TursoURL, pub.TursoAuthToken)
		if err != nil {
			return nil, closeAll, errors.Wrap(err, "connect to Turso")
		}
		sinks = append(sinks, turso)
	}
	if pub.PostgresURL != "" {
		pg, err := db.NewPostgres(ctx, pub.PostgresURL)
		if err != nil {
			closeAll()
			return nil, func() {}, errors.Wrap(err, "connect to Postgres")
		}
		sinks = append(sinks, pg)
	}
	return sinks, closeAll, nil
}
