package commands

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tft-analyzer/internal/riot"
)

func newPipelineCmd(s *session) *cobra.Command {
	var (
		collect bool
		publish bool
		dir     string
		opts    collectOptions
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run collect (optional), ingest, reduce, export and publish in order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start := time.Now()

			if collect {
				if _, err := runCollect(ctx, s, opts); err != nil {
					if ctx.Err() != nil || errors.Is(err, riot.ErrUnauthorized) {
						return err
					}
					s.logger.Warn("collect failed, continuing with matches on disk", zap.Error(err))
				}
			}

			store, err := s.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := runIngest(ctx, s, store); err != nil {
				return err
			}
			res, err := runReduce(ctx, s, store)
			if err != nil {
				return err
			}
			if _, err := runExport(ctx, s, store, dir); err != nil {
				return err
			}
			if publish {
				if err := runPublish(ctx, s, res); err != nil {
					return err
				}
			}

			s.logger.Info("pipeline complete", zap.Duration("elapsed", time.Since(start).Round(time.Second)))
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&collect, "collect", false, "crawl for new matches before processing")
	cmd.Flags().BoolVar(&publish, "publish", false, "push the rebuilt tables to Turso and/or Postgres")
	cmd.Flags().StringVar(&dir, "dir", "", "CSV output directory (defaults to paths.export_dir)")
	return cmd
}
