package commands

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/export"
)

func newIngestCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Normalize every raw match file into the relational store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			_, err = runIngest(cmd.Context(), s, store)
			return err
		},
	}
}

func newReduceCmd(s *session) *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Rebuild the champion item stats tables from the relational store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := runReduce(cmd.Context(), s, store)
			if err != nil {
				return err
			}
			if publish {
				return runPublish(cmd.Context(), s, res)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "push the rebuilt tables to Turso and/or Postgres")
	return cmd
}

func newExportCmd(s *session) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stats tables as CSV files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			_, err = runExport(cmd.Context(), s, store, dir)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (defaults to paths.export_dir)")
	return cmd
}

func newTopCmd(s *session) *cobra.Command {
	var (
		k      int
		filter db.StatsFilter
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the combinations with the best placement delta.",
		Example: `  analyzer top --champion TFT16_Jinx --k 2
  analyzer top --patch TFT16.4 --k 1 --min-games 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if k < 1 || k > db.MaxK {
				return errors.Newf("--k must be between 1 and %d", db.MaxK)
			}
			store, err := s.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.CombinationStats(cmd.Context(), k, filter)
			if err != nil {
				return err
			}
			export.RenderStats(s.out, stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 2, "combination size (1, 2 or 3)")
	cmd.Flags().StringVar(&filter.PatchBucket, "patch", "", "patch bucket, e.g. TFT16.4")
	cmd.Flags().StringVar(&filter.ChampionID, "champion", "", "champion id, e.g. TFT16_Jinx")
	cmd.Flags().IntVar(&filter.MinGames, "min-games", 10, "minimum games per combination")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum rows, 0 for all")
	return cmd
}
