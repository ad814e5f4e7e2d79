// Package commands is the analyzer CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tft-analyzer/internal/collector"
	"tft-analyzer/internal/config"
	"tft-analyzer/internal/db"
	"tft-analyzer/internal/logging"
)

// session is the state shared by every subcommand of one invocation.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
	stop   func()
}

func (s *session) close() {
	if s.stop != nil {
		s.stop()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}

func (s *session) openStore(ctx context.Context) (*db.Store, error) {
	store, err := db.Open(ctx, s.cfg.Paths.DB)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.cfg.Paths.DB)
	}
	return store, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root, s := newRootCmd(os.Stdout)
	defer s.close()

	err := root.ExecuteContext(context.Background())
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Interrupted; progress is saved.")
		return 0
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
}

func newRootCmd(out io.Writer) (*cobra.Command, *session) {
	s := &session{out: out}
	var configPath, logLevel, logFormat string

	root := &cobra.Command{
		Use:           "analyzer",
		Short:         "Collects ranked TFT matches and computes champion item statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envPath := config.LoadDotEnv()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			if envPath != "" {
				logger.Debug("loaded .env", zap.String("path", envPath))
			}

			ctx, stop := collector.SetupSignalHandler(cmd.Context(), logger, nil)
			cmd.SetContext(ctx)

			s.cfg = cfg
			s.logger = logger
			s.stop = stop
			return nil
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults are built in)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "console or json")

	root.AddCommand(
		newCollectCmd(s),
		newIngestCmd(s),
		newReduceCmd(s),
		newExportCmd(s),
		newTopCmd(s),
		newPipelineCmd(s),
		newValidateKeyCmd(s),
	)
	return root, s
}
