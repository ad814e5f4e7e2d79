// Package export renders stats tables as CSV files and console tables.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/logging"
	"tft-analyzer/internal/storage"
)

// StatsReader reads one stats table.
type StatsReader interface {
	CombinationStats(ctx context.Context, k int, f db.StatsFilter) ([]db.CombinationStat, error)
}

// File describes one written export.
type File struct {
	K    int
	Path string
	Rows int
}

// FileName is the CSV name for the k table.
func FileName(k int) string {
	return fmt.Sprintf("champ_item%d_stats.csv", k)
}

// WriteCSV writes every stats table to dir, replacing existing files.
// Rows keep the store order: patch, champion, delta.
func WriteCSV(ctx context.Context, r StatsReader, dir string, logger *zap.Logger) ([]File, error) {
	logger = logging.OrNop(logger).Named("export")

	files := make([]File, 0, db.MaxK)
	for k := 1; k <= db.MaxK; k++ {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		stats, err := r.CombinationStats(ctx, k, db.StatsFilter{})
		if err != nil {
			return files, errors.Wrapf(err, "read k=%d stats", k)
		}
		data, err := RenderCSV(k, stats)
		if err != nil {
			return files, err
		}

		path := filepath.Join(dir, FileName(k))
		if err := storage.WriteFileAtomic(path, data); err != nil {
			return files, errors.Wrapf(err, "write %s", path)
		}
		logger.Info("exported stats", zap.Int("k", k), zap.Int("rows", len(stats)), zap.String("path", path))
		files = append(files, File{K: k, Path: path, Rows: len(stats)})
	}
	return files, nil
}

// RenderCSV renders the k table with a header row.
func RenderCSV(k int, stats []db.CombinationStat) ([]byte, error) {
	cols, err := db.StatsColumns(k)
	if err != nil {
		return nil, err
	}

	t := table.NewWriter()
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, st := range stats {
		if len(st.Items) != k {
			return nil, errors.Newf("stat for %s/%s has %d items, want %d", st.PatchBucket, st.ChampionID, len(st.Items), k)
		}
		row := make(table.Row, 0, len(cols))
		row = append(row, st.PatchBucket, st.ChampionID)
		for _, item := range st.Items {
			row = append(row, item)
		}
		row = append(row,
			st.Games,
			formatFloat(st.AvgPlace),
			formatFloat(st.Top4Rate),
			formatFloat(st.BaselineAvgPlace),
			formatFloat(st.Delta),
		)
		t.AppendRow(row)
	}

	out := t.RenderCSV()
	if out == "" {
		return nil, nil
	}
	return []byte(out + "\n"), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
