package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// TursoClient mirrors the stats tables to a Turso database
type TursoClient struct {
	db *sql.DB
}

// NewTursoClient connects to Turso and checks the connection
func NewTursoClient(ctx context.Context, url, authToken string) (*TursoClient, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Turso")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping Turso")
	}

	return &TursoClient{db: db}, nil
}

// Close closes the Turso connection
func (c *TursoClient) Close() error {
	return c.db.Close()
}

func (c *TursoClient) Name() string {
	return "turso"
}

// CreateTables creates the stats tables if they don't exist
func (c *TursoClient) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS data_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			updated_at TEXT NOT NULL
		)`,
	}
	for k := 1; k <= MaxK; k++ {
		ddl, err := statsTableDDL(k, "REAL")
		if err != nil {
			return err
		}
		queries = append(queries, ddl)
	}

	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "failed to execute query")
		}
	}
	return nil
}

// ReplaceCombinationStats clears the k table and inserts stats in one
// transaction, then stamps data_version.
func (c *TursoClient) ReplaceCombinationStats(ctx context.Context, k int, stats []CombinationStat) error {
	table, itemCols, err := StatsTable(k)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return errors.Wrapf(err, "failed to clear %s", table)
	}
	if err := insertStats(ctx, tx, k, table, itemCols, stats); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO data_version (id, updated_at) VALUES (1, ?)`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return errors.Wrap(err, "failed to set data version")
	}
	return tx.Commit()
}
