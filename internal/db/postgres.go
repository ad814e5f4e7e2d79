package db

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres mirrors the stats tables to a Postgres database
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool and checks the connection
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the database connection pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Name() string {
	return "postgres"
}

// CreateTables creates the stats tables if they don't exist
func (p *Postgres) CreateTables(ctx context.Context) error {
	for k := 1; k <= MaxK; k++ {
		ddl, err := statsTableDDL(k, "DOUBLE PRECISION")
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, ddl); err != nil {
			return errors.Wrap(err, "failed to create stats table")
		}
	}
	return nil
}

// ReplaceCombinationStats clears the k table and bulk-loads stats with COPY
// in one transaction.
func (p *Postgres) ReplaceCombinationStats(ctx context.Context, k int, stats []CombinationStat) error {
	table, itemCols, err := StatsTable(k)
	if err != nil {
		return err
	}

	rows := make([][]interface{}, 0, len(stats))
	for _, s := range stats {
		args, err := statsArgs(k, s)
		if err != nil {
			return err
		}
		rows = append(rows, args)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
		return errors.Wrapf(err, "failed to clear %s", table)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, statsColumns(itemCols), pgx.CopyFromRows(rows))
	if err != nil {
		return errors.Wrapf(err, "failed to copy into %s", table)
	}
	if int(n) != len(rows) {
		return errors.Newf("copied %d of %d rows into %s", n, len(rows), table)
	}
	return tx.Commit(ctx)
}
