package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// Store is the embedded relational store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create db directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// one writer; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	queries := []string{`PRAGMA busy_timeout = 5000`}
	queries = append(queries, relationalSchema...)
	for k := 1; k <= MaxK; k++ {
		ddl, err := statsTableDDL(k, "REAL")
		if err != nil {
			return err
		}
		queries = append(queries, ddl)
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "failed to create schema")
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertMatch writes one record's rows in a single transaction. Rows whose
// primary key already exists are left untouched.
func (s *Store) InsertMatch(ctx context.Context, rows *MatchRows) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	m := rows.Match
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches (match_id, game_datetime, patch_bucket, game_version, tft_set_number)
		VALUES (?, ?, ?, ?, ?)`,
		m.MatchID, m.GameDatetime, m.PatchBucket, m.GameVersion, m.TFTSetNumber); err != nil {
		return errors.Wrapf(err, "failed to insert match %s", m.MatchID)
	}

	for _, p := range rows.Participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO player_match (match_id, puuid, placement, riot_id_game_name, riot_id_tag_line)
			VALUES (?, ?, ?, ?, ?)`,
			p.MatchID, p.PUUID, p.Placement, p.RiotIDGameName, p.RiotIDTagLine); err != nil {
			return errors.Wrapf(err, "failed to insert participant %s/%s", p.MatchID, p.PUUID)
		}
	}

	for _, u := range rows.UnitItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO unit_item (match_id, puuid, champion_id, unit_tier, item_occurrence, item_name)
			VALUES (?, ?, ?, ?, ?, ?)`,
			u.MatchID, u.PUUID, u.ChampionID, u.UnitTier, u.ItemOccurrence, u.ItemName); err != nil {
			return errors.Wrapf(err, "failed to insert unit item %s/%s", u.MatchID, u.ChampionID)
		}
	}

	for _, l := range rows.Loadouts {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO unit_loadout (match_id, puuid, champion_id, unit_tier, items_key)
			VALUES (?, ?, ?, ?, ?)`,
			l.MatchID, l.PUUID, l.ChampionID, l.UnitTier, l.ItemsKey); err != nil {
			return errors.Wrapf(err, "failed to insert loadout %s/%s", l.MatchID, l.ChampionID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit match")
	}
	return nil
}

// ForEachLoadout streams every loadout of a match with a known patch,
// joined to the owner's placement, in a stable order.
func (s *Store) ForEachLoadout(ctx context.Context, fn func(LoadoutObservation) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.patch_bucket, ul.champion_id, ul.match_id, ul.puuid, ul.items_key, pm.placement
		FROM unit_loadout ul
		JOIN matches m ON m.match_id = ul.match_id
		JOIN player_match pm ON pm.match_id = ul.match_id AND pm.puuid = ul.puuid
		WHERE m.patch_bucket IS NOT NULL
		ORDER BY m.patch_bucket, ul.champion_id, ul.match_id, ul.puuid, ul.unit_tier, ul.items_key`)
	if err != nil {
		return errors.Wrap(err, "failed to query loadouts")
	}
	defer rows.Close()

	for rows.Next() {
		var obs LoadoutObservation
		var placement sql.NullInt64
		if err := rows.Scan(&obs.PatchBucket, &obs.ChampionID, &obs.MatchID, &obs.PUUID, &obs.ItemsKey, &placement); err != nil {
			return errors.Wrap(err, "failed to scan loadout")
		}
		if placement.Valid {
			p := int(placement.Int64)
			obs.Placement = &p
		}
		if err := fn(obs); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ReplaceCombinationStats clears the k table and inserts stats in one
// transaction.
func (s *Store) ReplaceCombinationStats(ctx context.Context, k int, stats []CombinationStat) error {
	table, itemCols, err := StatsTable(k)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
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
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit %s", table)
	}
	return nil
}

// StatsFilter narrows CombinationStats. Zero values match everything.
type StatsFilter struct {
	PatchBucket string
	ChampionID  string
	MinGames    int
	Limit       int
}

// CombinationStats reads the k table ordered by patch, champion, delta.
func (s *Store) CombinationStats(ctx context.Context, k int, f StatsFilter) ([]CombinationStat, error) {
	return queryStats(ctx, s.db, k, f)
}

// Counts returns row counts for every table.
func (s *Store) Counts(ctx context.Context) (TableCounts, error) {
	var c TableCounts
	targets := []struct {
		table string
		dst   *int
	}{
		{"matches", &c.Matches},
		{"player_match", &c.Participants},
		{"unit_item", &c.UnitItems},
		{"unit_loadout", &c.Loadouts},
	}
	for k := 1; k <= MaxK; k++ {
		table, _, _ := StatsTable(k)
		targets = append(targets, struct {
			table string
			dst   *int
		}{table, &c.Stats[k-1]})
	}

	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return c, errors.Wrapf(err, "failed to count %s", t.table)
		}
	}
	return c, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const insertBatchSize = 100

// insertStats writes stats as multi-row INSERTs of insertBatchSize rows.
func insertStats(ctx context.Context, ex execer, k int, table string, itemCols []string, stats []CombinationStat) error {
	cols := statsColumns(itemCols)
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	for i := 0; i < len(stats); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(stats) {
			end = len(stats)
		}
		batch := stats[i:end]

		placeholders := make([]string, 0, len(batch))
		args := make([]interface{}, 0, len(batch)*len(cols))
		for _, st := range batch {
			rowArgs, err := statsArgs(k, st)
			if err != nil {
				return err
			}
			placeholders = append(placeholders, rowPlaceholder)
			args = append(args, rowArgs...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := ex.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "failed to insert into %s", table)
		}
	}
	return nil
}

func queryStats(ctx context.Context, q querier, k int, f StatsFilter) ([]CombinationStat, error) {
	table, itemCols, err := StatsTable(k)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []interface{}
	if f.PatchBucket != "" {
		where = append(where, "patch_bucket = ?")
		args = append(args, f.PatchBucket)
	}
	if f.ChampionID != "" {
		where = append(where, "champion_id = ?")
		args = append(args, f.ChampionID)
	}
	if f.MinGames > 0 {
		where = append(where, "n_games >= ?")
		args = append(args, f.MinGames)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(statsColumns(itemCols), ", "), table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY patch_bucket, champion_id, delta, n_games DESC, %s", strings.Join(itemCols, ", "))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", table)
	}
	defer rows.Close()

	var out []CombinationStat
	for rows.Next() {
		st := CombinationStat{Items: make([]string, k)}
		dest := []interface{}{&st.PatchBucket, &st.ChampionID}
		for i := range st.Items {
			dest = append(dest, &st.Items[i])
		}
		dest = append(dest, &st.Games, &st.AvgPlace, &st.Top4Rate, &st.BaselineAvgPlace, &st.Delta)
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s", table)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
