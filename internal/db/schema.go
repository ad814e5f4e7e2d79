package db

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// MaxK is the largest combination size with a stats table.
const MaxK = 3

var relationalSchema = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		game_datetime INTEGER,
		patch_bucket TEXT,
		game_version TEXT,
		tft_set_number INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS player_match (
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		placement INTEGER,
		riot_id_game_name TEXT,
		riot_id_tag_line TEXT,
		PRIMARY KEY (match_id, puuid)
	)`,
	`CREATE TABLE IF NOT EXISTS unit_item (
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		champion_id TEXT NOT NULL,
		unit_tier INTEGER NOT NULL,
		item_occurrence INTEGER NOT NULL,
		item_name TEXT NOT NULL,
		PRIMARY KEY (match_id, puuid, champion_id, unit_tier, item_occurrence)
	)`,
	`CREATE TABLE IF NOT EXISTS unit_loadout (
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		champion_id TEXT NOT NULL,
		unit_tier INTEGER NOT NULL,
		items_key TEXT NOT NULL,
		PRIMARY KEY (match_id, puuid, champion_id, unit_tier, items_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_unit_item_champion ON unit_item(champion_id)`,
	`CREATE INDEX IF NOT EXISTS idx_unit_item_item ON unit_item(item_name)`,
	`CREATE INDEX IF NOT EXISTS idx_unit_loadout_champion ON unit_loadout(champion_id)`,
	`CREATE INDEX IF NOT EXISTS idx_unit_loadout_items ON unit_loadout(items_key)`,
	`CREATE INDEX IF NOT EXISTS idx_player_match_placement ON player_match(placement)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_patch ON matches(patch_bucket)`,
}

// StatsTable returns the table name and item columns for size k.
func StatsTable(k int) (string, []string, error) {
	switch k {
	case 1:
		return "champ_item1_stats", []string{"item_name"}, nil
	case 2:
		return "champ_item2_stats", []string{"item1", "item2"}, nil
	case 3:
		return "champ_item3_stats", []string{"item1", "item2", "item3"}, nil
	default:
		return "", nil, errors.Newf("no stats table for k=%d", k)
	}
}

// StatsColumns lists the column names of the k table in order.
func StatsColumns(k int) ([]string, error) {
	_, itemCols, err := StatsTable(k)
	if err != nil {
		return nil, err
	}
	return statsColumns(itemCols), nil
}

// statsColumns lists insert columns in order.
func statsColumns(itemCols []string) []string {
	cols := []string{"patch_bucket", "champion_id"}
	cols = append(cols, itemCols...)
	return append(cols, "n_games", "avg_place", "top4_rate", "baseline_avg_place", "delta")
}

// statsTableDDL renders CREATE TABLE for k. floatType differs between
// SQLite (REAL) and Postgres (DOUBLE PRECISION).
func statsTableDDL(k int, floatType string) (string, error) {
	table, itemCols, err := StatsTable(k)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	b.WriteString("\t\tpatch_bucket TEXT NOT NULL,\n\t\tchampion_id TEXT NOT NULL,\n")
	for _, c := range itemCols {
		fmt.Fprintf(&b, "\t\t%s TEXT NOT NULL,\n", c)
	}
	b.WriteString("\t\tn_games INTEGER NOT NULL,\n")
	for _, c := range []string{"avg_place", "top4_rate", "baseline_avg_place", "delta"} {
		fmt.Fprintf(&b, "\t\t%s %s NOT NULL,\n", c, floatType)
	}
	fmt.Fprintf(&b, "\t\tPRIMARY KEY (patch_bucket, champion_id, %s)\n\t)", strings.Join(itemCols, ", "))
	return b.String(), nil
}

// statsArgs flattens a row into insert arguments matching statsColumns.
func statsArgs(k int, s CombinationStat) ([]interface{}, error) {
	if len(s.Items) != k {
		return nil, errors.Newf("stat for %s/%s has %d items, table expects %d",
			s.PatchBucket, s.ChampionID, len(s.Items), k)
	}
	args := []interface{}{s.PatchBucket, s.ChampionID}
	for _, it := range s.Items {
		args = append(args, it)
	}
	return append(args, s.Games, s.AvgPlace, s.Top4Rate, s.BaselineAvgPlace, s.Delta), nil
}
