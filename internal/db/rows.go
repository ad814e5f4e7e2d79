package db

// MatchRow is one row of matches.
type MatchRow struct {
	MatchID      string
	GameDatetime *int64
	PatchBucket  *string
	GameVersion  *string
	TFTSetNumber *int
}

// ParticipantRow is one row of player_match.
type ParticipantRow struct {
	MatchID        string
	PUUID          string
	Placement      *int
	RiotIDGameName *string
	RiotIDTagLine  *string
}

// UnitItemRow is one row of unit_item: a single copy of an item on a unit.
// ItemOccurrence numbers copies within (match, puuid, champion, tier).
type UnitItemRow struct {
	MatchID        string
	PUUID          string
	ChampionID     string
	UnitTier       int
	ItemOccurrence int
	ItemName       string
}

// UnitLoadoutRow is one row of unit_loadout.
type UnitLoadoutRow struct {
	MatchID    string
	PUUID      string
	ChampionID string
	UnitTier   int
	ItemsKey   string
}

// MatchRows is everything one raw record contributes.
type MatchRows struct {
	Match        MatchRow
	Participants []ParticipantRow
	UnitItems    []UnitItemRow
	Loadouts     []UnitLoadoutRow
}

// LoadoutObservation is a unit_loadout row joined to its match patch and
// the participant's placement.
type LoadoutObservation struct {
	PatchBucket string
	ChampionID  string
	MatchID     string
	PUUID       string
	ItemsKey    string
	Placement   *int
}

// CombinationStat is one row of a champ_item{k}_stats table. len(Items) is k.
type CombinationStat struct {
	PatchBucket      string
	ChampionID       string
	Items            []string
	Games            int
	AvgPlace         float64
	Top4Rate         float64
	BaselineAvgPlace float64
	Delta            float64
}

// TableCounts summarizes row counts per table.
type TableCounts struct {
	Matches      int
	Participants int
	UnitItems    int
	Loadouts     int
	Stats        [3]int // indexed by k-1
}
