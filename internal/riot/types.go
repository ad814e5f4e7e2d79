package riot

// Account is the response from /riot/account/v1/accounts/by-riot-id
type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// LeagueList is the response from /tft/league/v1/{challenger,grandmaster,master}
type LeagueList struct {
	Tier    string        `json:"tier"`
	Queue   string        `json:"queue"`
	Entries []LeagueEntry `json:"entries"`
}

// LeagueEntry identifies a ladder player. Newer payloads carry the PUUID
// directly; older ones only the summoner id.
type LeagueEntry struct {
	SummonerID   string `json:"summonerId"`
	PUUID        string `json:"puuid"`
	LeaguePoints int    `json:"leaguePoints"`
}

// Summoner is the response from /tft/summoner/v1/summoners/{summonerId}
type Summoner struct {
	ID    string `json:"id"`
	PUUID string `json:"puuid"`
}

// Match is the response from /tft/match/v1/matches/{matchId}. Optional
// fields are pointers so absence survives decoding.
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     *MatchInfo    `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"match_id"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameDatetime *int64        `json:"game_datetime"` // epoch ms
	GameVersion  *string       `json:"game_version"`
	TFTSetNumber *int          `json:"tft_set_number"`
	QueueID      *int          `json:"queue_id"`
	Participants []Participant `json:"participants"`
}

type Participant struct {
	PUUID          string  `json:"puuid"`
	Placement      *int    `json:"placement"`
	RiotIDGameName *string `json:"riotIdGameName"`
	RiotIDTagline  *string `json:"riotIdTagline"`
	Units          []Unit  `json:"units"`
}

type Unit struct {
	CharacterID string   `json:"character_id"`
	Tier        *int     `json:"tier"`
	ItemNames   []string `json:"itemNames"`
}
