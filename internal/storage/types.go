package storage

import "tft-analyzer/internal/riot"

// Derived is computed by the crawler and stored next to the upstream
// document under "_derived".
type Derived struct {
	PatchBucket     string `json:"patch_bucket,omitempty"`
	GameDatetimeUTC string `json:"game_datetime_utc,omitempty"`
}

// RawRecord is one match detail document as stored on disk.
type RawRecord struct {
	riot.Match
	Derived *Derived `json:"_derived,omitempty"`
}

// CrawlState is the crawler's position: which seed it is paging and where.
type CrawlState struct {
	Seeds     []string `json:"puuids"`
	SeedIndex int      `json:"puuid_idx"`
	PageStart int      `json:"page_start"`
}

// CurrentSeed returns the seed being paged, or false when seeds are exhausted.
func (s CrawlState) CurrentSeed() (string, bool) {
	if s.SeedIndex < 0 || s.SeedIndex >= len(s.Seeds) {
		return "", false
	}
	return s.Seeds[s.SeedIndex], true
}
