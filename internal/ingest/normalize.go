// Package ingest maps raw match records onto the relational store.
package ingest

import (
	"github.com/cockroachdb/errors"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/loadout"
	"tft-analyzer/internal/patch"
	"tft-analyzer/internal/storage"
)

// ErrMalformedRecord marks a record that cannot be normalized. Only that
// record is skipped.
var ErrMalformedRecord = errors.New("malformed raw record")

// Normalizer turns one raw record into table rows.
type Normalizer struct {
	bucketer *patch.Bucketer
}

func NewNormalizer(bucketer *patch.Bucketer) *Normalizer {
	return &Normalizer{bucketer: bucketer}
}

// NormalizeBytes decodes and normalizes a stored record.
func (n *Normalizer) NormalizeBytes(data []byte) (*db.MatchRows, error) {
	rec, err := storage.DecodeRecord(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode record"), ErrMalformedRecord)
	}
	return n.Normalize(rec)
}

// Normalize emits one match row, one row per participant, one unit_item row
// per item copy and one loadout row per unit. Absent optional fields stay
// nil; an absent tier is stored as 0.
func (n *Normalizer) Normalize(rec *storage.RawRecord) (*db.MatchRows, error) {
	matchID := rec.Metadata.MatchID
	if matchID == "" {
		return nil, malformed("missing metadata.match_id")
	}
	info := rec.Info
	if info == nil {
		return nil, malformed("match %s: missing info", matchID)
	}

	rows := &db.MatchRows{
		Match: db.MatchRow{
			MatchID:      matchID,
			GameDatetime: info.GameDatetime,
			PatchBucket:  n.patchBucket(rec),
			GameVersion:  info.GameVersion,
			TFTSetNumber: info.TFTSetNumber,
		},
	}

	type unitSlot struct {
		puuid, champion string
		tier            int
	}
	occurrences := make(map[unitSlot]int)

	for pi, p := range info.Participants {
		if p.PUUID == "" {
			return nil, malformed("match %s: participant %d has no puuid", matchID, pi)
		}
		rows.Participants = append(rows.Participants, db.ParticipantRow{
			MatchID:        matchID,
			PUUID:          p.PUUID,
			Placement:      p.Placement,
			RiotIDGameName: p.RiotIDGameName,
			RiotIDTagLine:  p.RiotIDTagline,
		})

		for ui, u := range p.Units {
			if u.CharacterID == "" {
				return nil, malformed("match %s: participant %s unit %d has no character_id", matchID, p.PUUID, ui)
			}
			tier := 0
			if u.Tier != nil {
				tier = *u.Tier
			}

			key, err := loadout.Key(u.ItemNames)
			if err != nil {
				return nil, errors.Mark(errors.Wrapf(err, "match %s: participant %s unit %s", matchID, p.PUUID, u.CharacterID), ErrMalformedRecord)
			}

			slot := unitSlot{puuid: p.PUUID, champion: u.CharacterID, tier: tier}
			for _, item := range u.ItemNames {
				rows.UnitItems = append(rows.UnitItems, db.UnitItemRow{
					MatchID:        matchID,
					PUUID:          p.PUUID,
					ChampionID:     u.CharacterID,
					UnitTier:       tier,
					ItemOccurrence: occurrences[slot],
					ItemName:       item,
				})
				occurrences[slot]++
			}

			rows.Loadouts = append(rows.Loadouts, db.UnitLoadoutRow{
				MatchID:    matchID,
				PUUID:      p.PUUID,
				ChampionID: u.CharacterID,
				UnitTier:   tier,
				ItemsKey:   key,
			})
		}
	}

	return rows, nil
}

// patchBucket prefers the crawler's hint, then the version string.
func (n *Normalizer) patchBucket(rec *storage.RawRecord) *string {
	if rec.Derived != nil && rec.Derived.PatchBucket != "" {
		bucket := rec.Derived.PatchBucket
		return &bucket
	}
	if rec.Info.GameVersion != nil {
		if bucket, ok := n.bucketer.ForVersion(*rec.Info.GameVersion); ok {
			return &bucket
		}
	}
	return nil
}

func malformed(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedRecord)
}
