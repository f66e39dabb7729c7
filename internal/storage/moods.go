package storage

import (
	"github.com/keshon/voxline/internal/engine"
)

// LoadMoodSnapshots returns persisted mood states in the engine's form.
func (s *Storage) LoadMoodSnapshots() (map[string]engine.MoodSnapshot, error) {
	recs, err := s.LoadMoods()
	if err != nil {
		return nil, err
	}
	out := make(map[string]engine.MoodSnapshot, len(recs))
	for id, rec := range recs {
		out[id] = engine.MoodSnapshot{
			Mode:           engine.Mode(rec.Mode),
			ExpiresAt:      rec.ExpiresAt,
			LastResponseAt: rec.LastResponseAt,
			LastSeverity:   rec.LastSeverity,
			RecentPlays:    rec.RecentPlays,
		}
	}
	return out, nil
}

// SaveMoodSnapshots replaces the persisted mood set.
func (s *Storage) SaveMoodSnapshots(snaps map[string]engine.MoodSnapshot) error {
	recs := make(map[string]MoodRecord, len(snaps))
	for id, snap := range snaps {
		recs[id] = MoodRecord{
			Mode:           string(snap.Mode),
			ExpiresAt:      snap.ExpiresAt,
			LastResponseAt: snap.LastResponseAt,
			LastSeverity:   snap.LastSeverity,
			RecentPlays:    snap.RecentPlays,
		}
	}
	return s.SaveMoods(recs)
}
