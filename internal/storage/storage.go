// Package storage persists voxline state through keshon/datastore: schedule
// target fire timestamps (durability-critical for catch-up), play statistics,
// and soft mood snapshots.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/datastore"

	"github.com/keshon/voxline/internal/catalog"
)

const (
	keyPlayStats = "play_stats"
	keyTargets   = "schedule_targets"
	keyMoods     = "mood_states"
)

// TargetRecord is the persisted form of one schedule target. Fire history is
// kept per rule ID so rules can be added or retired without touching each
// other's catch-up baseline.
type TargetRecord struct {
	SessionID  string               `json:"session_id"`
	Enabled    bool                 `json:"enabled"`
	Tags       []string             `json:"tags,omitempty"`         // empty = unrestricted
	LastFireAt map[string]time.Time `json:"last_fire_at,omitempty"` // actual fire time, by rule ID
	OnceDone   map[string]bool      `json:"once_done,omitempty"`    // by rule ID
}

// MoodRecord is the persisted form of one conversation's mood state. Mood is
// a soft UX state: losing it on restart is acceptable, carrying it is nicer.
type MoodRecord struct {
	Mode           string    `json:"mode"`
	ExpiresAt      time.Time `json:"expires_at,omitzero"`
	LastResponseAt time.Time `json:"last_response_at,omitzero"`
	LastSeverity   int       `json:"last_severity"`
	RecentPlays    []string  `json:"recent_plays,omitempty"`
}

// Storage wraps the datastore with typed accessors.
type Storage struct {
	ds *datastore.DataStore
}

// New opens (or creates) the datastore file at filePath. ctx bounds the
// store's background work; Close flushes regardless.
func New(ctx context.Context, filePath string) (*Storage, error) {
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("open datastore %s: %w", filePath, err)
	}
	return &Storage{ds: ds}, nil
}

// Close flushes and closes the underlying datastore.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// LoadPlayStats implements catalog.StatsStore.
func (s *Storage) LoadPlayStats() (map[string]catalog.PlayStats, error) {
	stats := make(map[string]catalog.PlayStats)
	if _, err := s.ds.Get(keyPlayStats, &stats); err != nil {
		return nil, fmt.Errorf("load %s: %w", keyPlayStats, err)
	}
	return stats, nil
}

// SavePlayStat implements catalog.StatsStore.
func (s *Storage) SavePlayStat(id string, st catalog.PlayStats) error {
	stats, err := s.LoadPlayStats()
	if err != nil {
		return err
	}
	stats[id] = st
	if err := s.ds.Set(keyPlayStats, stats); err != nil {
		return fmt.Errorf("save %s: %w", keyPlayStats, err)
	}
	return nil
}

// LoadTargets returns all persisted schedule targets keyed by session ID.
func (s *Storage) LoadTargets() (map[string]TargetRecord, error) {
	targets := make(map[string]TargetRecord)
	if _, err := s.ds.Get(keyTargets, &targets); err != nil {
		return nil, fmt.Errorf("load %s: %w", keyTargets, err)
	}
	return targets, nil
}

// SaveTarget upserts one schedule target record.
func (s *Storage) SaveTarget(rec TargetRecord) error {
	targets, err := s.LoadTargets()
	if err != nil {
		return err
	}
	targets[rec.SessionID] = rec
	if err := s.ds.Set(keyTargets, targets); err != nil {
		return fmt.Errorf("save %s: %w", keyTargets, err)
	}
	return nil
}

// DeleteTarget removes a schedule target record.
func (s *Storage) DeleteTarget(sessionID string) error {
	targets, err := s.LoadTargets()
	if err != nil {
		return err
	}
	delete(targets, sessionID)
	if err := s.ds.Set(keyTargets, targets); err != nil {
		return fmt.Errorf("save %s: %w", keyTargets, err)
	}
	return nil
}

// LoadMoods returns all persisted mood snapshots keyed by conversation ID.
func (s *Storage) LoadMoods() (map[string]MoodRecord, error) {
	moods := make(map[string]MoodRecord)
	if _, err := s.ds.Get(keyMoods, &moods); err != nil {
		return nil, fmt.Errorf("load %s: %w", keyMoods, err)
	}
	return moods, nil
}

// SaveMoods replaces the persisted mood snapshot set.
func (s *Storage) SaveMoods(moods map[string]MoodRecord) error {
	if err := s.ds.Set(keyMoods, moods); err != nil {
		return fmt.Errorf("save %s: %w", keyMoods, err)
	}
	return nil
}
