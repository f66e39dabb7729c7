// Package catalog owns the voice-line index: stable identifiers, tag sets and
// play statistics. Reads hand out snapshot copies so callers never hold the
// lock; play-count increments serialize through the store mutex.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnavailable reports that the catalog has no loaded index. Callers fail
// closed: no emission rather than a default one.
var ErrUnavailable = errors.New("voice catalog unavailable")

// VoiceLine is one pre-recorded clip. ID is the path relative to the voices
// directory and is stable across rescans.
type VoiceLine struct {
	ID           string    `json:"id"`
	Tags         []string  `json:"tags"`
	PlayCount    int       `json:"play_count"`
	LastPlayedAt time.Time `json:"last_played_at,omitzero"`
}

// HasTag reports whether the line carries tag.
func (v VoiceLine) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PlayStats is the persisted per-line play record.
type PlayStats struct {
	PlayCount    int       `json:"play_count"`
	LastPlayedAt time.Time `json:"last_played_at,omitzero"`
}

// StatsStore persists play statistics across restarts.
type StatsStore interface {
	LoadPlayStats() (map[string]PlayStats, error)
	SavePlayStat(id string, stats PlayStats) error
}

// Catalog is the in-memory index. Safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	lines map[string]*VoiceLine
	stats StatsStore // may be nil (tests, indexer)
}

// New creates an empty catalog. Call SetLines or Load before use.
func New(stats StatsStore) *Catalog {
	return &Catalog{lines: make(map[string]*VoiceLine), stats: stats}
}

// SetLines replaces the index, merging persisted play stats when a stats
// store is attached.
func (c *Catalog) SetLines(lines []VoiceLine) error {
	var persisted map[string]PlayStats
	if c.stats != nil {
		var err error
		persisted, err = c.stats.LoadPlayStats()
		if err != nil {
			return fmt.Errorf("load play stats: %w", err)
		}
	}

	next := make(map[string]*VoiceLine, len(lines))
	for _, l := range lines {
		if l.ID == "" || len(l.Tags) == 0 {
			continue
		}
		cp := l
		cp.Tags = append([]string(nil), l.Tags...)
		if st, ok := persisted[l.ID]; ok {
			cp.PlayCount = st.PlayCount
			cp.LastPlayedAt = st.LastPlayedAt
		}
		next[cp.ID] = &cp
	}

	c.mu.Lock()
	c.lines = next
	c.mu.Unlock()
	return nil
}

// CandidatesForTag returns copies of every line carrying tag. An empty tag
// matches all lines. ErrUnavailable when no index is loaded.
func (c *Catalog) CandidatesForTag(tag string) ([]VoiceLine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.lines) == 0 {
		return nil, ErrUnavailable
	}

	var out []VoiceLine
	for _, l := range c.lines {
		if tag == "" || l.HasTag(tag) {
			cp := *l
			cp.Tags = append([]string(nil), l.Tags...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecordPlay increments the play counter for id and writes the stat through
// to the stats store.
func (c *Catalog) RecordPlay(id string, now time.Time) error {
	c.mu.Lock()
	l, ok := c.lines[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("record play: unknown voice line %q", id)
	}
	l.PlayCount++
	l.LastPlayedAt = now
	stats := PlayStats{PlayCount: l.PlayCount, LastPlayedAt: l.LastPlayedAt}
	c.mu.Unlock()

	if c.stats == nil {
		return nil
	}
	if err := c.stats.SavePlayStat(id, stats); err != nil {
		return fmt.Errorf("persist play stat %q: %w", id, err)
	}
	return nil
}

// Tags returns every known tag with its line count, sorted by tag.
func (c *Catalog) Tags() []TagCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int)
	for _, l := range c.lines {
		for _, t := range l.Tags {
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagCount{Tag: t, Lines: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// TagCount pairs a tag with how many lines carry it.
type TagCount struct {
	Tag   string
	Lines int
}

// Len returns how many lines are indexed.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}
