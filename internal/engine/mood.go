package engine

import (
	"sync"
	"time"

	"github.com/keshon/voxline/internal/sentiment"
)

// convState is one conversation's mood record. All fields are guarded by mu;
// holding mu across a full decide-select-commit sequence is what serializes
// concurrent messages in the same conversation.
type convState struct {
	mu             sync.Mutex
	mode           Mode
	expiresAt      time.Time
	lastResponseAt time.Time
	lastSeverity   sentiment.Severity
	recent         *RecentWindow
}

// expireLocked collapses the mode to neutral once its window has passed.
// Lazy: no background sweep, every access re-evaluates.
func (st *convState) expireLocked(now time.Time) {
	if st.mode != ModeNeutral && now.After(st.expiresAt) {
		st.mode = ModeNeutral
		st.expiresAt = time.Time{}
	}
}

// MoodSnapshot is the exported form of one conversation's state, used for
// persistence across restarts.
type MoodSnapshot struct {
	Mode           Mode
	ExpiresAt      time.Time
	LastResponseAt time.Time
	LastSeverity   int
	RecentPlays    []string
}

// MoodStore holds per-conversation mood states. Different conversations are
// fully independent; the outer map lock is only held for lookups.
type MoodStore struct {
	mu        sync.RWMutex
	conv      map[string]*convState
	windowCap int
}

// NewMoodStore creates a store whose recent-play windows hold windowCap IDs.
func NewMoodStore(windowCap int) *MoodStore {
	if windowCap < 1 {
		windowCap = 1
	}
	return &MoodStore{conv: make(map[string]*convState), windowCap: windowCap}
}

// get returns the state for conversationID, creating a fresh neutral one for
// unknown conversations. Never an error.
func (m *MoodStore) get(conversationID string) *convState {
	m.mu.RLock()
	st := m.conv[conversationID]
	m.mu.RUnlock()
	if st != nil {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st = m.conv[conversationID]; st != nil {
		return st
	}
	st = &convState{mode: ModeNeutral, recent: NewRecentWindow(m.windowCap)}
	m.conv[conversationID] = st
	return st
}

// Mood returns the current (lazily expired) mode for a conversation.
func (m *MoodStore) Mood(conversationID string, now time.Time) Mode {
	st := m.get(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.expireLocked(now)
	return st.mode
}

// Snapshot exports every conversation's state for persistence.
func (m *MoodStore) Snapshot() map[string]MoodSnapshot {
	m.mu.RLock()
	states := make(map[string]*convState, len(m.conv))
	for id, st := range m.conv {
		states[id] = st
	}
	m.mu.RUnlock()

	out := make(map[string]MoodSnapshot, len(states))
	for id, st := range states {
		st.mu.Lock()
		out[id] = MoodSnapshot{
			Mode:           st.mode,
			ExpiresAt:      st.expiresAt,
			LastResponseAt: st.lastResponseAt,
			LastSeverity:   int(st.lastSeverity),
			RecentPlays:    append([]string(nil), st.recent.Items()...),
		}
		st.mu.Unlock()
	}
	return out
}

// Restore seeds the store from persisted snapshots. Expired modes collapse
// on first access, so stale snapshots are harmless.
func (m *MoodStore) Restore(snapshots map[string]MoodSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, snap := range snapshots {
		st := &convState{
			mode:           snap.Mode,
			expiresAt:      snap.ExpiresAt,
			lastResponseAt: snap.LastResponseAt,
			lastSeverity:   sentiment.Severity(snap.LastSeverity),
			recent:         NewRecentWindow(m.windowCap),
		}
		if st.mode == "" {
			st.mode = ModeNeutral
		}
		for _, play := range snap.RecentPlays {
			st.recent.Push(play)
		}
		m.conv[id] = st
	}
}
