package engine

import (
	"time"

	"github.com/keshon/voxline/internal/config"
	"github.com/keshon/voxline/internal/sentiment"
)

// SettingsProvider hands out the current immutable settings snapshot.
// Re-read on every Decide call so edits apply without restart.
type SettingsProvider interface {
	Snapshot() *config.Settings
}

// cooldownFor returns the inter-response window for a severity. Higher
// severity shrinks the window; urgent divides the ordinary window by the
// configured divisor (default 5).
func cooldownFor(s *config.Settings, sev sentiment.Severity) time.Duration {
	base := s.OrdinaryCooldown.Std()
	switch sev {
	case sentiment.SeverityUrgent:
		return base / time.Duration(s.UrgentDivisor)
	case sentiment.SeverityHigh:
		return base / 2
	default:
		return base
	}
}

// InQuietHours reports whether the local clock of now falls inside the
// configured quiet window. The window may wrap midnight. Shared with the
// scheduler, which softens low-severity fires during quiet hours.
func InQuietHours(s *config.Settings, now time.Time) bool {
	start, end := s.QuietStart.Minutes(), s.QuietEnd.Minutes()
	if start == end {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if start < end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

// evaluateLocked computes the decision for the winning tag without mutating
// state. st.mu must be held.
func (e *Engine) evaluateLocked(st *convState, tags []sentiment.Match, now time.Time, s *config.Settings) Decision {
	st.expireLocked(now)

	win := tags[0]
	class, sev := win.Class, win.Severity

	// Mood inertia: while a comfort mode holds, low-severity chatter keeps
	// routing to comfort-class responses instead of whiplashing to neutral.
	if st.mode == ModeComfort && sev == sentiment.SeverityOrdinary {
		class = sentiment.ClassComfort
	}

	// Night guard: in quiet hours, anything short of high severity resolves
	// to the idle-soothing class.
	if sev < sentiment.SeverityHigh && InQuietHours(s, now) {
		class = sentiment.ClassSanity
	}

	window := cooldownFor(s, sev)
	if !st.lastResponseAt.IsZero() && now.Sub(st.lastResponseAt) < window {
		// A strictly higher-severity class always pre-empts the cooldown set
		// by a lower one; an urgent message is never dropped behind a casual
		// reply still cooling down.
		if sev <= st.lastSeverity {
			return Decision{SuppressReason: SuppressCooldown, Class: class, Severity: sev}
		}
	}

	return Decision{Emit: true, Class: class, Severity: sev, Cooldown: window}
}

// commitLocked applies an Emit decision to conversation state. st.mu must be
// held.
func (e *Engine) commitLocked(st *convState, d Decision, now time.Time, s *config.Settings) {
	mode := modeForClass(d.Class)
	st.mode = mode
	if mode != ModeNeutral {
		st.expiresAt = now.Add(s.MoodInertia.Std())
	} else {
		st.expiresAt = time.Time{}
	}
	st.lastResponseAt = now
	st.lastSeverity = d.Severity
}

// Decide runs the decision algorithm for one classified message and, on
// Emit, commits the mood/cooldown update. Concurrent calls for the same
// conversation serialize on the conversation lock.
func (e *Engine) Decide(conversationID string, tags []sentiment.Match, now time.Time) Decision {
	if len(tags) == 0 {
		return Decision{SuppressReason: "no tags"}
	}
	s := e.settings.Snapshot()

	st := e.moods.get(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()

	d := e.evaluateLocked(st, tags, now, s)
	if d.Emit {
		e.commitLocked(st, d, now, s)
	}
	return d
}
