// Package engine is the reactive decision core: per-conversation mood state
// with inertia, adaptive cooldown gating with severity pre-emption, and
// weighted anti-repeat voice-line selection.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/keshon/voxline/internal/catalog"
	"github.com/keshon/voxline/internal/sentiment"
)

// Mode is the conversation's current emotional mode. At most one mode is
// active per conversation at any instant.
type Mode string

const (
	ModeNeutral     Mode = "neutral"
	ModeComfort     Mode = "comfort"
	ModeSanityGuard Mode = "sanity_guard"
)

// SuppressCooldown is the reason attached to a cooldown suppression.
// Suppression is a normal outcome, not an error.
const SuppressCooldown = "cooldown"

// Decision is the outcome of one Decide call.
type Decision struct {
	Emit           bool
	Class          sentiment.Class
	Severity       sentiment.Severity
	Cooldown       time.Duration // window that will gate the next response
	SuppressReason string        // set when Emit is false
}

// DispatchRequest asks the host to deliver one voice line to one session.
type DispatchRequest struct {
	VoiceLineID string
	SessionID   string
}

// Dispatcher performs the actual send. Implementations may be slow; callers
// bound them with ctx.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) error
}

// Catalog is the read/write surface the engine needs from the voice catalog.
type Catalog interface {
	CandidatesForTag(tag string) ([]catalog.VoiceLine, error)
	RecordPlay(id string, now time.Time) error
}

// ErrEmptyClass reports that no catalog entry matches the requested tag
// class. Never silently substituted with an unrelated class.
var ErrEmptyClass = errors.New("no voice lines match the requested tag class")

// modeForClass maps a winning tag class to the mood it establishes.
func modeForClass(c sentiment.Class) Mode {
	switch c {
	case sentiment.ClassComfort, sentiment.ClassDontCry:
		return ModeComfort
	case sentiment.ClassSanity:
		return ModeSanityGuard
	default:
		return ModeNeutral
	}
}
