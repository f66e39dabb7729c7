package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/voxline/internal/sentiment"
)

// Resolver turns raw message text into ranked tag classes.
type Resolver interface {
	Resolve(text string) []sentiment.Match
}

// Engine wires resolver, mood store and selector into the reactive path.
type Engine struct {
	resolver Resolver
	moods    *MoodStore
	selector *Selector
	settings SettingsProvider
	log      zerolog.Logger
}

// New creates an engine. moods may be pre-seeded via MoodStore.Restore.
func New(resolver Resolver, moods *MoodStore, selector *Selector, settings SettingsProvider, log zerolog.Logger) *Engine {
	return &Engine{
		resolver: resolver,
		moods:    moods,
		selector: selector,
		settings: settings,
		log:      log,
	}
}

// Moods exposes the mood store for persistence wiring.
func (e *Engine) Moods() *MoodStore { return e.moods }

// OnMessage handles one inbound message that passed the host's trigger
// filter. Returns nil when no response is owed (no tags resolved, engine
// disabled, cooldown suppression). Catalog failures fail closed with the
// mood/cooldown state left untouched.
func (e *Engine) OnMessage(conversationID, rawText string, now time.Time) (*DispatchRequest, error) {
	s := e.settings.Snapshot()
	if !s.Enabled {
		return nil, nil
	}

	tags := e.resolver.Resolve(rawText)
	if len(tags) == 0 {
		return nil, nil
	}

	st := e.moods.get(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()

	d := e.evaluateLocked(st, tags, now, s)
	if !d.Emit {
		e.log.Debug().
			Str("conversation", conversationID).
			Str("class", string(d.Class)).
			Str("reason", d.SuppressReason).
			Msg("response suppressed")
		return nil, nil
	}

	st.recent.Resize(s.RecentWindow)
	line, err := e.selector.Select(string(d.Class), st.recent.Items(), now)
	if err != nil {
		// Selection failed: nothing was emitted, so the cooldown is not
		// burned and the mood stays as it was.
		return nil, err
	}

	e.commitLocked(st, d, now, s)
	st.recent.Push(line.ID)

	e.log.Info().
		Str("conversation", conversationID).
		Str("class", string(d.Class)).
		Str("severity", d.Severity.String()).
		Str("voice_line", line.ID).
		Msg("reactive voice line selected")

	return &DispatchRequest{VoiceLineID: line.ID, SessionID: conversationID}, nil
}
