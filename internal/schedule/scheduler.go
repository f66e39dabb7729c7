// Package schedule fires voice lines into enrolled sessions on anchored
// cadences (hourly, daily, weekly, once) with humanizing jitter, a single
// catch-up fire after downtime, and rate-limited delivery.
package schedule

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/voxline/internal/catalog"
	"github.com/keshon/voxline/internal/config"
	"github.com/keshon/voxline/internal/engine"
	"github.com/keshon/voxline/internal/sentiment"
	"github.com/keshon/voxline/internal/storage"
)

// Selector picks one voice line for a tag class, honoring a recent-play
// exclusion. Satisfied by engine.Selector.
type Selector interface {
	Select(tagClass string, excludeRecent []string, now time.Time) (catalog.VoiceLine, error)
}

// TargetStore persists target enrollment and fire history.
type TargetStore interface {
	LoadTargets() (map[string]storage.TargetRecord, error)
	SaveTarget(rec storage.TargetRecord) error
	DeleteTarget(sessionID string) error
}

// Enqueuer hands a delivery to the dispatch pool. Satisfied by Pool.
type Enqueuer interface {
	Enqueue(req engine.DispatchRequest, timeout time.Duration) error
}

// armedRule is one rule's pending fire for one target. next is the nominal
// anchor time; delay is this fire's jitter, re-rolled on every re-arm.
type armedRule struct {
	rule  config.RuleSettings
	next  time.Time
	delay time.Duration
}

type target struct {
	sessionID string
	enabled   bool
	tags      []string
	recent    *engine.RecentWindow
	rules     map[string]*armedRule
	lastFire  map[string]time.Time
	onceDone  map[string]bool
}

// Scheduler owns all schedule targets and drives them from a tick loop. All
// state is guarded by mu; Tick, enrollment changes and status queries may be
// called from any goroutine.
type Scheduler struct {
	settings engine.SettingsProvider
	selector Selector
	pool     Enqueuer
	store    TargetStore
	log      zerolog.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	targets map[string]*target
}

// NewScheduler loads persisted targets and returns a scheduler. rng may be
// nil for a time-seeded source. Rules are armed lazily on the first tick so
// settings edits and restarts go through the same path.
func NewScheduler(settings engine.SettingsProvider, selector Selector, pool Enqueuer, store TargetStore, rng *rand.Rand, log zerolog.Logger) (*Scheduler, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sc := &Scheduler{
		settings: settings,
		selector: selector,
		pool:     pool,
		store:    store,
		log:      log,
		rng:      rng,
		targets:  make(map[string]*target),
	}

	recs, err := store.LoadTargets()
	if err != nil {
		return nil, err
	}
	windowCap := settings.Snapshot().RecentWindow
	for id, rec := range recs {
		sc.targets[id] = targetFromRecord(rec, windowCap)
	}
	return sc, nil
}

func targetFromRecord(rec storage.TargetRecord, windowCap int) *target {
	tg := &target{
		sessionID: rec.SessionID,
		enabled:   rec.Enabled,
		tags:      append([]string(nil), rec.Tags...),
		recent:    engine.NewRecentWindow(windowCap),
		rules:     make(map[string]*armedRule),
		lastFire:  make(map[string]time.Time),
		onceDone:  make(map[string]bool),
	}
	for id, at := range rec.LastFireAt {
		tg.lastFire[id] = at
	}
	for id, done := range rec.OnceDone {
		tg.onceDone[id] = done
	}
	return tg
}

func (tg *target) record() storage.TargetRecord {
	return storage.TargetRecord{
		SessionID:  tg.sessionID,
		Enabled:    tg.enabled,
		Tags:       append([]string(nil), tg.tags...),
		LastFireAt: tg.lastFire,
		OnceDone:   tg.onceDone,
	}
}

// Run ticks the scheduler until ctx is canceled.
func (sc *Scheduler) Run(ctx context.Context) {
	for {
		interval := sc.settings.Snapshot().TickInterval.Std()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case now := <-timer.C:
			sc.Tick(now)
		}
	}
}

// Tick arms rules against the current settings and fires everything due.
func (sc *Scheduler) Tick(now time.Time) {
	s := sc.settings.Snapshot()
	if !s.Enabled {
		return
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	for _, tg := range sc.targets {
		if !tg.enabled {
			continue
		}
		sc.syncRulesLocked(tg, s, now)
		for _, ar := range tg.rules {
			if now.Before(ar.next.Add(ar.delay)) {
				continue
			}
			sc.fireLocked(tg, ar, now, s)
		}
	}
}

// syncRulesLocked reconciles a target's armed rules with the settings rule
// set: new rules arm, edited rules re-arm from now, removed or deactivated
// rules disarm. A rule with persisted fire history whose next anchor already
// passed arms in the past, which yields exactly one catch-up fire.
func (sc *Scheduler) syncRulesLocked(tg *target, s *config.Settings, now time.Time) {
	live := make(map[string]bool, len(s.Rules))
	for _, rule := range s.Rules {
		if !rule.Active {
			continue
		}
		live[rule.ID] = true
		if rule.Frequency == "once" && tg.onceDone[rule.ID] {
			delete(tg.rules, rule.ID)
			continue
		}

		ar, ok := tg.rules[rule.ID]
		if ok && ruleEqual(ar.rule, rule) {
			continue
		}
		if ok {
			// Edited rule: re-arm from now, keeping fire history.
			tg.rules[rule.ID] = &armedRule{rule: rule, next: nextAfter(rule, now), delay: sc.rollJitter(rule)}
			continue
		}

		base := tg.lastFire[rule.ID]
		if base.IsZero() {
			// Never fired for this target: no catch-up, first fire is the
			// next anchor.
			tg.rules[rule.ID] = &armedRule{rule: rule, next: nextAfter(rule, now), delay: sc.rollJitter(rule)}
			continue
		}
		next := nextAfter(rule, base)
		delay := sc.rollJitter(rule)
		if !next.After(now) {
			// Missed while down; due immediately.
			delay = 0
		}
		tg.rules[rule.ID] = &armedRule{rule: rule, next: next, delay: delay}
	}

	for id := range tg.rules {
		if !live[id] {
			delete(tg.rules, id)
		}
	}
}

// fireLocked performs one fire and re-arms the rule from now, which collapses
// any backlog of missed anchors into the single fire that just happened.
func (sc *Scheduler) fireLocked(tg *target, ar *armedRule, now time.Time, s *config.Settings) {
	tag := sc.pickTagLocked(ar.rule.Tags, tg.tags)
	// Night guard: low-severity scheduled fires inside quiet hours resolve
	// to the idle-soothing class, same as the reactive path.
	if engine.InQuietHours(s, now) && sentiment.SeverityOf(sentiment.Class(tag)) < sentiment.SeverityHigh {
		tag = string(sentiment.ClassSanity)
	}
	line, err := sc.selector.Select(tag, tg.recent.Items(), now)
	if err != nil {
		sc.log.Warn().Err(err).
			Str("session", tg.sessionID).
			Str("rule", ar.rule.ID).
			Str("tag", tag).
			Msg("scheduled fire selected nothing")
	} else {
		tg.recent.Push(line.ID)
		if err := sc.pool.Enqueue(engine.DispatchRequest{VoiceLineID: line.ID, SessionID: tg.sessionID}, s.DispatchTimeout.Std()); err != nil {
			sc.log.Warn().Err(err).
				Str("session", tg.sessionID).
				Str("rule", ar.rule.ID).
				Msg("scheduled fire dropped")
		}
	}

	// The period is consumed on failure too; only downtime earns a catch-up.
	tg.lastFire[ar.rule.ID] = now
	if ar.rule.Frequency == "once" {
		tg.onceDone[ar.rule.ID] = true
		delete(tg.rules, ar.rule.ID)
	} else {
		ar.next = nextAfter(ar.rule, now)
		ar.delay = sc.rollJitter(ar.rule)
	}
	sc.persistLocked(tg)

	sc.log.Info().
		Str("session", tg.sessionID).
		Str("rule", ar.rule.ID).
		Str("tag", tag).
		Time("fired_at", now).
		Msg("schedule fired")
}

func (sc *Scheduler) rollJitter(rule config.RuleSettings) time.Duration {
	j := rule.Jitter.Std()
	if j <= 0 {
		return 0
	}
	return time.Duration(sc.rng.Int63n(int64(j)))
}

// pickTagLocked chooses the tag class for a fire: the rule's own pool wins,
// then the target's, then the whole catalog.
func (sc *Scheduler) pickTagLocked(ruleTags, targetTags []string) string {
	pool := ruleTags
	if len(pool) == 0 {
		pool = targetTags
	}
	if len(pool) == 0 {
		return ""
	}
	return pool[sc.rng.Intn(len(pool))]
}

func (sc *Scheduler) persistLocked(tg *target) {
	if err := sc.store.SaveTarget(tg.record()); err != nil {
		sc.log.Error().Err(err).Str("session", tg.sessionID).Msg("persist schedule target failed")
	}
}

// EnableTarget enrolls (or re-enables) a session for scheduled fires.
func (sc *Scheduler) EnableTarget(sessionID string, tags []string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	tg := sc.targets[sessionID]
	if tg == nil {
		tg = targetFromRecord(storage.TargetRecord{SessionID: sessionID}, sc.settings.Snapshot().RecentWindow)
		sc.targets[sessionID] = tg
	}
	tg.enabled = true
	if tags != nil {
		tg.tags = append([]string(nil), tags...)
	}
	return sc.store.SaveTarget(tg.record())
}

// DisableTarget stops scheduled fires for a session, keeping its history so
// re-enabling does not replay the past.
func (sc *Scheduler) DisableTarget(sessionID string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	tg := sc.targets[sessionID]
	if tg == nil {
		return nil
	}
	tg.enabled = false
	tg.rules = make(map[string]*armedRule)
	return sc.store.SaveTarget(tg.record())
}

// ForgetTarget drops a session's enrollment and fire history entirely.
func (sc *Scheduler) ForgetTarget(sessionID string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.targets, sessionID)
	return sc.store.DeleteTarget(sessionID)
}

// TargetStatus is a read-only view of one target for status commands.
type TargetStatus struct {
	Enabled  bool
	Tags     []string
	NextFire time.Time // zero when nothing is armed
}

// Status reports a session's enrollment state. ok is false for sessions that
// were never enrolled.
func (sc *Scheduler) Status(sessionID string) (TargetStatus, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	tg := sc.targets[sessionID]
	if tg == nil {
		return TargetStatus{}, false
	}
	st := TargetStatus{Enabled: tg.enabled, Tags: append([]string(nil), tg.tags...)}
	for _, ar := range tg.rules {
		due := ar.next.Add(ar.delay)
		if st.NextFire.IsZero() || due.Before(st.NextFire) {
			st.NextFire = due
		}
	}
	return st, true
}

func ruleEqual(a, b config.RuleSettings) bool {
	return a.ID == b.ID &&
		a.Frequency == b.Frequency &&
		a.Anchor == b.Anchor &&
		a.Weekday == b.Weekday &&
		a.Jitter == b.Jitter &&
		a.Active == b.Active &&
		slices.Equal(a.Tags, b.Tags)
}

// nextAfter returns the first anchor occurrence strictly after ref. Fires
// stay aligned to the configured clock time no matter when the previous fire
// actually happened.
func nextAfter(rule config.RuleSettings, ref time.Time) time.Time {
	y, mo, d := ref.Date()
	loc := ref.Location()

	switch rule.Frequency {
	case "hourly":
		next := time.Date(y, mo, d, ref.Hour(), rule.Anchor.Minute, 0, 0, loc)
		if !next.After(ref) {
			next = next.Add(time.Hour)
		}
		return next
	case "weekly":
		next := time.Date(y, mo, d, rule.Anchor.Hour, rule.Anchor.Minute, 0, 0, loc)
		days := (rule.Weekday - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, days)
		if !next.After(ref) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	default: // daily and once share the daily anchor
		next := time.Date(y, mo, d, rule.Anchor.Hour, rule.Anchor.Minute, 0, 0, loc)
		if !next.After(ref) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}
