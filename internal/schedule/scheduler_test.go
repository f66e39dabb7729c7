package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/voxline/internal/catalog"
	"github.com/keshon/voxline/internal/config"
	"github.com/keshon/voxline/internal/engine"
	"github.com/keshon/voxline/internal/storage"
)

type settingsHolder struct{ s *config.Settings }

func (h *settingsHolder) Snapshot() *config.Settings { return h.s }

type fakeSelector struct {
	lines []string
	i     int
	err   error
	tags  []string // tag class of every Select call, in order
}

func (f *fakeSelector) Select(tagClass string, excludeRecent []string, now time.Time) (catalog.VoiceLine, error) {
	f.tags = append(f.tags, tagClass)
	if f.err != nil {
		return catalog.VoiceLine{}, f.err
	}
	id := f.lines[f.i%len(f.lines)]
	f.i++
	return catalog.VoiceLine{ID: id}, nil
}

type fakeStore struct {
	targets map[string]storage.TargetRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{targets: make(map[string]storage.TargetRecord)}
}

func (f *fakeStore) LoadTargets() (map[string]storage.TargetRecord, error) {
	out := make(map[string]storage.TargetRecord, len(f.targets))
	for id, rec := range f.targets {
		out[id] = rec
	}
	return out, nil
}

func (f *fakeStore) SaveTarget(rec storage.TargetRecord) error {
	f.targets[rec.SessionID] = rec
	return nil
}

func (f *fakeStore) DeleteTarget(sessionID string) error {
	delete(f.targets, sessionID)
	return nil
}

type fakePool struct {
	reqs []engine.DispatchRequest
	err  error
}

func (p *fakePool) Enqueue(req engine.DispatchRequest, timeout time.Duration) error {
	if p.err != nil {
		return p.err
	}
	p.reqs = append(p.reqs, req)
	return nil
}

func dailyRule(jitter time.Duration) config.RuleSettings {
	return config.RuleSettings{
		ID:        "morning-call",
		Frequency: "daily",
		Anchor:    config.ClockTime{Hour: 8},
		Jitter:    config.Duration(jitter),
		Tags:      []string{"morning"},
		Active:    true,
	}
}

func schedSettings(rules ...config.RuleSettings) *config.Settings {
	return &config.Settings{
		Enabled:         true,
		RecentWindow:    5,
		TickInterval:    config.Duration(5 * time.Second),
		DispatchTimeout: config.Duration(20 * time.Second),
		Rules:           rules,
	}
}

func newTestScheduler(t *testing.T, store *fakeStore, s *config.Settings) (*Scheduler, *fakeSelector, *fakePool) {
	t.Helper()
	sel := &fakeSelector{lines: []string{"theresia_morning_01", "theresia_morning_02"}}
	pool := &fakePool{}
	sc, err := NewScheduler(&settingsHolder{s}, sel, pool, store, rand.New(rand.NewSource(11)), zerolog.Nop())
	require.NoError(t, err)
	return sc, sel, pool
}

func day(d, hour, min, sec int) time.Time {
	return time.Date(2026, 8, d, hour, min, sec, 0, time.UTC)
}

func TestDailyFiresAtAnchor(t *testing.T) {
	store := newFakeStore()
	sc, sel, pool := newTestScheduler(t, store, schedSettings(dailyRule(0)))
	require.NoError(t, sc.EnableTarget("chan-1", nil))

	// Before the anchor nothing is due.
	sc.Tick(day(10, 7, 59, 0))
	assert.Empty(t, pool.reqs)

	sc.Tick(day(10, 8, 0, 1))
	require.Len(t, pool.reqs, 1)
	assert.Equal(t, "chan-1", pool.reqs[0].SessionID)
	assert.Equal(t, []string{"morning"}, sel.tags)

	// Same period never fires twice.
	sc.Tick(day(10, 8, 0, 6))
	sc.Tick(day(10, 23, 0, 0))
	assert.Len(t, pool.reqs, 1)

	// Next day's anchor fires again.
	sc.Tick(day(11, 8, 0, 2))
	assert.Len(t, pool.reqs, 2)
}

func TestCatchUpFiresOnceAfterDowntime(t *testing.T) {
	store := newFakeStore()
	store.targets["chan-1"] = storage.TargetRecord{
		SessionID:  "chan-1",
		Enabled:    true,
		LastFireAt: map[string]time.Time{"morning-call": day(7, 8, 0, 3)},
	}
	sc, _, pool := newTestScheduler(t, store, schedSettings(dailyRule(0)))

	// Down from Aug 7 through Aug 10 09:30: three anchors missed, one fire.
	sc.Tick(day(10, 9, 30, 0))
	assert.Len(t, pool.reqs, 1)

	sc.Tick(day(10, 9, 35, 0))
	sc.Tick(day(10, 23, 0, 0))
	assert.Len(t, pool.reqs, 1)

	// The cadence re-anchors to 08:00, not to the catch-up time.
	st, ok := sc.Status("chan-1")
	require.True(t, ok)
	assert.Equal(t, day(11, 8, 0, 0), st.NextFire)

	sc.Tick(day(11, 8, 0, 4))
	assert.Len(t, pool.reqs, 2)
}

func TestNoCatchUpWhenNothingMissed(t *testing.T) {
	store := newFakeStore()
	store.targets["chan-1"] = storage.TargetRecord{
		SessionID:  "chan-1",
		Enabled:    true,
		LastFireAt: map[string]time.Time{"morning-call": day(9, 8, 0, 3)},
	}
	sc, _, pool := newTestScheduler(t, store, schedSettings(dailyRule(0)))

	// Restart at 07:00 the next day: yesterday's fire already happened, so
	// nothing is due until the anchor.
	sc.Tick(day(10, 7, 0, 0))
	assert.Empty(t, pool.reqs)

	sc.Tick(day(10, 8, 0, 2))
	assert.Len(t, pool.reqs, 1)
}

func TestJitterDelaysWithinBound(t *testing.T) {
	store := newFakeStore()
	sc, _, pool := newTestScheduler(t, store, schedSettings(dailyRule(10*time.Minute)))
	require.NoError(t, sc.EnableTarget("chan-1", nil))

	sc.Tick(day(10, 7, 59, 59))
	assert.Empty(t, pool.reqs, "jitter never fires before the anchor")

	// Sweep the jitter window; exactly one fire lands inside it.
	for sec := 0; sec <= 600; sec += 30 {
		sc.Tick(day(10, 8, 0, 0).Add(time.Duration(sec) * time.Second))
	}
	assert.Len(t, pool.reqs, 1)
}

func TestOnceFiresExactlyOnce(t *testing.T) {
	rule := config.RuleSettings{
		ID:        "launch-note",
		Frequency: "once",
		Anchor:    config.ClockTime{Hour: 12},
		Tags:      []string{"company"},
		Active:    true,
	}
	store := newFakeStore()
	sc, _, pool := newTestScheduler(t, store, schedSettings(rule))
	require.NoError(t, sc.EnableTarget("chan-1", nil))

	sc.Tick(day(10, 11, 0, 0))
	sc.Tick(day(10, 12, 0, 3))
	assert.Len(t, pool.reqs, 1)

	// Never again, including after a restart with the persisted record.
	sc.Tick(day(11, 12, 0, 3))
	assert.Len(t, pool.reqs, 1)
	assert.True(t, store.targets["chan-1"].OnceDone["launch-note"])

	sc2, _, pool2 := newTestScheduler(t, store, schedSettings(rule))
	sc2.Tick(day(12, 12, 0, 3))
	assert.Empty(t, pool2.reqs)
}

func TestSelectionFailureConsumesPeriod(t *testing.T) {
	store := newFakeStore()
	sc, sel, pool := newTestScheduler(t, store, schedSettings(dailyRule(0)))
	require.NoError(t, sc.EnableTarget("chan-1", nil))
	sc.Tick(day(10, 7, 59, 0)) // arm before the anchor

	sel.err = catalog.ErrUnavailable
	sc.Tick(day(10, 8, 0, 2))
	assert.Empty(t, pool.reqs)
	assert.Len(t, sel.tags, 1, "the fire attempted a selection")

	// The period is spent: recovery does not retry it.
	sel.err = nil
	sc.Tick(day(10, 8, 5, 0))
	assert.Empty(t, pool.reqs)

	sc.Tick(day(11, 8, 0, 2))
	assert.Len(t, pool.reqs, 1)
}

func TestDisableStopsFires(t *testing.T) {
	store := newFakeStore()
	sc, _, pool := newTestScheduler(t, store, schedSettings(dailyRule(0)))
	require.NoError(t, sc.EnableTarget("chan-1", nil))

	sc.Tick(day(10, 7, 59, 0)) // arm before the anchor
	sc.Tick(day(10, 8, 0, 1))
	assert.Len(t, pool.reqs, 1)

	require.NoError(t, sc.DisableTarget("chan-1"))
	sc.Tick(day(11, 8, 0, 1))
	sc.Tick(day(12, 8, 0, 1))
	assert.Len(t, pool.reqs, 1)
	assert.False(t, store.targets["chan-1"].Enabled)
}

func TestRuleEditReArms(t *testing.T) {
	s := schedSettings(dailyRule(0))
	store := newFakeStore()
	sc, _, pool := newTestScheduler(t, store, s)
	require.NoError(t, sc.EnableTarget("chan-1", nil))

	sc.Tick(day(10, 7, 59, 0)) // arm before the anchor
	sc.Tick(day(10, 8, 0, 1))
	assert.Len(t, pool.reqs, 1)

	// Move the anchor to 20:00; the new time applies the same day without a
	// spurious fire at reload.
	edited := dailyRule(0)
	edited.Anchor = config.ClockTime{Hour: 20}
	s.Rules = []config.RuleSettings{edited}

	sc.Tick(day(10, 12, 0, 0))
	assert.Len(t, pool.reqs, 1)
	sc.Tick(day(10, 20, 0, 2))
	assert.Len(t, pool.reqs, 2)
}

func TestTargetTagsUsedWhenRuleHasNone(t *testing.T) {
	rule := dailyRule(0)
	rule.Tags = nil
	store := newFakeStore()
	sc, sel, pool := newTestScheduler(t, store, schedSettings(rule))
	require.NoError(t, sc.EnableTarget("chan-1", []string{"company"}))

	sc.Tick(day(10, 7, 59, 0)) // arm before the anchor
	sc.Tick(day(10, 8, 0, 1))
	require.Len(t, pool.reqs, 1)
	assert.Equal(t, []string{"company"}, sel.tags)
}

func TestQuietHoursSoftenScheduledFires(t *testing.T) {
	rule := dailyRule(0)
	rule.Anchor = config.ClockTime{Hour: 1, Minute: 15}
	s := schedSettings(rule)
	s.QuietStart = config.ClockTime{Hour: 1}
	s.QuietEnd = config.ClockTime{Hour: 5}

	store := newFakeStore()
	sc, sel, pool := newTestScheduler(t, store, s)
	require.NoError(t, sc.EnableTarget("chan-1", nil))

	sc.Tick(day(10, 1, 10, 0)) // arm before the anchor
	sc.Tick(day(10, 1, 30, 0))
	require.Len(t, pool.reqs, 1)
	assert.Equal(t, []string{"sanity"}, sel.tags, "a morning-tagged fire inside quiet hours resolves to the soothing class")
}

func TestQuietHoursKeepHighSeverityTags(t *testing.T) {
	rule := dailyRule(0)
	rule.Anchor = config.ClockTime{Hour: 1, Minute: 15}
	rule.Tags = []string{"comfort"}
	s := schedSettings(rule)
	s.QuietStart = config.ClockTime{Hour: 1}
	s.QuietEnd = config.ClockTime{Hour: 5}

	store := newFakeStore()
	sc, sel, pool := newTestScheduler(t, store, s)
	require.NoError(t, sc.EnableTarget("chan-1", nil))

	sc.Tick(day(10, 1, 10, 0))
	sc.Tick(day(10, 1, 30, 0))
	require.Len(t, pool.reqs, 1)
	assert.Equal(t, []string{"comfort"}, sel.tags, "urgent classes punch through the night guard")
}

func TestNextAfter(t *testing.T) {
	tests := []struct {
		name string
		rule config.RuleSettings
		ref  time.Time
		want time.Time
	}{
		{
			name: "daily before anchor",
			rule: config.RuleSettings{Frequency: "daily", Anchor: config.ClockTime{Hour: 8}},
			ref:  day(10, 7, 0, 0),
			want: day(10, 8, 0, 0),
		},
		{
			name: "daily after anchor rolls over",
			rule: config.RuleSettings{Frequency: "daily", Anchor: config.ClockTime{Hour: 8}},
			ref:  day(10, 8, 0, 0),
			want: day(11, 8, 0, 0),
		},
		{
			name: "hourly",
			rule: config.RuleSettings{Frequency: "hourly", Anchor: config.ClockTime{Minute: 30}},
			ref:  day(10, 14, 45, 0),
			want: day(10, 15, 30, 0),
		},
		{
			name: "weekly same day before anchor",
			// Aug 10 2026 is a Monday.
			rule: config.RuleSettings{Frequency: "weekly", Weekday: 1, Anchor: config.ClockTime{Hour: 9}},
			ref:  day(10, 8, 0, 0),
			want: day(10, 9, 0, 0),
		},
		{
			name: "weekly same day after anchor",
			rule: config.RuleSettings{Frequency: "weekly", Weekday: 1, Anchor: config.ClockTime{Hour: 9}},
			ref:  day(10, 10, 0, 0),
			want: day(17, 9, 0, 0),
		},
		{
			name: "once behaves like daily",
			rule: config.RuleSettings{Frequency: "once", Anchor: config.ClockTime{Hour: 12}},
			ref:  day(10, 13, 0, 0),
			want: day(11, 12, 0, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextAfter(tt.rule, tt.ref))
		})
	}
}
