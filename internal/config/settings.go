package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Duration is a time.Duration that marshals as a string ("15s", "10m").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ClockTime is a time-of-day anchor in "HH:MM" form.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q out of range", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// RuleSettings describes one schedule rule.
type RuleSettings struct {
	ID        string    `json:"id"`
	Frequency string    `json:"frequency"` // hourly, daily, weekly, once
	Anchor    ClockTime `json:"anchor"`
	Weekday   int       `json:"weekday,omitempty"` // weekly only, 0 = Sunday
	Jitter    Duration  `json:"jitter"`
	Tags      []string  `json:"tags,omitempty"` // empty = unrestricted
	Active    bool      `json:"active"`
}

// Settings is the hot-reloadable runtime configuration. Instances are
// immutable once published; consumers grab a snapshot per call.
type Settings struct {
	Enabled          bool      `json:"enabled"`
	CommandPrefix    string    `json:"command_prefix"`
	TriggerKeywords  []string  `json:"trigger_keywords"`
	OrdinaryCooldown Duration  `json:"ordinary_cooldown"`
	UrgentDivisor    int       `json:"urgent_divisor"`
	MoodInertia      Duration  `json:"mood_inertia"`
	RecentWindow     int       `json:"recent_window"`
	QuietStart       ClockTime `json:"quiet_start"`
	QuietEnd         ClockTime `json:"quiet_end"`
	TickInterval     Duration  `json:"tick_interval"`
	DispatchTimeout  Duration  `json:"dispatch_timeout"`
	DispatchWorkers  int       `json:"dispatch_workers"`
	DispatchRate     float64   `json:"dispatch_rate"` // fires per second across all targets

	Rules []RuleSettings `json:"rules"`
}

// DefaultSettings mirrors the documented defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Enabled:          true,
		CommandPrefix:    "!vox",
		TriggerKeywords:  []string{"特雷西娅", "特蕾西娅", "theresia"},
		OrdinaryCooldown: Duration(15 * time.Second),
		UrgentDivisor:    5,
		MoodInertia:      Duration(10 * time.Minute),
		RecentWindow:     5,
		QuietStart:       ClockTime{Hour: 1},
		QuietEnd:         ClockTime{Hour: 5},
		TickInterval:     Duration(5 * time.Second),
		DispatchTimeout:  Duration(20 * time.Second),
		DispatchWorkers:  4,
		DispatchRate:     2,
	}
}

// normalize fills zero fields so a sparse settings file still yields a
// usable snapshot.
func (s *Settings) normalize() {
	def := DefaultSettings()
	if s.CommandPrefix == "" {
		s.CommandPrefix = def.CommandPrefix
	}
	if s.OrdinaryCooldown <= 0 {
		s.OrdinaryCooldown = def.OrdinaryCooldown
	}
	if s.UrgentDivisor <= 0 {
		s.UrgentDivisor = def.UrgentDivisor
	}
	if s.MoodInertia <= 0 {
		s.MoodInertia = def.MoodInertia
	}
	if s.RecentWindow <= 0 {
		s.RecentWindow = def.RecentWindow
	}
	if s.TickInterval <= 0 {
		s.TickInterval = def.TickInterval
	}
	if s.DispatchTimeout <= 0 {
		s.DispatchTimeout = def.DispatchTimeout
	}
	if s.DispatchWorkers <= 0 {
		s.DispatchWorkers = def.DispatchWorkers
	}
	if s.DispatchRate <= 0 {
		s.DispatchRate = def.DispatchRate
	}
}

// SettingsStore publishes immutable settings snapshots. Decide/Tick callers
// read the current snapshot on every call, so a reload can never be observed
// half-applied.
type SettingsStore struct {
	path string
	cur  atomic.Pointer[Settings]
}

// NewSettingsStore loads path (writing defaults when the file is absent)
// and returns the store.
func NewSettingsStore(path string) (*SettingsStore, error) {
	st := &SettingsStore{path: path}
	if err := st.Reload(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		def := DefaultSettings()
		st.cur.Store(def)
		if err := st.save(def); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Snapshot returns the current immutable settings. Never nil.
func (st *SettingsStore) Snapshot() *Settings {
	return st.cur.Load()
}

// Reload re-reads the settings file and swaps the snapshot.
func (st *SettingsStore) Reload() error {
	data, err := os.ReadFile(st.path)
	if err != nil {
		return err
	}
	s := &Settings{}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("decode settings %s: %w", st.path, err)
	}
	s.normalize()
	st.cur.Store(s)
	return nil
}

// Update applies fn to a copy of the current snapshot, persists it and
// publishes the result. Used by chat commands (schedule on/off etc).
func (st *SettingsStore) Update(fn func(*Settings)) error {
	cp := *st.cur.Load()
	cp.Rules = append([]RuleSettings(nil), cp.Rules...)
	fn(&cp)
	cp.normalize()
	if err := st.save(&cp); err != nil {
		return err
	}
	st.cur.Store(&cp)
	return nil
}

func (st *SettingsStore) save(s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(st.path, data, 0644)
}
