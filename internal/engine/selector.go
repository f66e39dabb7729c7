package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/keshon/voxline/internal/catalog"
)

// Selector picks voice lines from the catalog with weighted anti-repeat
// sampling: lines played more than the class average get proportionally less
// weight, unplayed lines get the most, and nothing is ever excluded outright
// on count alone. Safe for concurrent use.
type Selector struct {
	cat Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector. rng may be nil, in which case a time-seeded
// source is used; tests inject a fixed seed for reproducibility.
func NewSelector(cat Catalog, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{cat: cat, rng: rng}
}

// Select picks one line carrying tagClass, skipping excludeRecent unless
// that would empty the pool (a user-facing request never fails just because
// everything was recently played). On success the play is recorded in the
// catalog; pushing the ID into a recent window is the caller's job since
// windows are per conversation or per schedule target.
func (sel *Selector) Select(tagClass string, excludeRecent []string, now time.Time) (catalog.VoiceLine, error) {
	candidates, err := sel.cat.CandidatesForTag(tagClass)
	if err != nil {
		return catalog.VoiceLine{}, err
	}
	if len(candidates) == 0 {
		return catalog.VoiceLine{}, fmt.Errorf("%w: %q", ErrEmptyClass, tagClass)
	}

	pool := excludeIDs(candidates, excludeRecent)
	if len(pool) == 0 {
		// Exhaustion fallback: drop the exclusion for this pick only.
		pool = candidates
	}

	chosen := sel.weightedPick(pool)
	if err := sel.cat.RecordPlay(chosen.ID, now); err != nil {
		return catalog.VoiceLine{}, err
	}
	return chosen, nil
}

// weightedPick samples one line with weight (classMean+1)/(plays+1): strictly
// monotonic in play count, maximal at zero plays, never zero.
func (sel *Selector) weightedPick(pool []catalog.VoiceLine) catalog.VoiceLine {
	var mean float64
	for _, l := range pool {
		mean += float64(l.PlayCount)
	}
	mean /= float64(len(pool))

	weights := make([]float64, len(pool))
	var total float64
	for i, l := range pool {
		w := (mean + 1) / (float64(l.PlayCount) + 1)
		weights[i] = w
		total += w
	}

	sel.mu.Lock()
	r := sel.rng.Float64() * total
	sel.mu.Unlock()

	for i, w := range weights {
		r -= w
		if r < 0 {
			return pool[i]
		}
	}
	return pool[len(pool)-1] // float residue
}

func excludeIDs(candidates []catalog.VoiceLine, exclude []string) []catalog.VoiceLine {
	if len(exclude) == 0 {
		return candidates
	}
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	out := make([]catalog.VoiceLine, 0, len(candidates))
	for _, l := range candidates {
		if !skip[l.ID] {
			out = append(out, l)
		}
	}
	return out
}
