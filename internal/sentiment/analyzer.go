// Package sentiment resolves raw chat text into ranked tag classes using a
// fixed lexicon of keywords, regular expressions and emoji, with a sliding
// modifier window for intensifiers and negations. Pure functions, no I/O,
// no LLM: resolution stays inline in the message path.
package sentiment

import (
	"regexp"
	"sort"
	"strings"
)

// Severity orders tag classes for cooldown pre-emption. Urgent outranks
// High outranks Ordinary.
type Severity int

const (
	SeverityOrdinary Severity = iota
	SeverityHigh
	SeverityUrgent
)

func (s Severity) String() string {
	switch s {
	case SeverityUrgent:
		return "urgent"
	case SeverityHigh:
		return "high"
	default:
		return "ordinary"
	}
}

// Class is a semantic tag class grouping voice lines and trigger words.
type Class string

const (
	ClassMorning Class = "morning"
	ClassSanity  Class = "sanity"
	ClassDontCry Class = "dont_cry"
	ClassComfort Class = "comfort"
	ClassFail    Class = "fail"
	ClassCompany Class = "company"
	ClassTrust   Class = "trust"
	ClassPoke    Class = "poke"
)

// classRank breaks ties between classes of equal severity and score.
// Lower is stronger.
var classRank = map[Class]int{
	ClassComfort: 0,
	ClassDontCry: 1,
	ClassSanity:  2,
	ClassMorning: 3,
	ClassFail:    4,
	ClassCompany: 5,
	ClassTrust:   6,
	ClassPoke:    7,
}

// Rank returns the fixed total-order position of c (lower = stronger).
// Unknown classes sort last.
func Rank(c Class) int {
	if r, ok := classRank[c]; ok {
		return r
	}
	return len(classRank)
}

// SeverityOf returns the severity a class carries in the lexicon. Unknown
// classes are ordinary.
func SeverityOf(c Class) Severity {
	switch c {
	case ClassComfort:
		return SeverityUrgent
	case ClassDontCry:
		return SeverityHigh
	default:
		return SeverityOrdinary
	}
}

// Match is one resolved tag class with its accumulated score.
type Match struct {
	Class    Class
	Score    float64
	Severity Severity
}

// node is one lexicon entry: trigger surface forms plus base score and severity.
type node struct {
	class     Class
	keywords  []string
	patterns  []*regexp.Regexp
	emojis    []string
	baseScore float64
	severity  Severity
}

// modifierGroup scales a keyword hit when one of its words appears in the
// window immediately before the hit. Negative weight flips the score so the
// candidate drops out ("不难过" must not read as distress).
type modifierGroup struct {
	words  []string
	weight float64
}

const (
	// modifierWindow is how many runes before a hit are searched for modifiers.
	modifierWindow = 5
	// regexBonus is added because regex hits are more specific than plain keywords.
	regexBonus = 2.0
	// emojiScore per emoji occurrence.
	emojiScore = 1.5
	// minScore below which a best match is treated as a misfire.
	minScore = 3.0
)

// Analyzer scores text against the lexicon. Safe for concurrent use:
// all fields are immutable after construction.
type Analyzer struct {
	nodes     []node
	modifiers []modifierGroup
}

// NewAnalyzer builds an analyzer with the default lexicon.
func NewAnalyzer() *Analyzer {
	return &Analyzer{nodes: defaultNodes(), modifiers: defaultModifiers()}
}

// Resolve scores text and returns matched classes ranked strongest first:
// severity, then score, then the fixed class order. Returns nil when nothing
// clears the score threshold.
func (a *Analyzer) Resolve(text string) []Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	runes := []rune(lower)

	boost := punctuationBoost(text)

	var matches []Match
	for _, n := range a.nodes {
		score := a.scoreNode(n, lower, runes, text)
		score *= boost
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{Class: n.class, Score: score, Severity: n.severity})
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Severity != matches[j].Severity {
			return matches[i].Severity > matches[j].Severity
		}
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return Rank(matches[i].Class) < Rank(matches[j].Class)
	})

	if matches[0].Score < minScore {
		return nil
	}
	return matches
}

// scoreNode accumulates keyword, regex and emoji hits for one node.
func (a *Analyzer) scoreNode(n node, lower string, runes []rune, original string) float64 {
	var total float64

	for _, kw := range n.keywords {
		kwRunes := []rune(kw)
		for i := 0; i+len(kwRunes) <= len(runes); i++ {
			if string(runes[i:i+len(kwRunes)]) != kw {
				continue
			}
			total += n.baseScore * a.modifierMultiplier(runes, i)
			i += len(kwRunes) - 1
		}
	}

	for _, re := range n.patterns {
		for _, loc := range re.FindAllStringIndex(lower, -1) {
			start := len([]rune(lower[:loc[0]]))
			total += (n.baseScore + regexBonus) * a.modifierMultiplier(runes, start)
		}
	}

	for _, em := range n.emojis {
		if c := strings.Count(original, em); c > 0 {
			total += emojiScore * float64(c)
		}
	}

	return total
}

// modifierMultiplier inspects the window before rune index start. At most one
// word per modifier group applies, so stacked intensifiers do not explode.
func (a *Analyzer) modifierMultiplier(runes []rune, start int) float64 {
	winStart := start - modifierWindow
	if winStart < 0 {
		winStart = 0
	}
	window := string(runes[winStart:start])

	mult := 1.0
	for _, g := range a.modifiers {
		for _, w := range g.words {
			if strings.Contains(window, w) {
				mult *= g.weight
				break
			}
		}
	}
	return mult
}

// punctuationBoost rewards emphatic punctuation across the whole message.
func punctuationBoost(text string) float64 {
	boost := 1.0
	if strings.ContainsAny(text, "!！") {
		boost += 0.2
	}
	if strings.Contains(text, "...") || strings.Contains(text, "…") {
		boost += 0.1
	}
	if strings.ContainsAny(text, "?？") {
		boost += 0.1
	}
	return boost
}
