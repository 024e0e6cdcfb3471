// Package affinity scores how strongly each project (and each recurring
// unknown noun) is tied to the current conversation.
//
// Established projects are reinforced when their name appears in a turn and
// decay otherwise. Candidate topics only ever rise: a noun has to recur across
// turns to reach the creation threshold, at which point it fires once as a
// new-project suggestion and its own score drops back to zero. Scores are
// never negative and never exceed Params.MaxScore.
package affinity

import (
	"strings"
	"sync"

	"github.com/jschreck/saga/internal/essence"
	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/textclean"
)

// CandidatePrefix separates candidate topics from project names.
const CandidatePrefix = "candidate:"

// NoTopic is returned by MostActiveEstablished when no project has a
// positive score.
const NoTopic = "none"

// Params holds the tracker's tuning constants.
type Params struct {
	Reinforce          float64
	Decay              float64
	Activation         float64
	CandidateIncrement float64
	CreationThreshold  float64
	// CandidateMinLen is an exclusive bound on candidate word length.
	CandidateMinLen int
	MaxScore        float64
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		Reinforce:          0.4,
		Decay:              0.05,
		Activation:         0.7,
		CandidateIncrement: 0.45,
		CreationThreshold:  0.8,
		CandidateMinLen:    3,
		MaxScore:           1.0,
	}
}

// Detection is the outcome of observing one turn.
type Detection struct {
	// Active lists projects at or above the activation threshold, in the
	// order the projects were supplied.
	Active []string
	// Suggestions lists candidate words that fired this turn, in noun order.
	Suggestions []string
}

// Suggested returns the first fired candidate, or "".
func (d Detection) Suggested() string {
	if len(d.Suggestions) == 0 {
		return ""
	}
	return d.Suggestions[0]
}

// Detector is what the chat session depends on. Tracker is the lexical
// implementation; an embedding-similarity scorer can satisfy the same
// contract.
type Detector interface {
	Detect(cleanText string, nouns []string, projects []string) Detection
	MostActiveEstablished() string
	ResetAll()
	Snapshot() []models.TopicScore
}

// Tracker keeps one score per topic key.
type Tracker struct {
	mu     sync.Mutex
	params Params
	scores map[string]float64
	order  []string
}

// NewTracker creates an empty tracker.
func NewTracker(p Params) *Tracker {
	if p.MaxScore <= 0 {
		p.MaxScore = 1.0
	}
	return &Tracker{
		params: p,
		scores: make(map[string]float64),
	}
}

// ObserveEstablished reinforces project when mentioned, decays it otherwise.
func (t *Tracker) ObserveEstablished(project string, mentioned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observeEstablished(project, mentioned)
}

func (t *Tracker) observeEstablished(project string, mentioned bool) {
	cur := t.get(project)
	if mentioned {
		cur += t.params.Reinforce
	} else {
		cur -= t.params.Decay
	}
	t.set(project, cur)
}

// IsActive reports whether project has reached the activation threshold.
func (t *Tracker) IsActive(project string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scores[project] >= t.params.Activation
}

// ObserveCandidate raises the score of an unknown noun. It returns true when
// the score reaches the creation threshold; the candidate is then zeroed.
// Words not longer than CandidateMinLen are ignored.
func (t *Tracker) ObserveCandidate(word string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observeCandidate(word)
}

func (t *Tracker) observeCandidate(word string) bool {
	if len([]rune(word)) <= t.params.CandidateMinLen {
		return false
	}
	key := CandidatePrefix + word
	score := t.get(key) + t.params.CandidateIncrement
	if score >= t.params.CreationThreshold {
		t.set(key, 0)
		return true
	}
	t.set(key, score)
	return false
}

// MostActiveEstablished returns the highest scoring project. Ties go to the
// project seen first. NoTopic is returned when every project is at zero.
func (t *Tracker) MostActiveEstablished() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	best, bestScore := NoTopic, 0.0
	for _, key := range t.order {
		if strings.HasPrefix(key, CandidatePrefix) {
			continue
		}
		if s := t.scores[key]; s > bestScore {
			best, bestScore = key, s
		}
	}
	return best
}

// ResetAll zeroes every score. Keys are kept so first-seen order survives.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.scores {
		t.scores[k] = 0
	}
}

// Score returns the score for a raw key (project name or prefixed candidate).
func (t *Tracker) Score(key string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scores[key]
}

// Snapshot returns every score in first-seen order.
func (t *Tracker) Snapshot() []models.TopicScore {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.TopicScore, 0, len(t.order))
	for _, key := range t.order {
		ts := models.TopicScore{Topic: key, Score: t.scores[key]}
		if strings.HasPrefix(key, CandidatePrefix) {
			ts.Topic = strings.TrimPrefix(key, CandidatePrefix)
			ts.Candidate = true
		}
		out = append(out, ts)
	}
	return out
}

// Detect observes one turn. cleanText must already be lowercased and
// punctuation-free (see textclean.Clean); project names are cleaned the same
// way before matching. Each project is observed exactly
// once; each distinct noun that is not itself a project is observed once as
// a candidate.
func (t *Tracker) Detect(cleanText string, nouns []string, projects []string) Detection {
	t.mu.Lock()
	defer t.mu.Unlock()

	var d Detection
	known := make(map[string]bool, len(projects))
	for _, p := range projects {
		phrase := textclean.Clean(p)
		known[p] = true
		known[phrase] = true
		t.observeEstablished(p, phrase != "" && strings.Contains(cleanText, phrase))
		if t.scores[p] >= t.params.Activation {
			d.Active = append(d.Active, p)
		}
	}

	for _, noun := range essence.Unique(nouns) {
		if known[noun] {
			continue
		}
		if t.observeCandidate(noun) {
			d.Suggestions = append(d.Suggestions, noun)
		}
	}
	return d
}

func (t *Tracker) get(key string) float64 {
	return t.scores[key]
}

func (t *Tracker) set(key string, v float64) {
	if _, ok := t.scores[key]; !ok {
		t.order = append(t.order, key)
	}
	if v < 0 {
		v = 0
	}
	if v > t.params.MaxScore {
		v = t.params.MaxScore
	}
	t.scores[key] = v
}

var _ Detector = (*Tracker)(nil)
