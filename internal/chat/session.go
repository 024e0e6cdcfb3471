package chat

import (
	"sync"

	"github.com/jschreck/saga/internal/affinity"
	"github.com/jschreck/saga/internal/models"
)

// Session is one conversation: its transcript and its own affinity state.
// A session goes EMPTY -> ACTIVE on the first turn and back to EMPTY when it
// is closed or cleared.
type Session struct {
	ID string

	// turn serializes whole chat turns; mu guards the fields below.
	turn sync.Mutex
	mu   sync.Mutex

	history    []models.Message
	detector   affinity.Detector
	maxHistory int
}

func newSession(id string, detector affinity.Detector, maxHistory int) *Session {
	return &Session{ID: id, detector: detector, maxHistory: maxHistory}
}

// Submit appends a turn. When maxHistory is positive the oldest turns are
// dropped to stay within it.
func (s *Session) Submit(role models.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, models.Message{Role: role, Content: content})
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = append([]models.Message(nil), s.history[len(s.history)-s.maxHistory:]...)
	}
}

// History returns a copy of the transcript.
func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.history...)
}

func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return models.SessionEmpty
	}
	return models.SessionActive
}

// Detector returns the session's affinity detector.
func (s *Session) Detector() affinity.Detector {
	return s.detector
}

// replace swaps the transcript for turns. Affinity scores are left alone.
func (s *Session) replace(turns []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]models.Message(nil), turns...)
}

// reset clears the transcript and zeroes every affinity score.
func (s *Session) reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
	s.detector.ResetAll()
}
