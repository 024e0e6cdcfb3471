package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/jschreck/saga/internal/affinity"
)

// DefaultConversation is used when a caller does not name a conversation.
const DefaultConversation = "default"

// Registry owns every live session, keyed by conversation id.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	newDetector func() affinity.Detector
	maxHistory  int
}

// NewRegistry creates an empty registry. newDetector is called once per new
// conversation; nil means a lexical tracker with default params.
func NewRegistry(newDetector func() affinity.Detector, maxHistory int) *Registry {
	if newDetector == nil {
		newDetector = func() affinity.Detector {
			return affinity.NewTracker(affinity.DefaultParams())
		}
	}
	return &Registry{
		sessions:    make(map[string]*Session),
		newDetector: newDetector,
		maxHistory:  maxHistory,
	}
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(id string) *Session {
	id = NormalizeConversationID(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = newSession(id, r.newDetector(), r.maxHistory)
		r.sessions[id] = s
	}
	return s
}

// Len returns the number of conversations seen so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns every conversation id, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NormalizeConversationID maps blank ids to DefaultConversation.
func NormalizeConversationID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultConversation
	}
	return id
}
