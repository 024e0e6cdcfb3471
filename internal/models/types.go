package models

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) IsValid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Message is a single chat message. Conversation turns and the assembled
// model input share this shape.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Intent flags a side effect the client may want to act on after a turn.
type Intent string

const (
	IntentNone                 Intent = "NONE"
	IntentMemorySave           Intent = "MEMORY_SAVE"
	IntentNewProjectSuggestion Intent = "NEW_PROJECT_SUGGESTION"
)

// ChatRequest is the payload for POST /api/chat. The CLI sends its whole
// local transcript; only the last user message is treated as the new turn.
type ChatRequest struct {
	Messages       []Message `json:"messages"`
	Model          string    `json:"model,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
}

// LastUserMessage returns the content of the most recent user message.
func (r *ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser || r.Messages[i].Role == "" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// ChatResponse is returned from POST /api/chat.
type ChatResponse struct {
	Model            string   `json:"model"`
	Message          Message  `json:"message"`
	Done             bool     `json:"done"`
	Intent           Intent   `json:"intent"`
	PendingMemory    string   `json:"pendingMemory,omitempty"`
	SuggestedProject string   `json:"suggestedProject,omitempty"`
	ActiveProjects   []string `json:"activeProjects"`
}

// MemoryEntry is one line of the long-term consensus log.
type MemoryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Instruction string    `json:"instruction"`
}

// ProjectNote is one line of a project log. Older logs wrote the text under
// "content"; both are accepted on read.
type ProjectNote struct {
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	Content   string    `json:"content,omitempty"`
}

// Text returns the note body regardless of which field carried it.
func (n ProjectNote) Text() string {
	if n.Note != "" {
		return n.Note
	}
	return n.Content
}

// Archive is the immutable record of a closed session.
type Archive struct {
	Label     string    `json:"label"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Turns     []Message `json:"turns"`
}

// ArchiveInfo describes an archive file without loading its turns.
type ArchiveInfo struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionState is the lifecycle state of a conversation session.
type SessionState string

const (
	SessionEmpty  SessionState = "EMPTY"
	SessionActive SessionState = "ACTIVE"
)

// TopicScore is a single affinity score, in first-seen order.
type TopicScore struct {
	Topic     string  `json:"topic"`
	Score     float64 `json:"score"`
	Candidate bool    `json:"candidate"`
}

// SessionSnapshot is returned from GET /api/session.
type SessionSnapshot struct {
	ConversationID string       `json:"conversationId"`
	State          SessionState `json:"state"`
	History        []Message    `json:"history"`
	Scores         []TopicScore `json:"scores"`
	MostActive     string       `json:"mostActive"`
}

// SaveConsensusRequest is the payload for POST /api/consensus.
type SaveConsensusRequest struct {
	Instruction string `json:"instruction"`
}

// CreateProjectRequest is the payload for POST /api/projects.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// CreateProjectResponse is returned from POST /api/projects.
type CreateProjectResponse struct {
	Name string `json:"name"`
}

// AddNoteRequest is the payload for POST /api/projects/{name}/notes.
type AddNoteRequest struct {
	Note string `json:"note"`
}

// CloseSessionRequest is the payload for POST /api/session/close.
type CloseSessionRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
}

// CloseSessionResponse is returned from POST /api/session/close.
type CloseSessionResponse struct {
	Archived bool         `json:"archived"`
	Archive  *ArchiveInfo `json:"archive,omitempty"`
}

// LoadArchiveResponse is returned from POST /api/archives/{id}/load.
type LoadArchiveResponse struct {
	ID    string    `json:"id"`
	Turns []Message `json:"turns"`
}

// UploadResponse is returned from POST /api/upload.
type UploadResponse struct {
	Filename string `json:"filename"`
	Queued   bool   `json:"queued"`
}

// HealthResponse is returned from GET /api/status.
type HealthResponse struct {
	Status        string       `json:"status"`
	Provider      ServiceCheck `json:"provider"`
	Qdrant        ServiceCheck `json:"qdrant"`
	DB            ServiceCheck `json:"db"`
	ChunkCount    int          `json:"chunkCount"`
	Conversations int          `json:"conversations"`
	UptimeSeconds int64        `json:"uptimeSeconds"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
