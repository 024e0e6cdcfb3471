package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mcppkg "github.com/mark3labs/mcp-go/mcp"

	"github.com/jschreck/saga/internal/models"
)

type fakeBackend struct {
	chatResp  *models.ChatResponse
	saved     []string
	projects  []string
	notes     map[string][]string
	archives  []models.ArchiveInfo
	closeResp *models.CloseSessionResponse
	err       error
}

func (f *fakeBackend) Chat(_ context.Context, text string) (*models.ChatResponse, error) {
	return f.chatResp, f.err
}

func (f *fakeBackend) SaveConsensus(_ context.Context, instruction string) (*models.MemoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, instruction)
	return &models.MemoryEntry{Timestamp: time.Now(), Instruction: instruction}, nil
}

func (f *fakeBackend) Consensus(context.Context, int) ([]models.MemoryEntry, error) {
	var out []models.MemoryEntry
	for _, s := range f.saved {
		out = append(out, models.MemoryEntry{Instruction: s})
	}
	return out, f.err
}

func (f *fakeBackend) Projects(context.Context) ([]string, error) { return f.projects, f.err }

func (f *fakeBackend) CreateProject(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.projects = append(f.projects, name)
	return name, nil
}

func (f *fakeBackend) AddNote(_ context.Context, project, note string) (*models.ProjectNote, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.notes == nil {
		f.notes = map[string][]string{}
	}
	f.notes[project] = append(f.notes[project], note)
	return &models.ProjectNote{Note: note}, nil
}

func (f *fakeBackend) CloseSession(context.Context) (*models.CloseSessionResponse, error) {
	return f.closeResp, f.err
}

func (f *fakeBackend) Archives(context.Context) ([]models.ArchiveInfo, error) {
	return f.archives, f.err
}

func (f *fakeBackend) Status(context.Context) (*models.HealthResponse, error) {
	return &models.HealthResponse{Status: "ok"}, f.err
}

func call(t *testing.T, h toolHandler, args map[string]any) (string, bool) {
	t.Helper()
	res, err := h(context.Background(), mcppkg.CallToolRequest{Params: mcppkg.CallToolParams{Arguments: args}})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected non-empty tool result")
	}
	text, ok := mcppkg.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("expected text content")
	}
	return text.Text, res.IsError
}

func TestNewServer(t *testing.T) {
	if NewServer(&fakeBackend{}, "test") == nil {
		t.Fatal("expected MCP server instance")
	}
}

func TestChatReportsIntent(t *testing.T) {
	b := &fakeBackend{chatResp: &models.ChatResponse{
		Message:        models.Message{Role: models.RoleAssistant, Content: "Aye."},
		Intent:         models.IntentMemorySave,
		PendingMemory:  "call me Jarl",
		ActiveProjects: []string{"black_forest"},
	}}

	text, isErr := call(t, handleChat(b), map[string]any{"message": "remember to call me Jarl"})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	for _, want := range []string{"Aye.", "MEMORY_SAVE", `"call me Jarl"`, "black_forest"} {
		if !strings.Contains(text, want) {
			t.Errorf("output %q missing %q", text, want)
		}
	}
}

func TestChatRequiresMessage(t *testing.T) {
	_, isErr := call(t, handleChat(&fakeBackend{}), map[string]any{"message": "  "})
	if !isErr {
		t.Fatal("expected tool error for blank message")
	}
}

func TestRememberAndList(t *testing.T) {
	b := &fakeBackend{}
	if _, isErr := call(t, handleRemember(b), map[string]any{"instruction": "speak plainly"}); isErr {
		t.Fatal("unexpected error")
	}
	text, _ := call(t, handleMemories(b), map[string]any{})
	if !strings.Contains(text, "speak plainly") {
		t.Fatalf("memories output %q", text)
	}
}

func TestProjectTools(t *testing.T) {
	b := &fakeBackend{}
	call(t, handleCreateProject(b), map[string]any{"name": "svilland"})
	if _, isErr := call(t, handleAddNote(b), map[string]any{"project": "svilland", "note": "north"}); isErr {
		t.Fatal("unexpected error")
	}
	if got := b.notes["svilland"]; len(got) != 1 || got[0] != "north" {
		t.Fatalf("notes = %v", got)
	}
	if _, isErr := call(t, handleAddNote(b), map[string]any{"project": "svilland"}); !isErr {
		t.Fatal("expected error without note")
	}
	text, _ := call(t, handleListProjects(b), nil)
	if text != "svilland" {
		t.Fatalf("projects = %q", text)
	}
}

func TestCloseSession(t *testing.T) {
	b := &fakeBackend{closeResp: &models.CloseSessionResponse{}}
	text, _ := call(t, handleCloseSession(b), nil)
	if !strings.Contains(text, "Nothing to archive") {
		t.Fatalf("got %q", text)
	}

	b.closeResp = &models.CloseSessionResponse{Archived: true, Archive: &models.ArchiveInfo{ID: "none--saga--20260101-120000"}}
	text, _ = call(t, handleCloseSession(b), nil)
	if !strings.Contains(text, "none--saga--20260101-120000") {
		t.Fatalf("got %q", text)
	}
}

func TestBackendErrorsBecomeToolErrors(t *testing.T) {
	b := &fakeBackend{err: errors.New("connection refused")}
	text, isErr := call(t, handleListArchives(b), nil)
	if !isErr || !strings.Contains(text, "connection refused") {
		t.Fatalf("got %q isErr=%v", text, isErr)
	}
}

func TestCloseSessionToolIsDestructive(t *testing.T) {
	tool := closeSessionTool()
	hint := tool.Annotations.DestructiveHint
	if hint == nil || !*hint {
		t.Fatalf("saga_close_session must be marked destructive, got %v", hint)
	}
}
