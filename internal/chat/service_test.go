package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jschreck/saga/internal/essence"
	"github.com/jschreck/saga/internal/llm"
	"github.com/jschreck/saga/internal/memstore"
	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/prompt"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls [][]models.Message
	reply string
	title string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []models.Message, _ llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(msgs) > 0 && msgs[0].Content == titleInstruction {
		return f.title, nil
	}
	f.calls = append(f.calls, msgs)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) last() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// failTagger forces the rule-based noun fallback so tests do not depend on
// the POS model.
type failTagger struct{}

func (failTagger) Tag(string) ([]essence.Token, error) { return nil, errors.New("no model") }

type fakeLore struct{ frags []string }

func (f fakeLore) Search(context.Context, string, int) ([]string, error) { return f.frags, nil }

func newTestService(t *testing.T, fc *fakeCompleter) (*Service, *memstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := memstore.Open(t.TempDir(), logger)
	require.NoError(t, err)
	svc := NewService(Deps{
		Store:     store,
		Completer: fc,
		Extractor: essence.NewExtractor(failTagger{}, logger),
		Logger:    logger,
	}, Options{Model: "llama3:latest"})
	return svc, store
}

func userTurn(text string) models.ChatRequest {
	return models.ChatRequest{Messages: []models.Message{{Role: models.RoleUser, Content: text}}}
}

func TestChatRecordsBothTurns(t *testing.T) {
	fc := &fakeCompleter{reply: "Hail."}
	svc, _ := newTestService(t, fc)

	resp, err := svc.Chat(context.Background(), "", userTurn("hello there"))
	require.NoError(t, err)
	assert.Equal(t, "Hail.", resp.Message.Content)
	assert.Equal(t, models.IntentNone, resp.Intent)
	assert.Equal(t, "llama3:latest", resp.Model)
	assert.True(t, resp.Done)
	assert.NotNil(t, resp.ActiveProjects)

	snap := svc.Snapshot(DefaultConversation)
	assert.Equal(t, models.SessionActive, snap.State)
	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Content: "hello there"},
		{Role: models.RoleAssistant, Content: "Hail."},
	}, snap.History)

	msgs := fc.last()
	assert.Equal(t, prompt.DefaultIdentity, msgs[0].Content)
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "hello there"}, msgs[len(msgs)-1])
}

func TestChatOnlyLastUserMessageIsNew(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	svc, _ := newTestService(t, fc)

	_, err := svc.Chat(context.Background(), "c1", models.ChatRequest{Messages: []models.Message{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "reply"},
		{Role: models.RoleUser, Content: "second"},
	}})
	require.NoError(t, err)
	assert.Len(t, svc.Snapshot("c1").History, 2)
	assert.Equal(t, "second", svc.Snapshot("c1").History[0].Content)
}

func TestChatEmptyMessage(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{reply: "x"})
	for _, text := range []string{"", "   ", "<private>secret</private>"} {
		_, err := svc.Chat(context.Background(), "", userTurn(text))
		assert.ErrorIs(t, err, ErrEmptyMessage, text)
	}
	assert.Equal(t, models.SessionEmpty, svc.Snapshot("").State)
}

func TestChatSoftErrorStillRecorded(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("connection refused")}
	svc, _ := newTestService(t, fc)

	resp, err := svc.Chat(context.Background(), "", userTurn("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Error connecting to the hearth: connection refused", resp.Message.Content)
	assert.True(t, llm.IsSoftError(resp.Message.Content))

	history := svc.Snapshot("").History
	require.Len(t, history, 2)
	assert.Equal(t, resp.Message.Content, history[1].Content)
}

func TestChatMemoryIntent(t *testing.T) {
	svc, store := newTestService(t, &fakeCompleter{reply: "As you wish, Jarl."})

	resp, err := svc.Chat(context.Background(), "", userTurn("Saga, from now on always call me Jarl"))
	require.NoError(t, err)
	assert.Equal(t, models.IntentMemorySave, resp.Intent)
	assert.Equal(t, "from now on always call me Jarl", resp.PendingMemory)

	// Nothing is written until the client confirms.
	entries, err := store.RecentConsensus(15)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.AppendConsensus(resp.PendingMemory)
	require.NoError(t, err)
	entries, err = store.RecentConsensus(15)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "from now on always call me Jarl", entries[0].Instruction)
}

func TestChatSuggestsNewProject(t *testing.T) {
	fc := &fakeCompleter{reply: "The islands are cold."}
	svc, _ := newTestService(t, fc)
	ctx := context.Background()

	resp, err := svc.Chat(ctx, "", userTurn("tell me about svalbard"))
	require.NoError(t, err)
	assert.Equal(t, models.IntentNone, resp.Intent)

	resp, err = svc.Chat(ctx, "", userTurn("more about svalbard"))
	require.NoError(t, err)
	assert.Equal(t, models.IntentNewProjectSuggestion, resp.Intent)
	assert.Equal(t, "svalbard", resp.SuggestedProject)

	var directive bool
	for _, m := range fc.last() {
		if m.Role == models.RoleSystem && strings.Contains(m.Content, `"svalbard"`) {
			directive = true
		}
	}
	assert.True(t, directive, "suggestion directive missing from prompt")

	resp, err = svc.Chat(ctx, "", userTurn("svalbard once more"))
	require.NoError(t, err)
	assert.Equal(t, models.IntentNone, resp.Intent, "candidate resets after firing")
}

func TestChatMemoryIntentWinsOverSuggestion(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	_, err := svc.Chat(ctx, "", userTurn("svalbard"))
	require.NoError(t, err)
	resp, err := svc.Chat(ctx, "", userTurn("remember that svalbard is cold"))
	require.NoError(t, err)
	assert.Equal(t, models.IntentMemorySave, resp.Intent)
	assert.Equal(t, "svalbard", resp.SuggestedProject)
}

func TestChatInjectsActiveProjectNotes(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	svc, store := newTestService(t, fc)
	ctx := context.Background()

	_, err := store.CreateProject("Black Forest")
	require.NoError(t, err)
	_, err = store.AppendNote("black_forest", "the ravens nest by the mill")
	require.NoError(t, err)
	_, err = store.AppendConsensus("call me Jarl")
	require.NoError(t, err)

	resp, err := svc.Chat(ctx, "", userTurn("The Black Forest is dark."))
	require.NoError(t, err)
	assert.Empty(t, resp.ActiveProjects)

	resp, err = svc.Chat(ctx, "", userTurn("Back to the black-forest again."))
	require.NoError(t, err)
	assert.Equal(t, []string{"black_forest"}, resp.ActiveProjects)

	msgs := fc.last()
	assert.Equal(t, "### Long-term memories\n- call me Jarl", msgs[1].Content)
	assert.Equal(t, "### Saga notes: black_forest\n- the ravens nest by the mill", msgs[2].Content)

	snap := svc.Snapshot("")
	assert.Equal(t, "black_forest", snap.MostActive)
}

func TestChatLore(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := memstore.Open(t.TempDir(), logger)
	require.NoError(t, err)
	svc := NewService(Deps{
		Store:     store,
		Completer: fc,
		Extractor: essence.NewExtractor(failTagger{}, logger),
		Lore:      fakeLore{frags: []string{"Yggdrasil holds nine worlds."}},
		Logger:    logger,
	}, Options{LoreTopK: 3})

	_, err = svc.Chat(context.Background(), "", userTurn("what holds the worlds"))
	require.NoError(t, err)
	assert.Equal(t, "### Lore fragments\n---\nYggdrasil holds nine worlds.", fc.last()[2].Content)
}

func TestCloseArchivesAndResets(t *testing.T) {
	fc := &fakeCompleter{reply: "ok", title: "The Black Forest Saga!\nextra"}
	svc, store := newTestService(t, fc)
	ctx := context.Background()

	_, err := store.CreateProject("black_forest")
	require.NoError(t, err)
	for _, text := range []string{"the black forest", "black forest again"} {
		_, err := svc.Chat(ctx, "", userTurn(text))
		require.NoError(t, err)
	}
	history := svc.Snapshot("").History
	require.Len(t, history, 4)

	info, err := svc.Close(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "black_forest", info.Label)
	assert.Equal(t, "the_black_forest_saga", info.Title)

	snap := svc.Snapshot("")
	assert.Equal(t, models.SessionEmpty, snap.State)
	assert.Equal(t, "none", snap.MostActive)
	for _, s := range snap.Scores {
		assert.Zero(t, s.Score, s.Topic)
	}

	turns, err := store.LoadArchive(info.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(history, turns); diff != "" {
		t.Errorf("archived turns mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseEmptySession(t *testing.T) {
	svc, store := newTestService(t, &fakeCompleter{})

	for i := 0; i < 2; i++ {
		info, err := svc.Close(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, info, "close #%d", i+1)
		assert.Equal(t, models.SessionEmpty, svc.Snapshot("").State, "close #%d", i+1)
	}

	list, err := store.ListArchives()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadArchiveKeepsScores(t *testing.T) {
	fc := &fakeCompleter{reply: "ok", title: "old times"}
	svc, store := newTestService(t, fc)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "old", userTurn("svalbard"))
	require.NoError(t, err)
	info, err := svc.Close(ctx, "old")
	require.NoError(t, err)

	_, err = store.CreateProject("svilland")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, "new", userTurn("svilland"))
	require.NoError(t, err)
	before := svc.Snapshot("new").Scores

	turns, err := svc.LoadArchive("new", info.ID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	snap := svc.Snapshot("new")
	assert.Equal(t, turns, snap.History)
	assert.Equal(t, before, snap.Scores)

	_, err = svc.LoadArchive("new", "../escape")
	assert.ErrorIs(t, err, memstore.ErrInvalidArchiveID)
}

func TestConversationsAreIsolated(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	_, err := svc.Chat(ctx, "a", userTurn("svalbard"))
	require.NoError(t, err)
	resp, err := svc.Chat(ctx, "b", userTurn("svalbard"))
	require.NoError(t, err)
	assert.Equal(t, models.IntentNone, resp.Intent, "candidate scores are per conversation")

	assert.Len(t, svc.Snapshot("a").History, 2)
	assert.Len(t, svc.Snapshot("b").History, 2)
	assert.Equal(t, 2, svc.Registry().Len())
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Chat(ctx, "", userTurn(fmt.Sprintf("turn %d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history := svc.Snapshot("").History
	require.Len(t, history, 2*n)
	for i, m := range history {
		want := models.RoleUser
		if i%2 == 1 {
			want = models.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "turn %d", i)
	}
}

func TestSessionMaxHistory(t *testing.T) {
	s := newSession("x", nil, 3)
	for i := 0; i < 5; i++ {
		s.Submit(models.RoleUser, fmt.Sprint(i))
	}
	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, "2", h[0].Content)
}

func TestSanitizeTitle(t *testing.T) {
	tests := map[string]string{
		"The Black Forest Saga!":  "the_black_forest_saga",
		"  \"Ravens & Wolves\"  ": "ravens_wolves",
		"":                        "untitled",
		"!!!":                     "untitled",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeTitle(in), in)
	}

	long := SanitizeTitle(strings.Repeat("long ", 20))
	assert.Equal(t, "long_long_long_long_long_long_long_long", long)
	assert.LessOrEqual(t, len(long), 40)
}

func TestIsMemoryInstruction(t *testing.T) {
	assert.True(t, IsMemoryInstruction("From now on, speak Old Norse"))
	assert.True(t, IsMemoryInstruction("please remember that I like mead"))
	assert.True(t, IsMemoryInstruction("Don’t forget the runes"))
	assert.False(t, IsMemoryInstruction("I remembered the runes"))
	assert.False(t, IsMemoryInstruction("<private>from now on</private> hello"))
}
