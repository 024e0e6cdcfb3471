package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jschreck/saga/internal/models"
)

func turns(n int) []models.Message {
	out := make([]models.Message, n)
	for i := range out {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out[i] = models.Message{Role: role, Content: string(rune('a' + i))}
	}
	return out
}

func TestAssembleEmptyInputs(t *testing.T) {
	a := NewAssembler(DefaultParams())
	msgs := a.Assemble(Input{UserTurn: "hello"})

	require.Len(t, msgs, 3)
	assert.Equal(t, models.Message{Role: models.RoleSystem, Content: DefaultIdentity}, msgs[0])
	assert.Equal(t, "### Long-term memories\nNo long-term memories yet.", msgs[1].Content)
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "hello"}, msgs[2])
}

func TestAssembleOrder(t *testing.T) {
	a := NewAssembler(DefaultParams())
	msgs := a.Assemble(Input{
		Identity: "You are Saga.",
		LongTerm: []models.MemoryEntry{{Instruction: "call me Jarl"}},
		Projects: []ProjectNotes{
			{Project: "black_forest", Notes: []models.ProjectNote{{Note: "ravens"}}},
			{Project: "svilland", Notes: []models.ProjectNote{{Content: "legacy"}}},
		},
		Lore:             []string{"the well of urd"},
		History:          turns(2),
		SuggestedProject: "svalbard",
		UserTurn:         "go on",
	})

	require.Len(t, msgs, 10)
	assert.Equal(t, "You are Saga.", msgs[0].Content)
	assert.Equal(t, "### Long-term memories\n- call me Jarl", msgs[1].Content)
	assert.Equal(t, "### Saga notes: black_forest\n- ravens", msgs[2].Content)
	assert.Equal(t, "### Saga notes: svilland\n- legacy", msgs[3].Content)
	assert.True(t, strings.HasPrefix(msgs[4].Content, "### Lore fragments"))
	assert.Equal(t, models.RoleUser, msgs[5].Role)
	assert.Equal(t, models.RoleAssistant, msgs[6].Role)
	assert.Contains(t, msgs[7].Content, `"svalbard"`)
	assert.Equal(t, models.RoleSystem, msgs[8].Role)
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "go on"}, msgs[9])
}

func TestAssembleWindows(t *testing.T) {
	a := NewAssembler(Params{ConsensusWindow: 2, HistoryWindow: 3, NoteWindow: 1, NoteCharBudget: 5})

	var entries []models.MemoryEntry
	for _, s := range []string{"one", "two", "three"} {
		entries = append(entries, models.MemoryEntry{Instruction: s})
	}
	msgs := a.Assemble(Input{
		LongTerm: entries,
		Projects: []ProjectNotes{{Project: "p", Notes: []models.ProjectNote{{Note: "old"}, {Note: "ÆÆÆÆÆÆÆÆ"}}}},
		History:  turns(6),
		UserTurn: "now",
	})

	assert.Equal(t, "### Long-term memories\n- two\n- three", msgs[1].Content)
	assert.Equal(t, "### Saga notes: p\n- ÆÆÆÆÆ", msgs[2].Content, "notes are truncated by rune")

	history := msgs[3:6]
	assert.Equal(t, []string{"d", "e", "f"}, []string{history[0].Content, history[1].Content, history[2].Content})
	assert.Equal(t, "now", msgs[len(msgs)-1].Content)
}

func TestAssembleLongInputDirective(t *testing.T) {
	a := NewAssembler(DefaultParams())

	short := a.Assemble(Input{UserTurn: strings.Repeat("x", 2000)})
	long := a.Assemble(Input{UserTurn: strings.Repeat("x", 2001)})

	assert.Len(t, short, 3)
	require.Len(t, long, 4)
	assert.Equal(t, terseDirective, long[2].Content)
	assert.Equal(t, models.RoleUser, long[3].Role)
}

func TestIdentityLoaderReadsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.txt")
	l := IdentityLoader{Path: path}

	assert.Equal(t, DefaultIdentity, l.Load(), "missing file")

	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o644))
	assert.Equal(t, DefaultIdentity, l.Load(), "blank file")

	require.NoError(t, os.WriteFile(path, []byte("You are Saga the skald.\n"), 0o644))
	assert.Equal(t, "You are Saga the skald.", l.Load())

	require.NoError(t, os.WriteFile(path, []byte("You are Saga the seer."), 0o644))
	assert.Equal(t, "You are Saga the seer.", l.Load())
}

func TestRender(t *testing.T) {
	out := Render([]models.Message{
		{Role: models.RoleSystem, Content: "be kind"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hail"},
	})
	assert.Equal(t, "System: be kind\nUser: hi\nSaga: hail\nSaga:", out)
}
