// Package prompt merges Saga's memory tiers into the message list sent to the
// model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/textclean"
)

const (
	longTermHeader   = "### Long-term memories"
	noMemories       = "No long-term memories yet."
	projectHeaderFmt = "### Saga notes: %s"
	loreHeader       = "### Lore fragments"
	suggestDirective = "The user keeps returning to %q. At the end of your reply, briefly offer to start a new project for it."
	terseDirective   = "The user's message is long. Answer in a terse, technical register: short sentences, no filler, lists where they help."
	transcriptPrompt = "Saga:"
)

// Params bounds how much of each tier reaches the model.
type Params struct {
	ConsensusWindow    int
	HistoryWindow      int
	NoteWindow         int
	NoteCharBudget     int
	LongInputThreshold int
}

// DefaultParams returns the stock windows.
func DefaultParams() Params {
	return Params{
		ConsensusWindow:    15,
		HistoryWindow:      10,
		NoteWindow:         5,
		NoteCharBudget:     1000,
		LongInputThreshold: 2000,
	}
}

// ProjectNotes are the recent notes of one active project.
type ProjectNotes struct {
	Project string
	Notes   []models.ProjectNote
}

// Input is everything one turn contributes to the prompt.
type Input struct {
	Identity         string
	LongTerm         []models.MemoryEntry
	Projects         []ProjectNotes
	Lore             []string
	History          []models.Message
	SuggestedProject string
	UserTurn         string
}

// Assembler is stateless; Params are fixed at construction.
type Assembler struct {
	params Params
}

func NewAssembler(p Params) *Assembler {
	return &Assembler{params: p}
}

// Params returns the windows the assembler was built with.
func (a *Assembler) Params() Params { return a.params }

// Assemble builds the model input. The order is fixed: identity, long-term
// memories, one block per active project, lore, recent history, directives,
// and finally the current user turn.
func (a *Assembler) Assemble(in Input) []models.Message {
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		identity = DefaultIdentity
	}

	msgs := []models.Message{
		system(identity),
		system(a.longTerm(in.LongTerm)),
	}

	for _, p := range in.Projects {
		msgs = append(msgs, system(a.projectBlock(p)))
	}

	if len(in.Lore) > 0 {
		var b strings.Builder
		b.WriteString(loreHeader)
		for _, frag := range in.Lore {
			b.WriteString("\n---\n")
			b.WriteString(strings.TrimSpace(frag))
		}
		msgs = append(msgs, system(b.String()))
	}

	msgs = append(msgs, lastN(in.History, a.params.HistoryWindow)...)

	if in.SuggestedProject != "" {
		msgs = append(msgs, system(fmt.Sprintf(suggestDirective, in.SuggestedProject)))
	}
	if a.params.LongInputThreshold > 0 && len([]rune(in.UserTurn)) > a.params.LongInputThreshold {
		msgs = append(msgs, system(terseDirective))
	}

	return append(msgs, models.Message{Role: models.RoleUser, Content: in.UserTurn})
}

func (a *Assembler) longTerm(entries []models.MemoryEntry) string {
	entries = lastN(entries, a.params.ConsensusWindow)
	if len(entries) == 0 {
		return longTermHeader + "\n" + noMemories
	}
	var b strings.Builder
	b.WriteString(longTermHeader)
	for _, e := range entries {
		b.WriteString("\n- ")
		b.WriteString(e.Instruction)
	}
	return b.String()
}

func (a *Assembler) projectBlock(p ProjectNotes) string {
	var b strings.Builder
	fmt.Fprintf(&b, projectHeaderFmt, p.Project)
	notes := lastN(p.Notes, a.params.NoteWindow)
	if len(notes) == 0 {
		b.WriteString("\n(no notes yet)")
	}
	for _, n := range notes {
		b.WriteString("\n- ")
		b.WriteString(textclean.Truncate(n.Text(), a.params.NoteCharBudget))
	}
	return b.String()
}

// Render flattens messages into a single "Role: content" transcript ending
// with an open "Saga:" line, for backends that take one prompt string.
func Render(msgs []models.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(speaker(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	b.WriteString(transcriptPrompt)
	return b.String()
}

func speaker(r models.Role) string {
	switch r {
	case models.RoleSystem:
		return "System"
	case models.RoleAssistant:
		return "Saga"
	default:
		return "User"
	}
}

func system(content string) models.Message {
	return models.Message{Role: models.RoleSystem, Content: content}
}

func lastN[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
