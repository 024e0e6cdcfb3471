// Package tui is the terminal chat client for a Saga server.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jschreck/saga/internal/models"
)

// Backend is the server surface the TUI drives.
type Backend interface {
	Chat(ctx context.Context, text string) (*models.ChatResponse, error)
	SaveConsensus(ctx context.Context, instruction string) (*models.MemoryEntry, error)
	CreateProject(ctx context.Context, name string) (string, error)
	AddNote(ctx context.Context, project, note string) (*models.ProjectNote, error)
	Session(ctx context.Context) (*models.SessionSnapshot, error)
	CloseSession(ctx context.Context) (*models.CloseSessionResponse, error)
	Archives(ctx context.Context) ([]models.ArchiveInfo, error)
	LoadArchive(ctx context.Context, id string) (*models.LoadArchiveResponse, error)
	Status(ctx context.Context) (*models.HealthResponse, error)
}

const requestTimeout = 6 * time.Minute

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingMemory
	pendingProject
)

type entryKind int

const (
	entryUser entryKind = iota
	entrySaga
	entrySystem
	entryError
)

type entry struct {
	kind entryKind
	text string
}

// Messages
type sessionLoadedMsg struct {
	snap *models.SessionSnapshot
	err  error
}

type chatReplyMsg struct {
	resp *models.ChatResponse
	err  error
}

type noticeMsg struct {
	text string
	err  error
}

type historyReplacedMsg struct {
	turns  []models.Message
	notice string
	err    error
}

type Model struct {
	backend      Backend
	conversation string

	input    textinput.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	ready    bool
	width    int

	entries []entry
	busy    bool

	pending     pendingKind
	pendingText string
	active      []string
}

// New returns a chat model bound to b.
func New(b Backend, conversation string) Model {
	ti := textinput.New()
	ti.Placeholder = "Speak to Saga... (/help for commands)"
	ti.CharLimit = 8000
	ti.Width = 80
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.Focus()

	return Model{
		backend:      b,
		conversation: conversation,
		input:        ti,
	}
}

// Run starts the program and blocks until the user quits.
func Run(b Backend, conversation string) error {
	_, err := tea.NewProgram(New(b, conversation), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadSession())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := m.input.Value()
			m.input.Reset()
			model, cmd := m.submit(line)
			return model, cmd
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case sessionLoadedMsg:
		if msg.err != nil {
			m.push(entryError, "could not reach the server: "+msg.err.Error())
		} else if msg.snap != nil {
			m.replaceHistory(msg.snap.History)
		}

	case chatReplyMsg:
		m.busy = false
		m.handleReply(msg)

	case noticeMsg:
		m.busy = false
		if msg.err != nil {
			m.push(entryError, msg.err.Error())
		} else if msg.text != "" {
			m.push(entrySystem, msg.text)
		}

	case historyReplacedMsg:
		m.busy = false
		if msg.err != nil {
			m.push(entryError, msg.err.Error())
		} else {
			m.replaceHistory(msg.turns)
			if msg.notice != "" {
				m.push(entrySystem, msg.notice)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Lighting the hearth..."
	}
	status := "conversation: " + m.conversation
	if len(m.active) > 0 {
		status += "  projects: " + strings.Join(m.active, ", ")
	}
	if m.busy {
		status += "  ..."
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		titleStyle.Render("Saga"),
		m.viewport.View(),
		statusStyle.Render(status),
		m.input.View(),
	)
}

func (m *Model) resize(w, h int) {
	m.width = w
	vh := h - 4
	if vh < 3 {
		vh = 3
	}
	if !m.ready {
		m.viewport = viewport.New(w, vh)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = vh
	}
	m.input.Width = w - 4
	wrap := w - 4
	if wrap < 20 {
		wrap = 20
	}
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	m.refresh()
}

// submit handles one line of input. A pending confirmation consumes the line
// before any command parsing.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	line = strings.TrimSpace(line)

	if m.pending != pendingNone {
		kind, text := m.pending, m.pendingText
		m.pending, m.pendingText = pendingNone, ""
		if !isYes(line) {
			m.push(entrySystem, "Let it pass.")
			return m, nil
		}
		m.busy = true
		if kind == pendingMemory {
			return m, m.remember(text)
		}
		return m, m.createProject(text)
	}

	if line == "" {
		return m, nil
	}

	cmd := ParseCommand(line)
	switch cmd.Kind {
	case CmdQuit:
		return m, tea.Quit
	case CmdHelp:
		m.push(entrySystem, helpText)
		return m, nil
	case CmdUnknown:
		m.push(entryError, "unknown command /"+cmd.Name+" (try /help)")
		return m, nil
	case CmdChat:
		m.push(entryUser, cmd.Text)
		m.busy = true
		return m, m.chat(cmd.Text)
	}

	m.busy = true
	switch cmd.Kind {
	case CmdClose:
		return m, m.closeSession()
	case CmdRemember:
		if cmd.Text == "" {
			break
		}
		return m, m.remember(cmd.Text)
	case CmdProject:
		if cmd.Text == "" {
			break
		}
		return m, m.createProject(cmd.Text)
	case CmdNote:
		if len(cmd.Args) < 2 {
			break
		}
		return m, m.addNote(cmd.Args[0], cmd.Text)
	case CmdArchives:
		return m, m.listArchives()
	case CmdLoad:
		if cmd.Text == "" {
			break
		}
		return m, m.loadArchive(cmd.Text)
	case CmdStatus:
		return m, m.status()
	}
	m.busy = false
	m.push(entryError, "missing argument for /"+cmd.Name+" (try /help)")
	return m, nil
}

func (m *Model) handleReply(msg chatReplyMsg) {
	if msg.err != nil {
		m.push(entryError, msg.err.Error())
		return
	}
	r := msg.resp
	m.push(entrySaga, r.Message.Content)
	m.active = r.ActiveProjects

	switch r.Intent {
	case models.IntentMemorySave:
		m.pending, m.pendingText = pendingMemory, r.PendingMemory
		m.push(entrySystem, fmt.Sprintf("Carve this into long-term memory? %q (y/n, or /remember <text> to reword it)", r.PendingMemory))
	case models.IntentNewProjectSuggestion:
		m.pending, m.pendingText = pendingProject, r.SuggestedProject
		m.push(entrySystem, fmt.Sprintf("You keep speaking of %q. Start a project for it? (y/n)", r.SuggestedProject))
	}
}

func (m *Model) push(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
	m.refresh()
}

func (m *Model) replaceHistory(turns []models.Message) {
	m.entries = m.entries[:0]
	for _, t := range turns {
		kind := entryUser
		if t.Role == models.RoleAssistant {
			kind = entrySaga
		}
		m.entries = append(m.entries, entry{kind: kind, text: t.Content})
	}
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m *Model) render() string {
	var sb strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case entryUser:
			sb.WriteString(userStyle.Render("You: ") + e.text + "\n\n")
		case entrySaga:
			body := e.text
			if m.renderer != nil {
				if out, err := m.renderer.Render(e.text); err == nil {
					body = strings.TrimRight(out, "\n")
				}
			}
			sb.WriteString(sagaStyle.Render("Saga:") + "\n" + body + "\n\n")
		case entrySystem:
			sb.WriteString(systemStyle.Render(e.text) + "\n\n")
		case entryError:
			sb.WriteString(errorStyle.Render("! "+e.text) + "\n\n")
		}
	}
	return sb.String()
}

// Commands

func (m Model) loadSession() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snap, err := b.Session(ctx)
		return sessionLoadedMsg{snap: snap, err: err}
	}
}

func (m Model) chat(text string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := b.Chat(ctx, text)
		return chatReplyMsg{resp: resp, err: err}
	}
}

func (m Model) remember(text string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		entry, err := b.SaveConsensus(ctx, text)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: fmt.Sprintf("Remembered: %q", entry.Instruction)}
	}
}

func (m Model) createProject(name string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		created, err := b.CreateProject(ctx, name)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Project " + created + " created."}
	}
}

func (m Model) addNote(project, note string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := b.AddNote(ctx, project, note); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Noted in " + project + "."}
	}
}

func (m Model) closeSession() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := b.CloseSession(ctx)
		if err != nil {
			return historyReplacedMsg{err: err}
		}
		notice := "Nothing to archive. A fresh saga begins."
		if resp.Archived && resp.Archive != nil {
			notice = "Archived as " + resp.Archive.ID + ". A fresh saga begins."
		}
		return historyReplacedMsg{notice: notice}
	}
}

func (m Model) listArchives() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		archives, err := b.Archives(ctx)
		if err != nil {
			return noticeMsg{err: err}
		}
		if len(archives) == 0 {
			return noticeMsg{text: "No archives yet."}
		}
		var sb strings.Builder
		sb.WriteString("Archives:")
		for _, a := range archives {
			fmt.Fprintf(&sb, "\n  %s", a.ID)
		}
		return noticeMsg{text: sb.String()}
	}
}

func (m Model) loadArchive(id string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		resp, err := b.LoadArchive(ctx, id)
		if err != nil {
			return historyReplacedMsg{err: err}
		}
		return historyReplacedMsg{turns: resp.Turns, notice: "Loaded " + resp.ID + "."}
	}
}

func (m Model) status() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h, err := b.Status(ctx)
		if h == nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: fmt.Sprintf("status %s | provider %s | qdrant %s | db %s | chunks %d | conversations %d",
			h.Status, h.Provider.Status, h.Qdrant.Status, h.DB.Status, h.ChunkCount, h.Conversations)}
	}
}
