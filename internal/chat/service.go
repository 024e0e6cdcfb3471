// Package chat runs conversation turns: it detects which projects a turn is
// about, assembles the layered prompt, calls the model and records both sides
// of the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jschreck/saga/internal/essence"
	"github.com/jschreck/saga/internal/llm"
	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/prompt"
	"github.com/jschreck/saga/internal/textclean"
)

var ErrEmptyMessage = errors.New("message is empty")

// MemoryStore is the subset of memstore.Store a turn reads and a close writes.
type MemoryStore interface {
	RecentConsensus(n int) ([]models.MemoryEntry, error)
	ListProjects() ([]string, error)
	RecentNotes(project string, n int) ([]models.ProjectNote, error)
	SaveArchive(a models.Archive) (models.ArchiveInfo, error)
	ListArchives() ([]models.ArchiveInfo, error)
	LoadArchive(id string) ([]models.Message, error)
}

// LoreSearcher finds ingested document fragments relevant to a turn.
type LoreSearcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Identity supplies the persona block; it is consulted on every turn.
type Identity interface {
	Load() string
}

// Options configures a Service.
type Options struct {
	Model       string
	Temperature float64
	LoreTopK    int
}

// Service is safe for concurrent use. Turns within one conversation run one
// at a time; different conversations proceed independently.
type Service struct {
	store     MemoryStore
	completer llm.Completer
	titler    *Titler
	assembler *prompt.Assembler
	identity  Identity
	extractor *essence.Extractor
	lore      LoreSearcher
	registry  *Registry
	opts      Options
	logger    *slog.Logger
}

// Deps groups the collaborators a Service needs. Lore and Titler are optional.
type Deps struct {
	Store     MemoryStore
	Completer llm.Completer
	Titler    *Titler
	Assembler *prompt.Assembler
	Identity  Identity
	Extractor *essence.Extractor
	Lore      LoreSearcher
	Registry  *Registry
	Logger    *slog.Logger
}

func NewService(d Deps, opts Options) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Assembler == nil {
		d.Assembler = prompt.NewAssembler(prompt.DefaultParams())
	}
	if d.Extractor == nil {
		d.Extractor = essence.NewExtractor(nil, d.Logger)
	}
	if d.Registry == nil {
		d.Registry = NewRegistry(nil, 0)
	}
	if d.Identity == nil {
		d.Identity = prompt.IdentityLoader{}
	}
	if d.Titler == nil {
		d.Titler = NewTitler(d.Completer, opts.Model, d.Logger)
	}
	return &Service{
		store:     d.Store,
		completer: d.Completer,
		titler:    d.Titler,
		assembler: d.Assembler,
		identity:  d.Identity,
		extractor: d.Extractor,
		lore:      d.Lore,
		registry:  d.Registry,
		opts:      opts,
		logger:    d.Logger,
	}
}

// Registry exposes the live sessions.
func (s *Service) Registry() *Registry { return s.registry }

// Chat runs one turn of conversation id. Only the last user message of req
// is treated as new input; the server-side transcript is authoritative.
// Inference failures do not return an error: the reply carries a soft error
// and both turns are still recorded.
func (s *Service) Chat(ctx context.Context, id string, req models.ChatRequest) (*models.ChatResponse, error) {
	text := strings.TrimSpace(req.LastUserMessage())
	if text == "" || textclean.HasOnlyPrivateContent(text) {
		return nil, ErrEmptyMessage
	}

	sess := s.registry.Get(id)
	sess.turn.Lock()
	defer sess.turn.Unlock()

	public := textclean.StripPrivateTags(text)
	clean := textclean.Clean(public)
	nouns := s.extractor.Extract(public)

	projects, err := s.store.ListProjects()
	if err != nil {
		s.logger.Warn("list projects failed", "error", err)
	}
	det := sess.detector.Detect(clean, nouns, projects)

	params := s.assembler.Params()
	in := prompt.Input{
		Identity:         s.identity.Load(),
		History:          sess.History(),
		SuggestedProject: det.Suggested(),
		UserTurn:         text,
	}
	if in.LongTerm, err = s.store.RecentConsensus(params.ConsensusWindow); err != nil {
		s.logger.Warn("read consensus failed", "error", err)
	}
	for _, p := range det.Active {
		notes, err := s.store.RecentNotes(p, params.NoteWindow)
		if err != nil {
			s.logger.Warn("read project notes failed", "project", p, "error", err)
			continue
		}
		in.Projects = append(in.Projects, prompt.ProjectNotes{Project: p, Notes: notes})
	}
	if s.lore != nil && s.opts.LoreTopK > 0 {
		frags, err := s.lore.Search(ctx, public, s.opts.LoreTopK)
		if err != nil {
			s.logger.Warn("lore search failed", "error", err)
		}
		in.Lore = frags
	}

	model := s.opts.Model
	if req.Model != "" {
		model = req.Model
	}

	start := time.Now()
	reply, err := s.completer.Complete(ctx, s.assembler.Assemble(in), llm.Options{
		Model:       model,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.logger.Error("inference failed", "conversation", sess.ID, "error", err)
		reply = llm.SoftError(err)
	}

	sess.Submit(models.RoleUser, public)
	sess.Submit(models.RoleAssistant, reply)

	resp := &models.ChatResponse{
		Model:            model,
		Message:          models.Message{Role: models.RoleAssistant, Content: reply},
		Done:             true,
		Intent:           models.IntentNone,
		SuggestedProject: det.Suggested(),
		ActiveProjects:   det.Active,
	}
	if resp.ActiveProjects == nil {
		resp.ActiveProjects = []string{}
	}
	switch {
	case IsMemoryInstruction(text):
		resp.Intent = models.IntentMemorySave
		resp.PendingMemory = PendingMemory(text)
	case resp.SuggestedProject != "":
		resp.Intent = models.IntentNewProjectSuggestion
	}

	s.logger.Info("chat turn",
		"conversation", sess.ID,
		"intent", resp.Intent,
		"active", det.Active,
		"suggested", resp.SuggestedProject,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// Close archives conversation id and starts it over. An empty session is
// simply reset and nil is returned.
func (s *Service) Close(ctx context.Context, id string) (*models.ArchiveInfo, error) {
	sess := s.registry.Get(id)
	sess.turn.Lock()
	defer sess.turn.Unlock()

	history := sess.History()
	if len(history) == 0 {
		sess.reset()
		return nil, nil
	}

	info, err := s.store.SaveArchive(models.Archive{
		Label:     sess.detector.MostActiveEstablished(),
		Title:     s.titler.Title(ctx, history),
		CreatedAt: time.Now().UTC(),
		Turns:     history,
	})
	if err != nil {
		return nil, fmt.Errorf("archive session: %w", err)
	}
	sess.reset()
	return &info, nil
}

// LoadArchive replaces the transcript of conversation id with an archived
// one. Affinity scores are kept.
func (s *Service) LoadArchive(id, archiveID string) ([]models.Message, error) {
	turns, err := s.store.LoadArchive(archiveID)
	if err != nil {
		return nil, err
	}
	sess := s.registry.Get(id)
	sess.turn.Lock()
	defer sess.turn.Unlock()
	sess.replace(turns)
	return turns, nil
}

func (s *Service) ListArchives() ([]models.ArchiveInfo, error) {
	return s.store.ListArchives()
}

// Snapshot describes conversation id.
func (s *Service) Snapshot(id string) models.SessionSnapshot {
	sess := s.registry.Get(id)
	history := sess.History()
	if history == nil {
		history = []models.Message{}
	}
	return models.SessionSnapshot{
		ConversationID: sess.ID,
		State:          sess.State(),
		History:        history,
		Scores:         sess.detector.Snapshot(),
		MostActive:     sess.detector.MostActiveEstablished(),
	}
}
