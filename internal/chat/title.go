package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jschreck/saga/internal/llm"
	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/prompt"
)

const (
	titleTurns    = 6
	maxTitleLen   = 40
	fallbackTitle = "untitled"
)

const titleInstruction = "Summarize the topic of this conversation in three to five words. " +
	"Reply with the title only, no punctuation or quotes."

// Titler names a session for its archive.
type Titler struct {
	completer llm.Completer
	model     string
	logger    *slog.Logger
}

func NewTitler(completer llm.Completer, model string, logger *slog.Logger) *Titler {
	return &Titler{completer: completer, model: model, logger: logger}
}

// Title asks the model for a short title over the last few turns. Any
// failure yields "untitled".
func (t *Titler) Title(ctx context.Context, history []models.Message) string {
	if len(history) == 0 || t.completer == nil {
		return fallbackTitle
	}
	if len(history) > titleTurns {
		history = history[len(history)-titleTurns:]
	}

	msgs := []models.Message{
		{Role: models.RoleSystem, Content: titleInstruction},
		{Role: models.RoleUser, Content: prompt.Render(history)},
	}
	reply, err := t.completer.Complete(ctx, msgs, llm.Options{Model: t.model, Temperature: 0.2})
	if err != nil {
		t.logger.Warn("title generation failed", "error", err)
		return fallbackTitle
	}
	return SanitizeTitle(reply)
}

// SanitizeTitle reduces s to lowercase [a-z0-9_] words, at most 40 chars.
func SanitizeTitle(s string) string {
	if line, _, ok := strings.Cut(strings.TrimSpace(s), "\n"); ok {
		s = line
	}
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			sep = false
		default:
			sep = true
		}
	}
	out := b.String()
	if len(out) > maxTitleLen {
		out = strings.TrimRight(out[:maxTitleLen], "_")
	}
	if out == "" {
		return fallbackTitle
	}
	return out
}
