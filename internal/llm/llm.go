// Package llm talks to the language model backends Saga can run on.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/jschreck/saga/internal/models"
)

// ErrorMarker prefixes every reply that stands in for a failed completion.
const ErrorMarker = "Error connecting to the hearth"

// Options tune a single completion.
type Options struct {
	// Model overrides the backend's default model when set.
	Model       string
	Temperature float64
}

// Completer turns an assembled message list into a reply.
type Completer interface {
	Complete(ctx context.Context, msgs []models.Message, opts Options) (string, error)
}

// SoftError renders err as the assistant reply recorded in place of a real
// completion.
func SoftError(err error) string {
	return fmt.Sprintf("%s: %v", ErrorMarker, err)
}

// IsSoftError reports whether reply was produced by SoftError.
func IsSoftError(reply string) bool {
	return strings.HasPrefix(reply, ErrorMarker)
}
