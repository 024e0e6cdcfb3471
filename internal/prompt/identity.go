package prompt

import (
	"log/slog"
	"os"
	"strings"
)

// DefaultIdentity is used when the identity file is missing or empty.
const DefaultIdentity = "You are Saga, a helpful Nordic-inspired AI."

// IdentityLoader reads the persona file. It never caches: operators edit the
// file between turns and expect the next turn to pick it up.
type IdentityLoader struct {
	Path   string
	Logger *slog.Logger
}

// Load returns the current identity text, or DefaultIdentity.
func (l IdentityLoader) Load() string {
	if l.Path == "" {
		return DefaultIdentity
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if l.Logger != nil {
			l.Logger.Warn("identity file unavailable, using default", "path", l.Path, "error", err)
		}
		return DefaultIdentity
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return DefaultIdentity
	}
	return text
}
