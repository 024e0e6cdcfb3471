package chat

import (
	"strings"

	"github.com/jschreck/saga/internal/textclean"
)

// memoryTriggers mark a turn as an instruction worth keeping long-term.
var memoryTriggers = []string{
	"from now on",
	"remember that",
	"remember to",
	"don't forget",
	"dont forget",
	"keep in mind",
	"always remember",
}

// IsMemoryInstruction reports whether text asks Saga to remember something.
func IsMemoryInstruction(text string) bool {
	lower := strings.ToLower(textclean.StripPrivateTags(text))
	lower = strings.ReplaceAll(lower, "’", "'")
	for _, t := range memoryTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// PendingMemory is the text a client would save for a memory instruction.
func PendingMemory(text string) string {
	return textclean.StripAddress(textclean.StripPrivateTags(text))
}
