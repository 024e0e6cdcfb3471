// Package textclean normalizes raw user turns before they feed topic
// detection and memory writes.
package textclean

import (
	"regexp"
	"strings"
	"unicode"
)

// privateTagRegex matches <private>...</private> blocks (non-greedy, dotall).
var privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

var urlRegex = regexp.MustCompile(`https?://\S+`)

// addressRegex matches a leading vocative such as "Saga," or "hey saga:".
var addressRegex = regexp.MustCompile(`(?i)^\s*(?:(?:hey|hi|ok|okay|oh)\s+)?saga\b[\s,:;!.\-]*`)

// StripPrivateTags removes all <private>...</private> blocks from content.
func StripPrivateTags(content string) string {
	return strings.TrimSpace(privateTagRegex.ReplaceAllString(content, ""))
}

// HasOnlyPrivateContent reports whether nothing is left once private blocks
// are stripped.
func HasOnlyPrivateContent(content string) bool {
	return StripPrivateTags(content) == ""
}

// Clean reduces a turn to lowercase words separated by single spaces.
// Private blocks and URLs are dropped; every rune that is not a letter or a
// digit becomes a separator.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = urlRegex.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// StripAddress removes a leading "saga" address term so a saved instruction
// reads as a plain directive.
func StripAddress(text string) string {
	return strings.TrimSpace(addressRegex.ReplaceAllString(text, ""))
}

// Truncate shortens s to at most max runes. It never splits a rune.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
