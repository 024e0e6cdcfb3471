// Package essence reduces a turn to the nouns that carry its topic.
package essence

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// Token is a word with its Penn Treebank part-of-speech tag.
type Token struct {
	Text string
	Tag  string
}

// Tagger assigns part-of-speech tags to text.
type Tagger interface {
	Tag(text string) ([]Token, error)
}

// ProseTagger tags text with prose's averaged perceptron model.
type ProseTagger struct{}

func (ProseTagger) Tag(text string) ([]Token, error) {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, fmt.Errorf("prose document: %w", err)
	}
	toks := doc.Tokens()
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = Token{Text: t.Text, Tag: t.Tag}
	}
	return out, nil
}

var nounTags = map[string]bool{
	"NN":   true,
	"NNS":  true,
	"NNP":  true,
	"NNPS": true,
}

// fallbackMinLen is the exclusive lower bound on word length for the
// rule-based fallback.
const fallbackMinLen = 3

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "been": true,
	"before": true, "being": true, "could": true, "does": true, "doing": true,
	"from": true, "have": true, "having": true, "here": true, "into": true,
	"just": true, "like": true, "more": true, "most": true, "much": true,
	"only": true, "other": true, "over": true, "really": true, "same": true,
	"should": true, "some": true, "such": true, "tell": true, "than": true,
	"that": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "thing": true, "this": true, "those": true,
	"through": true, "very": true, "want": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true, "yours": true, "saga": true,
}

// Extractor turns free text into an ordered list of lowercase nouns.
type Extractor struct {
	tagger Tagger
	logger *slog.Logger
}

// NewExtractor returns an extractor over tagger. A nil tagger uses prose.
func NewExtractor(tagger Tagger, logger *slog.Logger) *Extractor {
	if tagger == nil {
		tagger = ProseTagger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{tagger: tagger, logger: logger}
}

// Extract returns the noun tokens of text, lowercased with trailing
// punctuation stripped. Order and duplicates are preserved. If the tagger
// fails the rule-based Fallback is used instead.
func (e *Extractor) Extract(text string) []string {
	tokens, err := e.tag(text)
	if err != nil {
		e.logger.Debug("pos tagging failed, using fallback", "error", err)
		return Fallback(text)
	}

	var nouns []string
	for _, t := range tokens {
		if !nounTags[t.Tag] {
			continue
		}
		w := normalize(t.Text)
		if w == "" {
			continue
		}
		nouns = append(nouns, w)
	}
	return nouns
}

func (e *Extractor) tag(text string) (tokens []Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tagger panic: %v", r)
		}
	}()
	return e.tagger.Tag(text)
}

// Fallback splits on whitespace and keeps lowercase words longer than three
// characters that are not stop words.
func Fallback(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		w := normalize(f)
		if len([]rune(w)) <= fallbackMinLen || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Unique drops repeated tokens, keeping first occurrences in order.
func Unique(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func normalize(word string) string {
	w := strings.ToLower(word)
	return strings.TrimRightFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
