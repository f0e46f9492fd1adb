// Package tokenizer turns raw document text into normalised word tokens.
// The same tokenizer configuration must be used for vocabulary building,
// corpus encoding, and online inference; any divergence corrupts the shared
// vector space.
package tokenizer

import (
	"strings"
	"unicode"
)

// DefaultMinTokenLen is the minimum rune length a token must have to be kept.
const DefaultMinTokenLen = 2

// Normalizer reduces a token to its normal form. The zero-value pipeline
// uses Plain; a stemming variant is available for corpora built with it.
// Whichever normalizer is chosen, it must be frozen alongside the
// vocabulary: id assignment is identical either way, but the token stream
// feeding it is not.
type Normalizer interface {
	Normalize(token string) string
}

// Plain is the identity normalizer.
type Plain struct{}

func (Plain) Normalize(token string) string { return token }

// Options configures a Tokenizer.
type Options struct {
	MinTokenLen int
	Normalizer  Normalizer
}

// Tokenizer splits text into lowercase alphabetic tokens.
type Tokenizer struct {
	minLen int
	norm   Normalizer
}

// New creates a Tokenizer, filling in defaults for zero values.
func New(opts Options) *Tokenizer {
	minLen := opts.MinTokenLen
	if minLen <= 0 {
		minLen = DefaultMinTokenLen
	}
	norm := opts.Normalizer
	if norm == nil {
		norm = Plain{}
	}
	return &Tokenizer{minLen: minLen, norm: norm}
}

// Tokenize lowercases text, splits on non-letter boundaries, drops tokens
// shorter than the configured minimum, and applies the normalizer. It is
// pure: no shared state, safe for concurrent use.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < t.minLen {
			continue
		}
		normed := t.norm.Normalize(word)
		if normed == "" {
			continue
		}
		tokens = append(tokens, normed)
	}
	return tokens
}
