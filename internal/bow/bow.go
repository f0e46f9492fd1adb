// Package bow converts tokenized documents into sparse bag-of-words vectors
// against a frozen vocabulary.
package bow

import (
	"github.com/wikitopics/topic-platform/internal/corpus"
	"github.com/wikitopics/topic-platform/internal/vocab"
)

// Encode counts token occurrences, maps them through the frozen vocabulary,
// and emits one (id, count) term per distinct retained token, sorted by
// term id. Tokens absent from the vocabulary are dropped silently. Encode
// is pure: identical input always produces the identical vector.
func Encode(tokens []string, v *vocab.Vocabulary) corpus.SparseVector {
	counts := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		id, ok := v.ID(tok)
		if !ok {
			continue
		}
		counts[id]++
	}
	vec := make(corpus.SparseVector, 0, len(counts))
	for id, count := range counts {
		vec = append(vec, corpus.Term{ID: uint32(id), Weight: count})
	}
	vec.SortByID()
	return vec
}
