package vocab

import (
	"fmt"
	"sort"

	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// Builder accumulates per-token document frequencies over a single
// streaming pass of the corpus. It never holds documents, only counters, so
// memory is bounded by the number of distinct tokens.
type Builder struct {
	docFreq   map[string]int
	firstSeen map[string]int
	nextSeen  int
	totalDocs int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		docFreq:   make(map[string]int),
		firstSeen: make(map[string]int),
	}
}

// AddDocument records one tokenized document. Document frequency counts a
// token once per document regardless of how often it occurs in it.
func (b *Builder) AddDocument(tokens []string) {
	b.totalDocs++
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		b.docFreq[tok]++
		if _, known := b.firstSeen[tok]; !known {
			b.firstSeen[tok] = b.nextSeen
			b.nextSeen++
		}
	}
}

// TotalDocs returns the number of documents added so far.
func (b *Builder) TotalDocs() int { return b.totalDocs }

// DistinctTokens returns the number of distinct tokens seen so far.
func (b *Builder) DistinctTokens() int { return len(b.docFreq) }

// FilterExtremes freezes the vocabulary. Filtering order is fixed:
//
//  1. drop tokens with document frequency < noBelow,
//  2. drop tokens with document frequency > noAbove × total documents,
//  3. keep only the keepN most frequent survivors.
//
// Dense ids are assigned in descending document-frequency order; ties break
// on original encounter order. Returns ErrEmptyVocabulary if nothing
// survives. keepN <= 0 means keep all survivors.
func (b *Builder) FilterExtremes(noBelow int, noAbove float64, keepN int) (*Vocabulary, error) {
	upper := noAbove * float64(b.totalDocs)

	type candidate struct {
		word string
		df   int
		seen int
	}
	survivors := make([]candidate, 0, len(b.docFreq))
	for word, df := range b.docFreq {
		if df < noBelow {
			continue
		}
		if float64(df) > upper {
			continue
		}
		survivors = append(survivors, candidate{word: word, df: df, seen: b.firstSeen[word]})
	}
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: no_below=%d no_above=%g total_docs=%d",
			apperrors.ErrEmptyVocabulary, noBelow, noAbove, b.totalDocs)
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].df != survivors[j].df {
			return survivors[i].df > survivors[j].df
		}
		return survivors[i].seen < survivors[j].seen
	})
	if keepN > 0 && len(survivors) > keepN {
		survivors = survivors[:keepN]
	}

	v := &Vocabulary{
		ids:       make(map[string]int, len(survivors)),
		words:     make([]string, len(survivors)),
		docFreq:   make([]int, len(survivors)),
		totalDocs: b.totalDocs,
	}
	for id, c := range survivors {
		v.ids[c.word] = id
		v.words[id] = c.word
		v.docFreq[id] = c.df
	}
	return v, nil
}
