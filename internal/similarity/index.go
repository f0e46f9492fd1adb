// Package similarity answers nearest-document queries over a corpus
// projected into topic space. Vectors are L2-normalized at load time so a
// query is a straight cosine scan, parallelized across fixed-size shards.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wikitopics/topic-platform/internal/corpus"
	"github.com/wikitopics/topic-platform/internal/topicmodel"
	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// Match is one nearest-document result.
type Match struct {
	DocID int     `json:"doc_id"`
	Title string  `json:"title,omitempty"`
	Score float64 `json:"score"`
}

// Index holds the topic-space corpus in memory, one dense unit vector per
// document. Immutable after Build.
type Index struct {
	numTopics int
	vectors   [][]float64 // nil entry: document had no topics above threshold
	titles    corpus.Docmap
}

// Build loads a topic-space corpus (as written by Model.Project) into an
// in-memory index. The docmap is optional; when present it must cover the
// corpus.
func Build(r *corpus.Reader, titles corpus.Docmap) (*Index, error) {
	if len(titles) > 0 && len(titles) != r.Len() {
		return nil, fmt.Errorf("%w: docmap covers %d documents, corpus has %d",
			apperrors.ErrFormat, len(titles), r.Len())
	}

	idx := &Index{
		numTopics: r.VocabSize(),
		vectors:   make([][]float64, r.Len()),
		titles:    titles,
	}
	it := r.Vectors()
	for {
		vec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading topic corpus: %w", err)
		}
		norm := vec.L2Norm()
		if norm == 0 {
			continue
		}
		dense := make([]float64, idx.numTopics)
		for _, t := range vec {
			dense[t.ID] = t.Weight / norm
		}
		idx.vectors[it.Index()-1] = dense
	}
	return idx, nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.vectors) }

// NumTopics returns the dimensionality of the topic space.
func (idx *Index) NumTopics() int { return idx.numTopics }

// Query returns the k documents closest to the inferred topic distribution
// by cosine similarity, descending, ties broken by ascending document id.
func (idx *Index) Query(ctx context.Context, topics []topicmodel.TopicWeight, k int) ([]Match, error) {
	if k <= 0 || len(topics) == 0 {
		return nil, nil
	}

	query := make([]float64, idx.numTopics)
	var sq float64
	for _, tw := range topics {
		if tw.Topic < 0 || tw.Topic >= idx.numTopics {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", apperrors.ErrInvalidTopicID, tw.Topic, idx.numTopics)
		}
		query[tw.Topic] = tw.Weight
		sq += tw.Weight * tw.Weight
	}
	if sq == 0 {
		return nil, nil
	}
	norm := math.Sqrt(sq)
	for i := range query {
		query[i] /= norm
	}

	shards := runtime.GOMAXPROCS(0)
	if shards > len(idx.vectors) {
		shards = 1
	}
	chunk := (len(idx.vectors) + shards - 1) / shards

	var mu sync.Mutex
	var all []Match
	g, ctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		lo, hi := s*chunk, (s+1)*chunk
		if hi > len(idx.vectors) {
			hi = len(idx.vectors)
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local := make([]Match, 0, k)
			for doc := lo; doc < hi; doc++ {
				vec := idx.vectors[doc]
				if vec == nil {
					continue
				}
				var score float64
				for i, q := range query {
					score += q * vec[i]
				}
				if score > 0 {
					local = append(local, Match{DocID: doc, Title: idx.titles.Title(doc), Score: score})
				}
			}
			sortMatches(local)
			if len(local) > k {
				local = local[:k]
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortMatches(all)
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

func sortMatches(m []Match) {
	sort.Slice(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		return m[i].DocID < m[j].DocID
	})
}
