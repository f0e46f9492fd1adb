package similarity

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/wikitopics/topic-platform/internal/corpus"
	"github.com/wikitopics/topic-platform/internal/topicmodel"
	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// buildIndex writes a topic-space corpus and loads it into an Index. The
// vectors live in a 3-topic space.
func buildIndex(t *testing.T, vectors []corpus.SparseVector, titles corpus.Docmap) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_sim.vec")
	w, err := corpus.NewWriter(path, 3)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i, vec := range vectors {
		if err := w.Append(vec); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r, err := corpus.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	idx, err := Build(r, titles)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func TestQueryRanksByCosine(t *testing.T) {
	idx := buildIndex(t, []corpus.SparseVector{
		{{ID: 0, Weight: 1}},                     // doc 0: pure topic 0
		{{ID: 0, Weight: 1}, {ID: 1, Weight: 1}}, // doc 1: mixed
		{{ID: 2, Weight: 1}},                     // doc 2: orthogonal
	}, nil)

	matches, err := idx.Query(context.Background(), []topicmodel.TopicWeight{{Topic: 0, Weight: 1}}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (orthogonal document excluded)", len(matches))
	}
	if matches[0].DocID != 0 {
		t.Errorf("best match = doc %d, want 0", matches[0].DocID)
	}
	if math.Abs(matches[0].Score-1) > 1e-12 {
		t.Errorf("identical direction should score 1, got %g", matches[0].Score)
	}
	if matches[1].DocID != 1 {
		t.Errorf("second match = doc %d, want 1", matches[1].DocID)
	}
	if matches[0].Score <= matches[1].Score {
		t.Error("matches not in descending score order")
	}
}

func TestQueryLimit(t *testing.T) {
	idx := buildIndex(t, []corpus.SparseVector{
		{{ID: 0, Weight: 3}},
		{{ID: 0, Weight: 2}, {ID: 1, Weight: 1}},
		{{ID: 0, Weight: 1}, {ID: 1, Weight: 2}},
	}, nil)

	matches, err := idx.Query(context.Background(), []topicmodel.TopicWeight{{Topic: 0, Weight: 1}}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].DocID != 0 {
		t.Errorf("best match = doc %d, want 0", matches[0].DocID)
	}
}

func TestQueryEmptyDistribution(t *testing.T) {
	idx := buildIndex(t, []corpus.SparseVector{{{ID: 0, Weight: 1}}}, nil)

	matches, err := idx.Query(context.Background(), nil, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("empty distribution should match nothing, got %v", matches)
	}
}

func TestQueryInvalidTopic(t *testing.T) {
	idx := buildIndex(t, []corpus.SparseVector{{{ID: 0, Weight: 1}}}, nil)

	_, err := idx.Query(context.Background(), []topicmodel.TopicWeight{{Topic: 7, Weight: 1}}, 5)
	if !errors.Is(err, apperrors.ErrInvalidTopicID) {
		t.Errorf("expected ErrInvalidTopicID, got %v", err)
	}
}

func TestQueryAttachesTitles(t *testing.T) {
	idx := buildIndex(t, []corpus.SparseVector{
		{{ID: 0, Weight: 1}},
		{{ID: 1, Weight: 1}},
	}, corpus.Docmap{"Alpha", "Beta"})

	matches, err := idx.Query(context.Background(), []topicmodel.TopicWeight{{Topic: 1, Weight: 1}}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Title != "Beta" {
		t.Errorf("matches = %+v, want single match titled Beta", matches)
	}
}

func TestBuildRejectsMismatchedDocmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_sim.vec")
	w, err := corpus.NewWriter(path, 3)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append(corpus.SparseVector{{ID: 0, Weight: 1}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r, err := corpus.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	_, err = Build(r, corpus.Docmap{"one", "two", "three"})
	if !errors.Is(err, apperrors.ErrFormat) {
		t.Errorf("expected ErrFormat for mismatched docmap, got %v", err)
	}
}

func TestQuerySkipsEmptyDocuments(t *testing.T) {
	idx := buildIndex(t, []corpus.SparseVector{
		{},
		{{ID: 0, Weight: 1}},
	}, nil)

	matches, err := idx.Query(context.Background(), []topicmodel.TopicWeight{{Topic: 0, Weight: 1}}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].DocID != 1 {
		t.Errorf("matches = %+v, want only doc 1", matches)
	}
}
