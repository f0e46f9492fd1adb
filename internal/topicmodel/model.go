// Package topicmodel trains and serves a latent Dirichlet allocation topic
// model. Training is delegated to the online variational inference in
// github.com/james-bowman/nlp; what this package fixes is the contract
// around it: the number of topics is immutable after fitting, the persisted
// model holds the per-topic word distributions, and inference projects any
// sparse vector onto those fixed topics deterministically.
package topicmodel

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/wikitopics/topic-platform/internal/corpus"
	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

const (
	// DefaultPruneEpsilon drops inferred topics below this weight.
	DefaultPruneEpsilon = 0.01

	inferMaxIterations = 50
	inferTolerance     = 1e-6
)

// TopicWeight is one entry of an inferred topic distribution.
type TopicWeight struct {
	Topic  int
	Weight float64
}

// TermWeight is one entry of a topic's word distribution.
type TermWeight struct {
	ID     int
	Weight float64
}

// Model is a frozen topic model: K topics, each a probability distribution
// over the vocabulary. It is immutable after training or loading and safe
// for concurrent inference.
type Model struct {
	k         int
	vocabSize int
	alpha     float64
	phi       *mat.Dense // k × vocabSize, rows sum to 1
}

// NumTopics returns K, fixed at fit time.
func (m *Model) NumTopics() int { return m.k }

// VocabSize returns the vector-space dimensionality the model was trained
// on.
func (m *Model) VocabSize() int { return m.vocabSize }

// Infer projects a sparse vector onto the model's topics by folding-in:
// the topic-word distributions stay fixed while the document's topic
// distribution is iterated to a fixed point. The result contains only
// topics with weight above eps (pass 0 for the default), sums to ~1 over
// the full distribution, and is deterministic. An empty or all-zero vector
// yields an empty distribution; Infer never fails on degenerate input.
func (m *Model) Infer(vec corpus.SparseVector, eps float64) []TopicWeight {
	if eps <= 0 {
		eps = DefaultPruneEpsilon
	}

	terms := make([]corpus.Term, 0, len(vec))
	var total float64
	for _, t := range vec {
		if t.Weight > 0 && int(t.ID) < m.vocabSize {
			terms = append(terms, t)
			total += t.Weight
		}
	}
	if len(terms) == 0 {
		return nil
	}

	theta := make([]float64, m.k)
	next := make([]float64, m.k)
	for k := range theta {
		theta[k] = 1 / float64(m.k)
	}

	for iter := 0; iter < inferMaxIterations; iter++ {
		for k := range next {
			next[k] = m.alpha
		}
		for _, t := range terms {
			w := int(t.ID)
			var denom float64
			for k := 0; k < m.k; k++ {
				denom += theta[k] * m.phi.At(k, w)
			}
			if denom == 0 {
				continue
			}
			for k := 0; k < m.k; k++ {
				next[k] += t.Weight * theta[k] * m.phi.At(k, w) / denom
			}
		}

		var sum float64
		for _, v := range next {
			sum += v
		}
		var change float64
		for k := range next {
			next[k] /= sum
			change += absFloat(next[k] - theta[k])
		}
		theta, next = next, theta
		if change/float64(m.k) < inferTolerance {
			break
		}
	}

	out := make([]TopicWeight, 0, 8)
	for k, w := range theta {
		if w > eps {
			out = append(out, TopicWeight{Topic: k, Weight: w})
		}
	}
	return out
}

// TopTerms returns the n most characteristic terms of a topic, sorted
// strictly descending by weight with ties broken by ascending term id. It
// returns fewer than n entries only when the vocabulary is smaller than n,
// and ErrInvalidTopicID when topicID lies outside [0, K).
func (m *Model) TopTerms(topicID, n int) ([]TermWeight, error) {
	if topicID < 0 || topicID >= m.k {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", apperrors.ErrInvalidTopicID, topicID, m.k)
	}
	if n <= 0 {
		return nil, nil
	}
	if n > m.vocabSize {
		n = m.vocabSize
	}

	terms := make([]TermWeight, m.vocabSize)
	for id := 0; id < m.vocabSize; id++ {
		terms[id] = TermWeight{ID: id, Weight: m.phi.At(topicID, id)}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].ID < terms[j].ID
	})
	return terms[:n], nil
}

// Project streams an entire corpus into topic space, appending one sparse
// topic vector per document to the writer. Used to build the similarity
// corpus.
func (m *Model) Project(r *corpus.Reader, w *corpus.Writer, eps float64) error {
	it := r.Vectors()
	for {
		vec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading corpus: %w", err)
		}
		topics := m.Infer(vec, eps)
		projected := make(corpus.SparseVector, len(topics))
		for i, tw := range topics {
			projected[i] = corpus.Term{ID: uint32(tw.Topic), Weight: tw.Weight}
		}
		if err := w.Append(projected); err != nil {
			return fmt.Errorf("writing topic vector: %w", err)
		}
	}
	return nil
}

// modelFile is the gob-serialized form of a Model.
type modelFile struct {
	K         int
	VocabSize int
	Alpha     float64
	Phi       []float64 // row-major k × vocabSize
}

// Save persists the model (gob, gzip-compressed) tmp-then-rename.
func (m *Model) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	zw := gzip.NewWriter(f)

	raw := make([]float64, m.k*m.vocabSize)
	for k := 0; k < m.k; k++ {
		copy(raw[k*m.vocabSize:(k+1)*m.vocabSize], m.phi.RawRowView(k))
	}
	enc := gob.NewEncoder(zw)
	if err := enc.Encode(modelFile{K: m.k, VocabSize: m.vocabSize, Alpha: m.alpha, Phi: raw}); err != nil {
		f.Close()
		return fmt.Errorf("encoding model: %w", err)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing model file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming model file: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not gzip-compressed", apperrors.ErrFormat, path)
	}
	defer zr.Close()

	var mf modelFile
	if err := gob.NewDecoder(zr).Decode(&mf); err != nil {
		return nil, fmt.Errorf("%w: decoding model: %v", apperrors.ErrFormat, err)
	}
	if mf.K <= 0 || mf.VocabSize <= 0 || len(mf.Phi) != mf.K*mf.VocabSize {
		return nil, fmt.Errorf("%w: model dimensions inconsistent (k=%d vocab=%d phi=%d)",
			apperrors.ErrFormat, mf.K, mf.VocabSize, len(mf.Phi))
	}
	return &Model{
		k:         mf.K,
		vocabSize: mf.VocabSize,
		alpha:     mf.Alpha,
		phi:       mat.NewDense(mf.K, mf.VocabSize, mf.Phi),
	}, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
