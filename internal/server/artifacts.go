// Package server implements the topic inference service: load the frozen
// artifacts once, answer single-document topic queries statelessly.
package server

import (
	"fmt"
	"log/slog"

	"github.com/wikitopics/topic-platform/internal/corpus"
	"github.com/wikitopics/topic-platform/internal/similarity"
	"github.com/wikitopics/topic-platform/internal/tokenizer"
	"github.com/wikitopics/topic-platform/internal/topicmodel"
	"github.com/wikitopics/topic-platform/internal/vocab"
	"github.com/wikitopics/topic-platform/pkg/config"
	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// Artifacts is the immutable state shared read-only by every request:
// frozen vocabulary, corpus reader, topic model, and the tokenizer
// configuration the corpus was built with. It is constructed once at
// startup and never mutated, so concurrent requests need no locking.
type Artifacts struct {
	Vocabulary *vocab.Vocabulary
	Corpus     *corpus.Reader
	Model      *topicmodel.Model
	Similarity *similarity.Index // nil unless a similarity corpus is configured
	Tokenizer  *tokenizer.Tokenizer

	TopWords     int
	PruneEpsilon float64
}

// LoadArtifacts reads every configured artifact and cross-checks that they
// were produced by the same build: the vocabulary, the corpus header, and
// the model must agree on dimensionality. Any inconsistency is fatal; the
// service refuses to start on a mismatched or corrupt set.
func LoadArtifacts(cfg *config.Config) (*Artifacts, error) {
	if err := cfg.ValidateServing(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}

	v, err := vocab.Load(cfg.Model.VocabularyFile)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}
	c, err := corpus.Open(cfg.Model.CorpusFile)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	if c.VocabSize() != v.Size() {
		c.Close()
		return nil, fmt.Errorf("%w: corpus dimensionality %d does not match vocabulary size %d",
			apperrors.ErrFormat, c.VocabSize(), v.Size())
	}
	m, err := topicmodel.Load(cfg.Model.TopicModelFile)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("loading topic model: %w", err)
	}
	if m.VocabSize() != v.Size() {
		c.Close()
		return nil, fmt.Errorf("%w: model dimensionality %d does not match vocabulary size %d",
			apperrors.ErrFormat, m.VocabSize(), v.Size())
	}

	var norm tokenizer.Normalizer = tokenizer.Plain{}
	if cfg.Builder.Stemming {
		norm = tokenizer.Stemmer{}
	}
	art := &Artifacts{
		Vocabulary: v,
		Corpus:     c,
		Model:      m,
		Tokenizer: tokenizer.New(tokenizer.Options{
			MinTokenLen: cfg.Builder.MinTokenLen,
			Normalizer:  norm,
		}),
		TopWords:     cfg.Model.TopWords,
		PruneEpsilon: cfg.Model.PruneEpsilon,
	}
	if art.TopWords <= 0 {
		art.TopWords = 10
	}

	if cfg.Model.SimilarityFile != "" {
		if err := art.loadSimilarity(cfg); err != nil {
			c.Close()
			return nil, err
		}
	}

	slog.Info("artifacts loaded",
		"vocabulary_terms", v.Size(),
		"corpus_documents", c.Len(),
		"num_topics", m.NumTopics(),
		"similarity", art.Similarity != nil,
	)
	return art, nil
}

func (a *Artifacts) loadSimilarity(cfg *config.Config) error {
	simReader, err := corpus.Open(cfg.Model.SimilarityFile)
	if err != nil {
		return fmt.Errorf("opening similarity corpus: %w", err)
	}
	defer simReader.Close()
	if simReader.VocabSize() != a.Model.NumTopics() {
		return fmt.Errorf("%w: similarity corpus has %d topics, model has %d",
			apperrors.ErrFormat, simReader.VocabSize(), a.Model.NumTopics())
	}

	var titles corpus.Docmap
	if cfg.Model.DocmapFile != "" {
		titles, err = corpus.LoadDocmap(cfg.Model.DocmapFile)
		if err != nil {
			return fmt.Errorf("loading docmap: %w", err)
		}
	}
	idx, err := similarity.Build(simReader, titles)
	if err != nil {
		return err
	}
	a.Similarity = idx
	return nil
}

// Close releases the artifact file handles.
func (a *Artifacts) Close() error {
	return a.Corpus.Close()
}
