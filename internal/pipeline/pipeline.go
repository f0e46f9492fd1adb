// Package pipeline orchestrates the offline corpus-to-model build: raw dump
// → frozen vocabulary → bag-of-words corpus + docmap → tf-idf model and
// weighted corpus → LDA topic model → optional topic-space similarity
// corpus. Stages run sequentially (each depends on the previous stage's
// frozen output), stream their input one document at a time, and write
// every artifact atomically, so a failed stage can simply be re-run.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/wikitopics/topic-platform/internal/bow"
	"github.com/wikitopics/topic-platform/internal/corpus"
	"github.com/wikitopics/topic-platform/internal/tfidf"
	"github.com/wikitopics/topic-platform/internal/tokenizer"
	"github.com/wikitopics/topic-platform/internal/topicmodel"
	"github.com/wikitopics/topic-platform/internal/vocab"
	"github.com/wikitopics/topic-platform/pkg/config"
	"github.com/wikitopics/topic-platform/pkg/metrics"
)

// Paths derives the artifact file names for an output prefix, mirroring the
// original pipeline's layout.
type Paths struct {
	Prefix string
}

func (p Paths) Vocabulary() string  { return p.Prefix + "_wordids.txt.gz" }
func (p Paths) BowCorpus() string   { return p.Prefix + "_bow.vec" }
func (p Paths) Docmap() string      { return p.Prefix + "_docmap.txt.gz" }
func (p Paths) TfidfModel() string  { return p.Prefix + ".tfidf" }
func (p Paths) TfidfCorpus() string { return p.Prefix + "_tfidf.vec" }
func (p Paths) TopicModel() string  { return p.Prefix + "_lda.model" }
func (p Paths) SimCorpus() string   { return p.Prefix + "_sim.vec" }

// Pipeline runs the offline build stages.
type Pipeline struct {
	cfg     config.BuilderConfig
	tok     *tokenizer.Tokenizer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Pipeline. metrics may be nil.
func New(cfg config.BuilderConfig, m *metrics.Metrics) *Pipeline {
	var norm tokenizer.Normalizer = tokenizer.Plain{}
	if cfg.Stemming {
		norm = tokenizer.Stemmer{}
	}
	return &Pipeline{
		cfg: cfg,
		tok: tokenizer.New(tokenizer.Options{
			MinTokenLen: cfg.MinTokenLen,
			Normalizer:  norm,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "pipeline"),
	}
}

// Tokenizer returns the tokenizer the pipeline freezes into its artifacts.
// The inference service must use an identically configured one.
func (p *Pipeline) Tokenizer() *tokenizer.Tokenizer { return p.tok }

// Run executes every stage in order against one input dump.
func (p *Pipeline) Run(ctx context.Context, src Source, paths Paths) error {
	v, err := p.BuildVocabulary(ctx, src)
	if err != nil {
		return err
	}
	if err := v.Save(paths.Vocabulary()); err != nil {
		return err
	}
	p.logger.Info("vocabulary frozen", "terms", v.Size(), "documents", v.TotalDocs())

	if err := p.EncodeCorpus(ctx, src, v, paths); err != nil {
		return err
	}
	if err := p.FitTfidf(ctx, paths); err != nil {
		return err
	}
	if err := p.TrainTopicModel(ctx, paths); err != nil {
		return err
	}
	if p.cfg.BuildSimilarity {
		if err := p.BuildSimilarityCorpus(ctx, paths); err != nil {
			return err
		}
	}
	return nil
}

// BuildVocabulary is the first streaming pass: count per-token document
// frequency, then freeze the vocabulary with the configured thresholds.
func (p *Pipeline) BuildVocabulary(ctx context.Context, src Source) (*vocab.Vocabulary, error) {
	defer p.observeStage("vocabulary", time.Now())
	if err := src.Reset(); err != nil {
		return nil, err
	}

	builder := vocab.NewBuilder()
	for {
		doc, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		builder.AddDocument(p.tok.Tokenize(doc.Text))
		p.countDoc("vocabulary")
		if builder.TotalDocs()%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.logger.Info("vocabulary pass progress",
				"documents", builder.TotalDocs(),
				"distinct_tokens", builder.DistinctTokens(),
			)
		}
	}

	v, err := builder.FilterExtremes(p.cfg.NoBelow, p.cfg.NoAbove, p.cfg.KeepN)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeCorpus is the second pass: re-read the dump, encode each document
// against the frozen vocabulary, and stream the vectors into the
// bag-of-words corpus while collecting the docmap.
func (p *Pipeline) EncodeCorpus(ctx context.Context, src Source, v *vocab.Vocabulary, paths Paths) error {
	defer p.observeStage("encode", time.Now())
	if err := src.Reset(); err != nil {
		return err
	}

	w, err := corpus.NewWriter(paths.BowCorpus(), v.Size())
	if err != nil {
		return err
	}
	var docmap corpus.Docmap
	for {
		doc, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.Abort()
			return err
		}
		if err := w.Append(bow.Encode(p.tok.Tokenize(doc.Text), v)); err != nil {
			w.Abort()
			return err
		}
		docmap = append(docmap, doc.Title)
		p.countDoc("encode")
		if w.DocCount()%10000 == 0 {
			if err := ctx.Err(); err != nil {
				w.Abort()
				return err
			}
			p.logger.Info("encode pass progress", "documents", w.DocCount())
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := docmap.Save(paths.Docmap()); err != nil {
		return err
	}
	p.logger.Info("bag-of-words corpus written", "documents", len(docmap))
	return nil
}

// FitTfidf fits the tf-idf model on the bag-of-words corpus and writes the
// weighted corpus.
func (p *Pipeline) FitTfidf(ctx context.Context, paths Paths) error {
	defer p.observeStage("tfidf", time.Now())

	r, err := corpus.Open(paths.BowCorpus())
	if err != nil {
		return err
	}
	defer r.Close()

	model, err := tfidf.Fit(r)
	if err != nil {
		return err
	}
	if err := model.Save(paths.TfidfModel()); err != nil {
		return err
	}

	w, err := corpus.NewWriter(paths.TfidfCorpus(), r.VocabSize())
	if err != nil {
		return err
	}
	it := r.Vectors()
	for {
		vec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.Abort()
			return err
		}
		if err := w.Append(model.Apply(vec)); err != nil {
			w.Abort()
			return err
		}
		p.countDoc("tfidf")
		if w.DocCount()%10000 == 0 {
			if err := ctx.Err(); err != nil {
				w.Abort()
				return err
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	p.logger.Info("tf-idf corpus written", "documents", r.Len())
	return nil
}

// TrainTopicModel trains LDA on the bag-of-words corpus and persists the
// model.
func (p *Pipeline) TrainTopicModel(ctx context.Context, paths Paths) error {
	defer p.observeStage("lda", time.Now())

	r, err := corpus.Open(paths.BowCorpus())
	if err != nil {
		return err
	}
	defer r.Close()

	numTopics := p.cfg.NumTopics
	// A corpus smaller than the configured topic count cannot support it.
	if r.Len() < numTopics {
		numTopics = r.Len()
		p.logger.Warn("reducing topic count to corpus size",
			"configured", p.cfg.NumTopics, "effective", numTopics)
	}

	p.logger.Info("training topic model",
		"num_topics", numTopics,
		"passes", p.cfg.Passes,
		"chunk_size", p.cfg.ChunkSize,
		"documents", r.Len(),
	)
	model, err := topicmodel.Train(ctx, r, topicmodel.TrainOptions{
		NumTopics: numTopics,
		Passes:    p.cfg.Passes,
		ChunkSize: p.cfg.ChunkSize,
		Seed:      p.cfg.Seed,
	})
	if err != nil {
		return err
	}
	if err := model.Save(paths.TopicModel()); err != nil {
		return err
	}
	p.logger.Info("topic model written", "num_topics", model.NumTopics())
	return nil
}

// BuildSimilarityCorpus projects the bag-of-words corpus into topic space
// and stores it for nearest-document queries.
func (p *Pipeline) BuildSimilarityCorpus(ctx context.Context, paths Paths) error {
	defer p.observeStage("similarity", time.Now())

	model, err := topicmodel.Load(paths.TopicModel())
	if err != nil {
		return err
	}
	r, err := corpus.Open(paths.BowCorpus())
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := corpus.NewWriter(paths.SimCorpus(), model.NumTopics())
	if err != nil {
		return err
	}
	if err := model.Project(r, w, 0); err != nil {
		w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("similarity corpus written", "documents", r.Len())
	return nil
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	elapsed := time.Since(start)
	p.logger.Info("stage complete", "stage", stage, "elapsed", elapsed.Round(time.Millisecond))
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

func (p *Pipeline) countDoc(stage string) {
	if p.metrics != nil {
		p.metrics.DocsProcessedTotal.WithLabelValues(stage).Inc()
	}
}
