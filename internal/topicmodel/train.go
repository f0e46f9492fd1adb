package topicmodel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/james-bowman/nlp"
	"github.com/james-bowman/sparse"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/wikitopics/topic-platform/internal/corpus"
	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// TrainOptions fixes the shape of a training run. NumTopics is immutable
// once training completes; Passes and ChunkSize control the mini-batch
// schedule; Seed makes topic assignments reproducible across runs.
type TrainOptions struct {
	NumTopics int
	Passes    int
	ChunkSize int
	Seed      int64
	Alpha     float64
	Eta       float64
}

// Train fits an LDA topic model over a stored corpus. The corpus is
// streamed into a sparse term-document matrix and handed to the variational
// optimizer; each pass reprocesses the full corpus in ChunkSize batches.
// Training runs single-process so a fixed seed yields identical topics.
func Train(ctx context.Context, r *corpus.Reader, opts TrainOptions) (*Model, error) {
	if r.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot train topic model", apperrors.ErrEmptyCorpus)
	}
	if opts.NumTopics <= 0 {
		return nil, fmt.Errorf("number of topics must be positive, got %d", opts.NumTopics)
	}
	passes := opts.Passes
	if passes <= 0 {
		passes = 1
	}
	alpha := opts.Alpha
	if alpha <= 0 {
		alpha = 0.1
	}

	dok := sparse.NewDOK(r.VocabSize(), r.Len())
	it := r.Vectors()
	for {
		vec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading corpus: %w", err)
		}
		doc := it.Index() - 1
		for _, t := range vec {
			dok.Set(int(t.ID), doc, t.Weight)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lda := nlp.NewLatentDirichletAllocation(opts.NumTopics)
	lda.Iterations = passes
	lda.Alpha = alpha
	if opts.Eta > 0 {
		lda.Eta = opts.Eta
	}
	if opts.ChunkSize > 0 {
		lda.BatchSize = opts.ChunkSize
	}
	lda.Processes = 1
	lda.Rnd = rand.New(rand.NewSource(uint64(opts.Seed)))

	if _, err := lda.FitTransform(dok.ToCSR()); err != nil {
		return nil, fmt.Errorf("fitting topic model: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phi := mat.DenseCopyOf(lda.Components())
	normalizeRows(phi)
	return &Model{
		k:         opts.NumTopics,
		vocabSize: r.VocabSize(),
		alpha:     alpha,
		phi:       phi,
	}, nil
}

// New builds a model directly from a row-major k × vocabSize topic-word
// matrix. Rows are renormalized to probability distributions.
func New(k, vocabSize int, alpha float64, phi []float64) (*Model, error) {
	if k <= 0 || vocabSize <= 0 || len(phi) != k*vocabSize {
		return nil, fmt.Errorf("inconsistent model dimensions (k=%d vocab=%d phi=%d)", k, vocabSize, len(phi))
	}
	if alpha <= 0 {
		alpha = 0.1
	}
	dense := mat.NewDense(k, vocabSize, phi)
	normalizeRows(dense)
	return &Model{k: k, vocabSize: vocabSize, alpha: alpha, phi: dense}, nil
}

func normalizeRows(m *mat.Dense) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			sum += m.At(i, j)
		}
		if sum == 0 {
			continue
		}
		for j := 0; j < cols; j++ {
			m.Set(i, j, m.At(i, j)/sum)
		}
	}
}
