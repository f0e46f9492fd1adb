// Package tfidf fits and applies a term-frequency × inverse-document-
// frequency weighting derived from corpus-wide document frequencies. The
// fitted model is frozen: applying it never mutates it, so a single model
// may serve concurrent transforms.
package tfidf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/wikitopics/topic-platform/internal/corpus"
	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// Model holds per-term inverse document frequency computed once at fit
// time.
type Model struct {
	idf       []float64
	totalDocs int
}

// Fit makes one pass over the corpus, accumulating the number of documents
// containing each term, and derives idf_t = log(N / df_t). Terms that never
// occur get idf 0 and will be dropped by Apply. Returns ErrEmptyCorpus when
// the corpus holds no documents.
func Fit(r *corpus.Reader) (*Model, error) {
	if r.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot fit tf-idf", apperrors.ErrEmptyCorpus)
	}

	df := make([]int, r.VocabSize())
	it := r.Vectors()
	for {
		vec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scanning corpus: %w", err)
		}
		for _, t := range vec {
			if t.Weight > 0 {
				df[t.ID]++
			}
		}
	}

	m := &Model{
		idf:       make([]float64, r.VocabSize()),
		totalDocs: r.Len(),
	}
	n := float64(r.Len())
	for id, count := range df {
		if count > 0 {
			m.idf[id] = math.Log(n / float64(count))
		}
	}
	return m, nil
}

// TotalDocs returns the size of the corpus the model was fitted on.
func (m *Model) TotalDocs() int { return m.totalDocs }

// VocabSize returns the dimensionality the model was fitted for.
func (m *Model) VocabSize() int { return len(m.idf) }

// IDF returns the inverse document frequency of a term id.
func (m *Model) IDF(id int) float64 {
	if id < 0 || id >= len(m.idf) {
		return 0
	}
	return m.idf[id]
}

// Apply reweights a bag-of-words vector to count × idf per term and
// normalizes the result to unit L2 norm. Terms with zero idf are dropped.
// The zero vector (or one that is zero after reweighting) passes through
// unnormalized; there is no division by zero.
func (m *Model) Apply(vec corpus.SparseVector) corpus.SparseVector {
	out := make(corpus.SparseVector, 0, len(vec))
	for _, t := range vec {
		w := t.Weight * m.IDF(int(t.ID))
		if w > 0 {
			out = append(out, corpus.Term{ID: t.ID, Weight: w})
		}
	}
	norm := out.L2Norm()
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i].Weight /= norm
	}
	return out
}

// Save writes the model as gzip-compressed text: a header line with total
// documents and vocab size, then "id<TAB>idf" lines for non-zero idf terms.
// Written tmp-then-rename like every other artifact.
func (m *Model) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating tfidf model file: %w", err)
	}
	zw := gzip.NewWriter(f)
	w := bufio.NewWriter(zw)

	fmt.Fprintf(w, "%d\t%d\n", m.totalDocs, len(m.idf))
	for id, idf := range m.idf {
		if idf != 0 {
			fmt.Fprintf(w, "%d\t%s\n", id, strconv.FormatFloat(idf, 'g', -1, 64))
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing tfidf model: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing tfidf model file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing tfidf model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming tfidf model file: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tfidf model file: %w", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not gzip-compressed", apperrors.ErrFormat, path)
	}
	defer zr.Close()

	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: missing tfidf header", apperrors.ErrFormat)
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) != 2 {
		return nil, fmt.Errorf("%w: bad tfidf header %q", apperrors.ErrFormat, scanner.Text())
	}
	totalDocs, err := strconv.Atoi(header[0])
	if err != nil || totalDocs < 0 {
		return nil, fmt.Errorf("%w: bad document count %q", apperrors.ErrFormat, header[0])
	}
	size, err := strconv.Atoi(header[1])
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: bad vocab size %q", apperrors.ErrFormat, header[1])
	}

	m := &Model{idf: make([]float64, size), totalDocs: totalDocs}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idStr, idfStr, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: bad tfidf line %q", apperrors.ErrFormat, line)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id < 0 || id >= size {
			return nil, fmt.Errorf("%w: term id %q outside [0, %d)", apperrors.ErrFormat, idStr, size)
		}
		idf, err := strconv.ParseFloat(idfStr, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad idf value %q", apperrors.ErrFormat, idfStr)
		}
		m.idf[id] = idf
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tfidf model: %w", err)
	}
	return m, nil
}
