// Package vocab builds and persists the frozen word↔id vocabulary that
// defines the dimensionality of every vector in the platform. Ids are dense
// integers in [0, Size()); once built the vocabulary is immutable and shared
// read-only by the encoder, the tf-idf transform, and the inference service.
package vocab

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// Vocabulary is a frozen bidirectional word↔id mapping with per-term
// document frequencies.
type Vocabulary struct {
	ids       map[string]int
	words     []string
	docFreq   []int
	totalDocs int
}

// Size returns the number of terms |V|. All vector term ids are < Size().
func (v *Vocabulary) Size() int { return len(v.words) }

// TotalDocs returns the number of documents scanned when the vocabulary was
// built.
func (v *Vocabulary) TotalDocs() int { return v.totalDocs }

// ID returns the dense id for word.
func (v *Vocabulary) ID(word string) (int, bool) {
	id, ok := v.ids[word]
	return id, ok
}

// Word returns the word for a dense id.
func (v *Vocabulary) Word(id int) (string, bool) {
	if id < 0 || id >= len(v.words) {
		return "", false
	}
	return v.words[id], true
}

// DocFreq returns the number of documents containing the term with this id.
func (v *Vocabulary) DocFreq(id int) int {
	if id < 0 || id >= len(v.docFreq) {
		return 0
	}
	return v.docFreq[id]
}

// Save writes the vocabulary as gzip-compressed text, one term per line:
//
//	totaldocs<TAB>size
//	id<TAB>word<TAB>docfreq
//
// The file is written to a temp path and renamed so a crashed save never
// leaves a partial artifact behind.
func (v *Vocabulary) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating vocabulary file: %w", err)
	}
	zw := gzip.NewWriter(f)
	w := bufio.NewWriter(zw)

	fmt.Fprintf(w, "%d\t%d\n", v.totalDocs, len(v.words))
	for id, word := range v.words {
		fmt.Fprintf(w, "%d\t%s\t%d\n", id, word, v.docFreq[id])
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing vocabulary: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing vocabulary file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing vocabulary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming vocabulary file: %w", err)
	}
	return nil
}

// Load reads a vocabulary written by Save. Ids must be dense in [0, size);
// violations return ErrFormat.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary file: %w", err)
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
		return nil, fmt.Errorf("%w: missing vocabulary header", apperrors.ErrFormat)
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) != 2 {
		return nil, fmt.Errorf("%w: bad vocabulary header %q", apperrors.ErrFormat, scanner.Text())
	}
	totalDocs, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad document count %q", apperrors.ErrFormat, header[0])
	}
	size, err := strconv.Atoi(header[1])
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: bad vocabulary size %q", apperrors.ErrFormat, header[1])
	}

	v := &Vocabulary{
		ids:       make(map[string]int, size),
		words:     make([]string, size),
		docFreq:   make([]int, size),
		totalDocs: totalDocs,
	}
	seen := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: bad vocabulary line %q", apperrors.ErrFormat, line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id < 0 || id >= size {
			return nil, fmt.Errorf("%w: term id %q outside [0, %d)", apperrors.ErrFormat, fields[0], size)
		}
		df, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: bad document frequency %q", apperrors.ErrFormat, fields[2])
		}
		if v.words[id] != "" {
			return nil, fmt.Errorf("%w: duplicate term id %d", apperrors.ErrFormat, id)
		}
		v.words[id] = fields[1]
		v.docFreq[id] = df
		v.ids[fields[1]] = id
		seen++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	if seen != size {
		return nil, fmt.Errorf("%w: vocabulary has %d terms, header declares %d", apperrors.ErrFormat, seen, size)
	}
	return v, nil
}
