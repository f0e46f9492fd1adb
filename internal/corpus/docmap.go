package corpus

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// Docmap maps document index to title. It is produced by the encoding pass
// alongside the bag-of-words corpus but persisted separately, since the two
// artifacts come from distinct passes and are loaded independently.
type Docmap []string

// Title returns the title of document i, or "" when unknown.
func (d Docmap) Title(i int) string {
	if i < 0 || i >= len(d) {
		return ""
	}
	return d[i]
}

// Save writes the docmap as gzip-compressed "index<TAB>title" lines, using
// the same tmp-then-rename discipline as every other artifact. Tabs and
// newlines inside titles are flattened to spaces.
func (d Docmap) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating docmap file: %w", err)
	}
	zw := gzip.NewWriter(f)
	w := bufio.NewWriter(zw)

	sanitize := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
	for i, title := range d {
		fmt.Fprintf(w, "%d\t%s\n", i, sanitize.Replace(title))
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing docmap: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing docmap file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing docmap file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming docmap file: %w", err)
	}
	return nil
}

// LoadDocmap reads a docmap written by Save. Indices must be contiguous
// from zero.
func LoadDocmap(path string) (Docmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening docmap file: %w", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not gzip-compressed", apperrors.ErrFormat, path)
	}
	defer zr.Close()

	var d Docmap
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx, title, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: bad docmap line %q", apperrors.ErrFormat, line)
		}
		i, err := strconv.Atoi(idx)
		if err != nil || i != len(d) {
			return nil, fmt.Errorf("%w: docmap index %q out of order", apperrors.ErrFormat, idx)
		}
		d = append(d, title)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading docmap: %w", err)
	}
	return d, nil
}
