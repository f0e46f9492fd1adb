package pipeline

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document is one raw record of the input dump: a title and the article
// text.
type Document struct {
	Title string
	Text  string
}

// Source is a finite, restartable stream of raw documents. The pipeline
// reads a Source twice (vocabulary pass, then encoding pass); Reset must
// rewind it to the first document. Implementations never materialize the
// whole dump.
type Source interface {
	Next() (Document, error) // io.EOF after the last document
	Reset() error
	Close() error
}

// FileSource streams a line-oriented dump file: one document per line,
// "title<TAB>text". Files ending in .bz2 or .gz are decompressed
// transparently. Reset reopens the file.
type FileSource struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
}

// OpenFile opens a dump file as a Source.
func OpenFile(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Next returns the next document. Blank lines are skipped; a line without a
// tab is treated as untitled text.
func (s *FileSource) Next() (Document, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			continue
		}
		title, text, ok := strings.Cut(line, "\t")
		if !ok {
			return Document{Text: line}, nil
		}
		return Document{Title: title, Text: text}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Document{}, fmt.Errorf("reading dump %s: %w", s.path, err)
	}
	return Document{}, io.EOF
}

// Reset reopens the dump from the beginning.
func (s *FileSource) Reset() error {
	if s.file != nil {
		s.file.Close()
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening dump %s: %w", s.path, err)
	}
	var r io.Reader = f
	switch {
	case strings.HasSuffix(s.path, ".bz2"):
		r = bzip2.NewReader(f)
	case strings.HasSuffix(s.path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("opening gzip dump %s: %w", s.path, err)
		}
		r = zr
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	s.file = f
	s.scanner = scanner
	return nil
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
