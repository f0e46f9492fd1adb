package corpus

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
)

// On-disk layout. The data file is a fixed header followed by one
// length-prefixed record per document. The index file carries the byte
// offset of every record plus a crc32 footer over the offset table.
const (
	DataMagic     uint32 = 0x54505643 // "TPVC"
	IndexMagic    uint32 = 0x54505649 // "TPVI"
	FormatVersion uint32 = 1
	headerSize           = 24
)

// IndexPath returns the companion index file path for a corpus data file.
func IndexPath(dataPath string) string {
	return dataPath + ".idx"
}

// Writer streams sparse vectors into a new corpus file, recording offsets
// for the companion index as it goes. Both files are written under .tmp
// names and renamed on Close, so an aborted build never leaves output that
// could be mistaken for a complete corpus.
type Writer struct {
	path      string
	file      *os.File
	buf       *bufio.Writer
	vocabSize uint32
	offsets   []int64
	written   int64
	closed    bool
}

// NewWriter creates a corpus writer. vocabSize declares the vector-space
// dimensionality stored in the header; every appended term id must be below
// it.
func NewWriter(path string, vocabSize int) (*Writer, error) {
	if vocabSize <= 0 {
		return nil, fmt.Errorf("vocab size must be positive, got %d", vocabSize)
	}
	f, err := os.Create(path + ".tmp")
	if err != nil {
		return nil, fmt.Errorf("creating corpus file: %w", err)
	}
	w := &Writer{
		path:      path,
		file:      f,
		buf:       bufio.NewWriterSize(f, 1<<20),
		vocabSize: uint32(vocabSize),
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], DataMagic)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	// doc count at [8:12] is patched on Close.
	binary.LittleEndian.PutUint32(header[12:16], w.vocabSize)
	if _, err := w.buf.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing corpus header: %w", err)
	}
	w.written = headerSize
	return w, nil
}

// Append writes one document vector. Vectors are stored in append order;
// the document index of the written vector is the number of vectors written
// before it.
func (w *Writer) Append(vec SparseVector) error {
	if w.closed {
		return fmt.Errorf("corpus writer already closed")
	}
	for _, t := range vec {
		if t.ID >= w.vocabSize {
			return fmt.Errorf("term id %d exceeds vocab size %d", t.ID, w.vocabSize)
		}
	}
	w.offsets = append(w.offsets, w.written)

	record := make([]byte, 4+len(vec)*12)
	binary.LittleEndian.PutUint32(record[0:4], uint32(len(vec)))
	pos := 4
	for _, t := range vec {
		binary.LittleEndian.PutUint32(record[pos:pos+4], t.ID)
		binary.LittleEndian.PutUint64(record[pos+4:pos+12], math.Float64bits(t.Weight))
		pos += 12
	}
	if _, err := w.buf.Write(record); err != nil {
		return fmt.Errorf("writing corpus record: %w", err)
	}
	w.written += int64(len(record))
	return nil
}

// DocCount returns the number of vectors appended so far.
func (w *Writer) DocCount() int { return len(w.offsets) }

// Close patches the document count into the header, writes the index file,
// and atomically renames both into place (index first, so a visible data
// file always has its index).
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flushing corpus file: %w", err)
	}
	countBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBytes, uint32(len(w.offsets)))
	if _, err := w.file.WriteAt(countBytes, 8); err != nil {
		w.file.Close()
		return fmt.Errorf("patching corpus header: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("syncing corpus file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing corpus file: %w", err)
	}

	if err := w.writeIndex(); err != nil {
		return err
	}
	if err := os.Rename(IndexPath(w.path)+".tmp", IndexPath(w.path)); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	if err := os.Rename(w.path+".tmp", w.path); err != nil {
		return fmt.Errorf("renaming corpus file: %w", err)
	}
	return nil
}

// Abort removes the temporary files of an unfinished corpus.
func (w *Writer) Abort() {
	if !w.closed {
		w.closed = true
		w.file.Close()
	}
	os.Remove(w.path + ".tmp")
	os.Remove(IndexPath(w.path) + ".tmp")
}

func (w *Writer) writeIndex() error {
	f, err := os.Create(IndexPath(w.path) + ".tmp")
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}

	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:4], IndexMagic)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(w.offsets)))

	table := make([]byte, len(w.offsets)*8)
	for i, off := range w.offsets {
		binary.LittleEndian.PutUint64(table[i*8:i*8+8], uint64(off))
	}
	footer := make([]byte, 4)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(table))

	for _, chunk := range [][]byte{header, table, footer} {
		if _, err := f.Write(chunk); err != nil {
			f.Close()
			return fmt.Errorf("writing index file: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	return nil
}
