package corpus

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

// Reader provides O(1) random access to the vectors of a stored corpus via
// the companion offset index. Readers are safe for concurrent use: every
// read is a positioned ReadAt on the shared file handle.
type Reader struct {
	file      *os.File
	path      string
	docCount  int
	vocabSize int
	offsets   []int64
}

// Open opens a corpus data file and its companion index, validating magic
// bytes, version, the crc of the offset table, and that the two files agree
// on the document count.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: corpus header unreadable: %v", apperrors.ErrFormat, err)
	}
	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != DataMagic {
		f.Close()
		return nil, fmt.Errorf("%w: bad corpus magic %08x", apperrors.ErrFormat, magic)
	}
	if version := binary.LittleEndian.Uint32(header[4:8]); version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("%w: unsupported corpus version %d", apperrors.ErrFormat, version)
	}
	docCount := int(binary.LittleEndian.Uint32(header[8:12]))
	vocabSize := int(binary.LittleEndian.Uint32(header[12:16]))

	offsets, err := readIndex(IndexPath(path), docCount)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reader{
		file:      f,
		path:      path,
		docCount:  docCount,
		vocabSize: vocabSize,
		offsets:   offsets,
	}, nil
}

// Len returns the number of documents in the corpus.
func (r *Reader) Len() int { return r.docCount }

// VocabSize returns the declared vector-space dimensionality.
func (r *Reader) VocabSize() int { return r.vocabSize }

// Path returns the data file path this reader was opened from.
func (r *Reader) Path() string { return r.path }

// Vector reads the sparse vector of document i by seeking to its recorded
// offset. Term ids at or above the declared vocab size return ErrFormat.
func (r *Reader) Vector(i int) (SparseVector, error) {
	if i < 0 || i >= r.docCount {
		return nil, fmt.Errorf("document index %d outside [0, %d)", i, r.docCount)
	}
	var lenBuf [4]byte
	if _, err := r.file.ReadAt(lenBuf[:], r.offsets[i]); err != nil {
		return nil, fmt.Errorf("%w: record %d unreadable: %v", apperrors.ErrFormat, i, err)
	}
	nnz := int(binary.LittleEndian.Uint32(lenBuf[:]))
	if nnz > r.vocabSize {
		return nil, fmt.Errorf("%w: record %d declares %d terms with vocab size %d",
			apperrors.ErrFormat, i, nnz, r.vocabSize)
	}
	body := make([]byte, nnz*12)
	if _, err := r.file.ReadAt(body, r.offsets[i]+4); err != nil {
		return nil, fmt.Errorf("%w: record %d truncated: %v", apperrors.ErrFormat, i, err)
	}

	vec := make(SparseVector, nnz)
	for j := 0; j < nnz; j++ {
		id := binary.LittleEndian.Uint32(body[j*12 : j*12+4])
		if int(id) >= r.vocabSize {
			return nil, fmt.Errorf("%w: record %d term id %d exceeds vocab size %d",
				apperrors.ErrFormat, i, id, r.vocabSize)
		}
		vec[j] = Term{
			ID:     id,
			Weight: math.Float64frombits(binary.LittleEndian.Uint64(body[j*12+4 : j*12+12])),
		}
	}
	return vec, nil
}

// Vectors returns a restartable iterator over the corpus in document order.
// Iteration never materializes more than one vector at a time.
func (r *Reader) Vectors() *Iterator {
	return &Iterator{reader: r}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Iterator streams a corpus one document at a time.
type Iterator struct {
	reader *Reader
	next   int
}

// Next returns the next vector, or io.EOF after the last document.
func (it *Iterator) Next() (SparseVector, error) {
	if it.next >= it.reader.docCount {
		return nil, io.EOF
	}
	vec, err := it.reader.Vector(it.next)
	if err != nil {
		return nil, err
	}
	it.next++
	return vec, nil
}

// Index returns the document index the iterator will read next.
func (it *Iterator) Index() int { return it.next }

// Reset rewinds the iterator to the first document.
func (it *Iterator) Reset() { it.next = 0 }

func readIndex(path string, wantDocs int) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus index missing: %v", apperrors.ErrFormat, err)
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: corpus index truncated", apperrors.ErrFormat)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != IndexMagic {
		return nil, fmt.Errorf("%w: bad index magic %08x", apperrors.ErrFormat, magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported index version %d", apperrors.ErrFormat, version)
	}
	docCount := int(binary.LittleEndian.Uint32(data[8:12]))
	if docCount != wantDocs {
		return nil, fmt.Errorf("%w: index has %d documents, corpus header declares %d",
			apperrors.ErrFormat, docCount, wantDocs)
	}
	if len(data) != 12+docCount*8+4 {
		return nil, fmt.Errorf("%w: corpus index has wrong length %d", apperrors.ErrFormat, len(data))
	}

	table := data[12 : 12+docCount*8]
	want := binary.LittleEndian.Uint32(data[len(data)-4:])
	if got := crc32.ChecksumIEEE(table); got != want {
		return nil, fmt.Errorf("%w: index checksum mismatch (got %08x, want %08x)",
			apperrors.ErrFormat, got, want)
	}

	offsets := make([]int64, docCount)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(table[i*8 : i*8+8]))
	}
	return offsets, nil
}
