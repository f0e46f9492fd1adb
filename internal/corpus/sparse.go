// Package corpus persists sequences of sparse document vectors in a
// randomly-seekable on-disk format. A corpus file holds one binary record
// per document; a companion .idx file records each document's byte offset
// so any vector can be read without scanning the file. Corpora are written
// in one streaming pass and immutable afterwards.
package corpus

import (
	"math"
	"sort"
)

// Term is a single (term id, weight) pair. Weight is a count for
// bag-of-words corpora and a non-negative real for tf-idf or topic-space
// corpora.
type Term struct {
	ID     uint32
	Weight float64
}

// SparseVector is an id-ordered sequence of terms, one per distinct term id.
type SparseVector []Term

// SortByID orders the vector by ascending term id. Serialization is
// deterministic only for sorted vectors.
func (v SparseVector) SortByID() {
	sort.Slice(v, func(i, j int) bool { return v[i].ID < v[j].ID })
}

// L2Norm returns the Euclidean norm of the vector.
func (v SparseVector) L2Norm() float64 {
	var sum float64
	for _, t := range v {
		sum += t.Weight * t.Weight
	}
	return math.Sqrt(sum)
}

// MaxID returns the largest term id in the vector, or -1 for the empty
// vector.
func (v SparseVector) MaxID() int {
	max := -1
	for _, t := range v {
		if int(t.ID) > max {
			max = int(t.ID)
		}
	}
	return max
}
