package core

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// RowKey is a 64-bit fingerprint of a row, used to detect duplicates.
type RowKey uint64

// Key computes the xxHash fingerprint of the row words and width.
func (r Row) Key() RowKey {
	return hashWords(r.words, uint64(r.n))
}

// hashWords hashes little-endian words, seeded with the width so rows of
// different widths never share a key by construction of the input alone.
func hashWords(words []uint64, seed uint64) RowKey {
	buf := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(buf)
	return RowKey(d.Sum64())
}

// RowSet tracks distinct rows by key. Key collisions fall back to a full
// comparison.
type RowSet struct {
	rows map[RowKey][]Row
	size int
}

// NewRowSet creates an empty set.
func NewRowSet() *RowSet {
	return &RowSet{rows: make(map[RowKey][]Row)}
}

// Contains reports whether an equal row is in the set.
func (s *RowSet) Contains(r Row) bool {
	for _, o := range s.rows[r.Key()] {
		if o.Equal(r) {
			return true
		}
	}
	return false
}

// Add inserts r and reports whether it was absent.
func (s *RowSet) Add(r Row) bool {
	k := r.Key()
	for _, o := range s.rows[k] {
		if o.Equal(r) {
			return false
		}
	}
	s.rows[k] = append(s.rows[k], r)
	s.size++
	return true
}

// Remove deletes r and reports whether it was present.
func (s *RowSet) Remove(r Row) bool {
	k := r.Key()
	bucket := s.rows[k]
	for i, o := range bucket {
		if o.Equal(r) {
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(s.rows, k)
			} else {
				s.rows[k] = bucket
			}
			s.size--
			return true
		}
	}
	return false
}

// Len returns the number of distinct rows.
func (s *RowSet) Len() int {
	return s.size
}
