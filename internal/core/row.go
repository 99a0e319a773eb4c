package core

import (
	"fmt"
	"math/bits"
	"strings"
)

// Row is an immutable n-bit test row. Position p is stored at bit p%64 of
// word p/64.
type Row struct {
	words []uint64
	n     int
}

// NewRow builds a row of width n with ones at the given positions.
func NewRow(n int, ones []int) Row {
	r := Row{words: make([]uint64, numWords(uint64(n))), n: n}
	for _, p := range ones {
		if p < 0 || p >= n {
			panic(fmt.Sprintf("NewRow: position %d out of range for width %d", p, n))
		}
		r.words[p/64] |= 1 << (uint(p) % 64)
	}
	return r
}

// RowFromInts converts a 0/1 slice into a Row.
func RowFromInts(vals []int) (Row, error) {
	ones := make([]int, 0, len(vals))
	for i, v := range vals {
		switch v {
		case 0:
		case 1:
			ones = append(ones, i)
		default:
			return Row{}, fmt.Errorf("position %d: value %d is not binary", i, v)
		}
	}
	return NewRow(len(vals), ones), nil
}

// Len returns the row width n.
func (r Row) Len() int {
	return r.n
}

// Get returns true if position p is 1.
func (r Row) Get(p int) bool {
	return r.words[p/64]&(1<<(uint(p)%64)) != 0
}

// Popcount returns the number of ones.
func (r Row) Popcount() int {
	c := 0
	for _, w := range r.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Ones returns the positions holding 1, ascending.
func (r Row) Ones() []int {
	out := make([]int, 0, r.Popcount())
	for i, w := range r.words {
		for w != 0 {
			out = append(out, i*64+bits.TrailingZeros64(w))
			w &= w - 1
		}
	}
	return out
}

// Zeros returns the positions holding 0, ascending.
func (r Row) Zeros() []int {
	out := make([]int, 0, r.n-r.Popcount())
	for p := 0; p < r.n; p++ {
		if !r.Get(p) {
			out = append(out, p)
		}
	}
	return out
}

// Assignment returns the bits of r at the given positions: bit j of the
// result is the value at positions[j].
func (r Row) Assignment(positions []int) uint64 {
	var a uint64
	for j, p := range positions {
		if r.Get(p) {
			a |= 1 << uint(j)
		}
	}
	return a
}

// swap returns a copy of r with position one cleared and position zero set.
func (r Row) swap(one, zero int) Row {
	cp := make([]uint64, len(r.words))
	copy(cp, r.words)
	cp[one/64] &^= 1 << (uint(one) % 64)
	cp[zero/64] |= 1 << (uint(zero) % 64)
	return Row{words: cp, n: r.n}
}

// Equal reports whether both rows have the same width and bits.
func (r Row) Equal(other Row) bool {
	if r.n != other.n {
		return false
	}
	for i, w := range r.words {
		if w != other.words[i] {
			return false
		}
	}
	return true
}

// Less orders rows by their encoding read left to right (position 0 most
// significant). Rows of different width order by width.
func (r Row) Less(other Row) bool {
	if r.n != other.n {
		return r.n < other.n
	}
	for i, w := range r.words {
		x := w ^ other.words[i]
		if x == 0 {
			continue
		}
		lowest := x & -x
		return w&lowest == 0
	}
	return false
}

// String renders the row as a string of 0s and 1s.
func (r Row) String() string {
	var sb strings.Builder
	sb.Grow(r.n)
	for p := 0; p < r.n; p++ {
		if r.Get(p) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
