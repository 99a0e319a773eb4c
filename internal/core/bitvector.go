package core

import (
	"math/bits"
)

// BitVector provides basic bit manipulation capabilities.
// Coverage state and the feasibility mask are both stored in one.
type BitVector struct {
	bits []uint64
	size uint64 // Number of bits stored
}

// NewBitVector creates a bit vector initialized to zero for a given size.
func NewBitVector(size uint64) *BitVector {
	return &BitVector{
		bits: make([]uint64, numWords(size)),
		size: size,
	}
}

func numWords(size uint64) uint64 {
	return (size + 63) / 64
}

// Size returns the number of bits the vector conceptually holds.
func (bv *BitVector) Size() uint64 {
	return bv.size
}

// Set sets the bit at the given position to 1.
func (bv *BitVector) Set(pos uint64) {
	if pos >= bv.size {
		panic("BitVector.Set: position out of bounds")
	}
	bv.bits[pos/64] |= 1 << (pos % 64)
}

// Get returns true if the bit at the given position is 1.
func (bv *BitVector) Get(pos uint64) bool {
	if pos >= bv.size {
		panic("BitVector.Get: position out of bounds")
	}
	return bv.bits[pos/64]&(1<<(pos%64)) != 0
}

// TestAndSet sets the bit and reports whether it was previously unset.
func (bv *BitVector) TestAndSet(pos uint64) bool {
	if pos >= bv.size {
		panic("BitVector.TestAndSet: position out of bounds")
	}
	w, m := pos/64, uint64(1)<<(pos%64)
	if bv.bits[w]&m != 0 {
		return false
	}
	bv.bits[w] |= m
	return true
}

// NthSetAndNot returns the position of the nth (0-based) bit that is set in
// bv and unset in mask. ok is false if fewer than n+1 such bits exist.
func (bv *BitVector) NthSetAndNot(mask *BitVector, n uint64) (pos uint64, ok bool) {
	for i, w := range bv.bits {
		if mask != nil {
			w &^= mask.bits[i]
		}
		c := uint64(bits.OnesCount64(w))
		if n >= c {
			n -= c
			continue
		}
		for ; n > 0; n-- {
			w &= w - 1 // drop lowest set bit
		}
		return uint64(i)*64 + uint64(bits.TrailingZeros64(w)), true
	}
	return 0, false
}
