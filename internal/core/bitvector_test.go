package core

import (
	"math/rand"
	"testing"
)

func TestBitVectorBasic(t *testing.T) {
	size := uint64(100)
	bv := NewBitVector(size)

	if bv.Size() != size {
		t.Fatalf("Expected size %d, got %d", size, bv.Size())
	}

	// Check initial state (all zeros)
	for i := uint64(0); i < size; i++ {
		if bv.Get(i) {
			t.Errorf("Bit %d should be 0 initially", i)
		}
	}

	bv.Set(0)
	bv.Set(10)
	bv.Set(63)
	bv.Set(64)
	bv.Set(99)

	for _, p := range []uint64{0, 10, 63, 64, 99} {
		if !bv.Get(p) {
			t.Errorf("Bit %d should be set", p)
		}
	}
	if bv.Get(65) {
		t.Errorf("Bit 65 should not be set")
	}
	if got, ok := bv.NthSetAndNot(nil, 4); !ok || got != 99 {
		t.Errorf("NthSetAndNot(nil, 4) = %d,%t, want 99,true", got, ok)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Get out of bounds should panic")
		}
	}()
	_ = bv.Get(100)
}

func TestBitVectorTestAndSet(t *testing.T) {
	bv := NewBitVector(70)
	if !bv.TestAndSet(66) {
		t.Fatalf("first TestAndSet(66) should report a change")
	}
	if bv.TestAndSet(66) {
		t.Fatalf("second TestAndSet(66) should report no change")
	}
	if !bv.Get(66) {
		t.Fatalf("bit 66 should be set")
	}
}

func TestBitVectorNthSetAndNot(t *testing.T) {
	size := uint64(200)
	bv := NewBitVector(size)
	mask := NewBitVector(size)
	rng := rand.New(rand.NewSource(7))

	var want []uint64
	for i := uint64(0); i < size; i++ {
		if rng.Intn(3) == 0 {
			bv.Set(i)
			if rng.Intn(2) == 0 {
				mask.Set(i)
			} else {
				want = append(want, i)
			}
		}
	}

	for n, w := range want {
		got, ok := bv.NthSetAndNot(mask, uint64(n))
		if !ok || got != w {
			t.Fatalf("NthSetAndNot(%d) = %d,%t, want %d,true", n, got, ok, w)
		}
	}
	if _, ok := bv.NthSetAndNot(mask, uint64(len(want))); ok {
		t.Errorf("NthSetAndNot past the end should fail")
	}
}
