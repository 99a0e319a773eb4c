package core

import (
	"fmt"
	"math/rand"
)

// RandomRow draws a uniformly random row of width n with exactly k ones.
func RandomRow(n, k int, rng *rand.Rand) Row {
	if k < 0 || k > n {
		panic(fmt.Sprintf("RandomRow: k=%d out of range for n=%d", k, n))
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	// Partial Fisher-Yates: the first k entries become the ones.
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return NewRow(n, perm[:k])
}

// RowFromCombination builds a row with exactly k ones that realizes c. The
// ones not fixed by c are placed uniformly among the remaining positions.
// c must be feasible for (n, len(c.Positions), k).
func RowFromCombination(n, k int, c Combination, rng *rand.Rand) Row {
	fixed := make(map[int]bool, len(c.Positions))
	ones := make([]int, 0, k)
	for j, p := range c.Positions {
		fixed[p] = true
		if (c.Assignment>>uint(j))&1 == 1 {
			ones = append(ones, p)
		}
	}
	rest := k - len(ones)
	free := make([]int, 0, n-len(c.Positions))
	for p := 0; p < n; p++ {
		if !fixed[p] {
			free = append(free, p)
		}
	}
	if rest < 0 || rest > len(free) {
		panic(fmt.Sprintf("RowFromCombination: %v is infeasible for n=%d k=%d", c, n, k))
	}
	for i := 0; i < rest; i++ {
		j := i + rng.Intn(len(free)-i)
		free[i], free[j] = free[j], free[i]
		ones = append(ones, free[i])
	}
	return NewRow(n, ones)
}

// NeighborIterator lazily yields every row reachable from a base row by
// swapping one 1 with one 0. Moves are ordered by the position of the
// cleared 1, then the position of the set 0.
type NeighborIterator struct {
	base  Row
	ones  []int
	zeros []int
	next  int
}

// Neighbors returns an iterator over the single-swap neighbors of r.
func Neighbors(r Row) *NeighborIterator {
	return &NeighborIterator{base: r, ones: r.Ones(), zeros: r.Zeros()}
}

// Len returns the total number of neighbors, k*(n-k).
func (it *NeighborIterator) Len() int {
	return len(it.ones) * len(it.zeros)
}

// HasNext returns true if there are more neighbors.
func (it *NeighborIterator) HasNext() bool {
	return it.next < it.Len()
}

// Next returns the next neighbor.
func (it *NeighborIterator) Next() Row {
	if !it.HasNext() {
		panic("NeighborIterator.Next called past end")
	}
	r := it.at(it.next)
	it.next++
	return r
}

func (it *NeighborIterator) at(i int) Row {
	nz := len(it.zeros)
	return it.base.swap(it.ones[i/nz], it.zeros[i%nz])
}

// NeighborAt returns the i-th neighbor of r in iterator order.
func NeighborAt(r Row, i int) Row {
	it := Neighbors(r)
	if i < 0 || i >= it.Len() {
		panic(fmt.Sprintf("NeighborAt: index %d out of range [0,%d)", i, it.Len()))
	}
	return it.at(i)
}

// RandomNeighbor draws one single-swap neighbor of r uniformly. ok is false
// when r has no neighbors (k == 0 or k == n).
func RandomNeighbor(r Row, rng *rand.Rand) (Row, bool) {
	it := Neighbors(r)
	if it.Len() == 0 {
		return Row{}, false
	}
	return it.at(rng.Intn(it.Len())), true
}
