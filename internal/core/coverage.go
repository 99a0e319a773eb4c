package core

import (
	"fmt"
	"math"
	"math/bits"
	"math/rand"

	"gonum.org/v1/gonum/stat/combin"
)

// MaxSlots bounds C(n,tau)*2^tau. A Target holds two bits per slot plus
// tau positions per subset, and a Counter four bytes per slot, so the cap
// keeps one case well under half a gigabyte.
const MaxSlots = 1 << 24

// Combination is a choice of tau positions plus a value for each.
// Bit j of Assignment is the value at Positions[j].
type Combination struct {
	Positions  []int
	Assignment uint64
}

// Ones returns the number of ones in the assignment.
func (c Combination) Ones() int {
	return bits.OnesCount64(c.Assignment)
}

// String renders the combination as {p0=v0,p1=v1,...}.
func (c Combination) String() string {
	s := "{"
	for j, p := range c.Positions {
		if j > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d=%d", p, (c.Assignment>>uint(j))&1)
	}
	return s + "}"
}

// IsFeasible reports whether an assignment with the given number of ones
// over tau positions extends to at least one row with exactly k ones.
func IsFeasible(p Params, ones int) bool {
	rest := p.K - ones
	return rest >= 0 && rest <= p.N-p.Tau
}

// Target is the set of feasible tau-way combinations for one (n, tau, k).
// Slots are laid out as subset<<tau | assignment, with subsets in the
// lexicographic order of combin.NewCombinationGenerator.
type Target struct {
	params      Params
	numSubsets  int
	positions   []int // numSubsets*tau, subset i at [i*tau, (i+1)*tau)
	feasible    *BitVector
	numFeasible int
}

// Build enumerates the coverage target for p.
func Build(p Params) (*Target, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	logSlots := combin.LogGeneralizedBinomial(float64(p.N), float64(p.Tau)) + float64(p.Tau)*math.Ln2
	if logSlots > math.Log(MaxSlots) {
		return nil, InvalidParametersError{Params: p, Msg: fmt.Sprintf("slot space exceeds %d entries", MaxSlots)}
	}

	numSubsets := combin.Binomial(p.N, p.Tau)
	positions := make([]int, 0, numSubsets*p.Tau)
	gen := combin.NewCombinationGenerator(p.N, p.Tau)
	for gen.Next() {
		positions = append(positions, gen.Combination(nil)...)
	}
	width := uint64(1) << uint(p.Tau)
	t := &Target{
		params:     p,
		numSubsets: numSubsets,
		positions:  positions,
		feasible:   NewBitVector(uint64(numSubsets) * width),
	}

	// Feasibility depends only on the popcount of the assignment.
	var feasibleAssignments []uint64
	for a := uint64(0); a < width; a++ {
		if IsFeasible(p, bits.OnesCount64(a)) {
			feasibleAssignments = append(feasibleAssignments, a)
		}
	}
	for s := 0; s < numSubsets; s++ {
		base := uint64(s) << uint(p.Tau)
		for _, a := range feasibleAssignments {
			t.feasible.Set(base | a)
		}
	}
	t.numFeasible = numSubsets * len(feasibleAssignments)
	return t, nil
}

// Params returns the parameters the target was built for.
func (t *Target) Params() Params {
	return t.params
}

// Size returns the number of feasible combinations.
func (t *Target) Size() int {
	return t.numFeasible
}

// TotalSlots returns C(n,tau)*2^tau.
func (t *Target) TotalSlots() int {
	return int(t.feasible.Size())
}

// NumSubsets returns C(n,tau).
func (t *Target) NumSubsets() int {
	return t.numSubsets
}

// Subset returns the positions of subset i. The slice must not be modified.
func (t *Target) Subset(i int) []int {
	tau := t.params.Tau
	return t.positions[i*tau : (i+1)*tau : (i+1)*tau]
}

// IsFeasible reports whether the assignment over subset i is in the target.
func (t *Target) IsFeasible(subset int, assignment uint64) bool {
	return t.feasible.Get(t.slot(subset, assignment))
}

// IsValidRow reports whether r has width n and exactly k ones.
func (t *Target) IsValidRow(r Row) bool {
	return r.Len() == t.params.N && r.Popcount() == t.params.K
}

// Combination decodes a slot. Positions aliases the target and must not be
// modified.
func (t *Target) Combination(slot uint64) Combination {
	s := slot >> uint(t.params.Tau)
	a := slot & (uint64(1)<<uint(t.params.Tau) - 1)
	return Combination{Positions: t.Subset(int(s)), Assignment: a}
}

func (t *Target) slot(subset int, assignment uint64) uint64 {
	return uint64(subset)<<uint(t.params.Tau) | assignment
}

// forEachSlot calls fn with the slot of every subset's induced assignment
// in r, skipping infeasible ones.
func (t *Target) forEachSlot(r Row, fn func(slot uint64)) {
	for s := 0; s < t.numSubsets; s++ {
		slot := t.slot(s, r.Assignment(t.Subset(s)))
		if t.feasible.Get(slot) {
			fn(slot)
		}
	}
}

// NewCoverage returns an empty coverage state for the target.
func (t *Target) NewCoverage() *Coverage {
	return &Coverage{target: t, covered: NewBitVector(t.feasible.Size())}
}

// Coverage records which feasible combinations some row has covered.
// Bits only ever flip from uncovered to covered.
type Coverage struct {
	target  *Target
	covered *BitVector
	count   int
}

// IsCovered reports whether the combination at the given subset and
// assignment has been covered.
func (c *Coverage) IsCovered(subset int, assignment uint64) bool {
	return c.covered.Get(c.target.slot(subset, assignment))
}

// MarkCovered marks every feasible combination induced by r and returns how
// many were newly covered.
func (c *Coverage) MarkCovered(r Row) int {
	added := 0
	c.target.forEachSlot(r, func(slot uint64) {
		if c.covered.TestAndSet(slot) {
			added++
		}
	})
	c.count += added
	return added
}

// Gain returns how many uncovered combinations r would cover.
func (c *Coverage) Gain(r Row) int {
	gain := 0
	c.target.forEachSlot(r, func(slot uint64) {
		if !c.covered.Get(slot) {
			gain++
		}
	})
	return gain
}

// Covered returns the number of covered feasible combinations.
func (c *Coverage) Covered() int {
	return c.count
}

// Uncovered returns the number of feasible combinations not yet covered.
func (c *Coverage) Uncovered() int {
	return c.target.numFeasible - c.count
}

// Complete reports whether every feasible combination is covered.
func (c *Coverage) Complete() bool {
	return c.count == c.target.numFeasible
}

// Fraction returns covered/feasible. An empty target is fully covered.
func (c *Coverage) Fraction() float64 {
	if c.target.numFeasible == 0 {
		return 1.0
	}
	return float64(c.count) / float64(c.target.numFeasible)
}

// RandomUncovered picks a uniformly random uncovered combination.
func (c *Coverage) RandomUncovered(rng *rand.Rand) (Combination, bool) {
	u := c.Uncovered()
	if u == 0 {
		return Combination{}, false
	}
	slot, ok := c.target.feasible.NthSetAndNot(c.covered, uint64(rng.Intn(u)))
	if !ok {
		return Combination{}, false
	}
	return c.target.Combination(slot), true
}

// UncoveredCombinations lists up to limit uncovered combinations in slot
// order. A negative limit lists all of them.
func (c *Coverage) UncoveredCombinations(limit int) []Combination {
	var out []Combination
	for i := 0; limit < 0 || i < limit; i++ {
		slot, ok := c.target.feasible.NthSetAndNot(c.covered, uint64(i))
		if !ok {
			break
		}
		out = append(out, c.target.Combination(slot))
	}
	return out
}

// NewCounter returns an empty multiplicity counter for the target.
func (t *Target) NewCounter() *Counter {
	return &Counter{target: t, counts: make([]int32, t.feasible.Size())}
}

// Counter tracks how many rows cover each feasible combination, so rows can
// be removed as well as added.
type Counter struct {
	target  *Target
	counts  []int32
	covered int
}

// Add counts r and returns how many combinations became covered.
func (c *Counter) Add(r Row) int {
	added := 0
	c.target.forEachSlot(r, func(slot uint64) {
		c.counts[slot]++
		if c.counts[slot] == 1 {
			added++
		}
	})
	c.covered += added
	return added
}

// Remove uncounts r and returns how many combinations became uncovered.
// r must previously have been added.
func (c *Counter) Remove(r Row) int {
	lost := 0
	c.target.forEachSlot(r, func(slot uint64) {
		c.counts[slot]--
		if c.counts[slot] == 0 {
			lost++
		}
	})
	c.covered -= lost
	return lost
}

// Uncovered returns the number of feasible combinations with zero count.
func (c *Counter) Uncovered() int {
	return c.target.numFeasible - c.covered
}

// Fraction returns covered/feasible. An empty target is fully covered.
func (c *Counter) Fraction() float64 {
	if c.target.numFeasible == 0 {
		return 1.0
	}
	return float64(c.covered) / float64(c.target.numFeasible)
}

// LowerBound returns a counting lower bound on the number of rows needed to
// cover the target. A row with exactly k ones covers C(k,j)*C(n-k,tau-j) of
// the C(n,tau)*C(tau,j) feasible combinations that have j ones.
func LowerBound(p Params) int {
	if p.Validate() != nil {
		return 0
	}
	lb := 0
	subsets := combin.Binomial(p.N, p.Tau)
	for j := 0; j <= p.Tau; j++ {
		if !IsFeasible(p, j) {
			continue
		}
		need := subsets * combin.Binomial(p.Tau, j)
		per := combin.Binomial(p.K, j) * combin.Binomial(p.N-p.K, p.Tau-j)
		if b := (need + per - 1) / per; b > lb {
			lb = b
		}
	}
	return lb
}
