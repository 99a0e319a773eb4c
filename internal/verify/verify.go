// Package verify checks a row set against a covering problem without
// trusting the generator that produced it.
package verify

import (
	"fmt"

	"lvcagen/internal/core"
)

// MaxListedUncovered caps how many uncovered combinations a report lists.
const MaxListedUncovered = 10

// Kind classifies a violation.
type Kind int

const (
	KindWidth Kind = iota
	KindPopcount
	KindUncovered
)

func (k Kind) String() string {
	switch k {
	case KindWidth:
		return "width"
	case KindPopcount:
		return "popcount"
	case KindUncovered:
		return "uncovered"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Violation is one reason a row set is not a valid covering array. Row is
// -1 for uncovered combinations.
type Violation struct {
	Kind        Kind
	Row         int
	Got         int
	Combination core.Combination
}

func (v Violation) String() string {
	switch v.Kind {
	case KindWidth:
		return fmt.Sprintf("row %d has width %d", v.Row, v.Got)
	case KindPopcount:
		return fmt.Sprintf("row %d has %d ones", v.Row, v.Got)
	default:
		return fmt.Sprintf("combination %s is not covered", v.Combination)
	}
}

// Report is the outcome of Verify.
type Report struct {
	Valid            bool
	Violations       []Violation
	CoverageFraction float64
	Uncovered        int
}

// Verify checks that every row has width n and exactly k ones, and that the
// valid rows together cover every feasible combination. Rows that fail the
// shape checks do not count towards coverage.
func Verify(rows []core.Row, p core.Params) (Report, error) {
	target, err := core.Build(p)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	cov := target.NewCoverage()
	for i, r := range rows {
		switch {
		case r.Len() != p.N:
			rep.Violations = append(rep.Violations, Violation{Kind: KindWidth, Row: i, Got: r.Len()})
		case r.Popcount() != p.K:
			rep.Violations = append(rep.Violations, Violation{Kind: KindPopcount, Row: i, Got: r.Popcount()})
		default:
			cov.MarkCovered(r)
		}
	}
	rep.CoverageFraction = cov.Fraction()
	rep.Uncovered = cov.Uncovered()
	for _, c := range cov.UncoveredCombinations(MaxListedUncovered) {
		rep.Violations = append(rep.Violations, Violation{Kind: KindUncovered, Row: -1, Combination: c})
	}
	rep.Valid = len(rep.Violations) == 0
	return rep, nil
}

// Summary renders the report on one line.
func (r Report) Summary() string {
	if r.Valid {
		return fmt.Sprintf("valid, coverage %.4f", r.CoverageFraction)
	}
	shape := 0
	for _, v := range r.Violations {
		if v.Kind != KindUncovered {
			shape++
		}
	}
	return fmt.Sprintf("invalid: %d malformed rows, %d uncovered combinations, coverage %.4f",
		shape, r.Uncovered, r.CoverageFraction)
}
