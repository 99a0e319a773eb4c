package verify

import (
	"errors"
	"strings"
	"testing"

	"lvcagen/internal/core"
)

func TestVerifyValidArray(t *testing.T) {
	// Every row with one 1 out of four covers all of n=4, tau=2, k=1.
	rows := []core.Row{
		core.NewRow(4, []int{0}),
		core.NewRow(4, []int{1}),
		core.NewRow(4, []int{2}),
		core.NewRow(4, []int{3}),
	}
	rep, err := Verify(rows, core.Params{N: 4, Tau: 2, K: 1})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !rep.Valid || rep.CoverageFraction != 1.0 || rep.Uncovered != 0 {
		t.Fatalf("report = %+v, want valid", rep)
	}
	if !strings.HasPrefix(rep.Summary(), "valid") {
		t.Errorf("Summary() = %q", rep.Summary())
	}
}

func TestVerifySingleZeroRow(t *testing.T) {
	rep, err := Verify([]core.Row{core.NewRow(3, nil)}, core.Params{N: 3, Tau: 3, K: 0})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !rep.Valid {
		t.Fatalf("report = %+v, want valid", rep)
	}
}

func TestVerifyReportsViolations(t *testing.T) {
	rows := []core.Row{
		core.NewRow(4, []int{0}),
		core.NewRow(3, []int{1}),    // wrong width
		core.NewRow(4, []int{1, 2}), // wrong popcount
	}
	rep, err := Verify(rows, core.Params{N: 4, Tau: 2, K: 1})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rep.Valid {
		t.Fatalf("report should be invalid")
	}
	kinds := map[Kind]int{}
	for _, v := range rep.Violations {
		kinds[v.Kind]++
	}
	if kinds[KindWidth] != 1 || kinds[KindPopcount] != 1 {
		t.Errorf("violation kinds = %v", kinds)
	}
	if kinds[KindUncovered] == 0 || rep.Uncovered == 0 {
		t.Errorf("expected uncovered combinations, got %v", rep.Violations)
	}
	if rep.CoverageFraction <= 0 || rep.CoverageFraction >= 1 {
		t.Errorf("CoverageFraction = %g", rep.CoverageFraction)
	}
	if !strings.Contains(rep.Summary(), "2 malformed rows") {
		t.Errorf("Summary() = %q", rep.Summary())
	}
}

func TestVerifyCapsUncoveredList(t *testing.T) {
	rep, err := Verify(nil, core.Params{N: 8, Tau: 2, K: 3})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rep.Uncovered != 112 {
		t.Errorf("Uncovered = %d, want 112", rep.Uncovered)
	}
	if len(rep.Violations) != MaxListedUncovered {
		t.Errorf("listed %d violations, want %d", len(rep.Violations), MaxListedUncovered)
	}
	if rep.CoverageFraction != 0 {
		t.Errorf("CoverageFraction = %g, want 0", rep.CoverageFraction)
	}
}

func TestVerifyInvalidParameters(t *testing.T) {
	if _, err := Verify(nil, core.Params{N: 2, Tau: 3, K: 1}); !errors.Is(err, core.ErrInvalidParameters) {
		t.Errorf("error = %v, want ErrInvalidParameters", err)
	}
}
