package experiment

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gonum.org/v1/gonum/stat"

	"lvcagen/internal/generator"
)

// Summary describes a Run. Records holds the latest record of every unit
// of the requested cases, including units finished by earlier runs.
type Summary struct {
	Records     []Record
	Skipped     int
	Adopted     int
	Interrupted bool
}

// AlgorithmStats aggregates the records of one algorithm.
type AlgorithmStats struct {
	Algorithm   string
	Completed   int
	TimedOut    int
	Failed      int
	MeanRows    float64 // Over completed units
	MeanSeconds float64 // Over all units
}

// finish replaces Records with the latest record per unit of cases, given
// the records that existed before this run.
func (s *Summary) finish(prior []Record, cases []Case) *Summary {
	wanted := make(map[string]bool, len(cases))
	for _, c := range cases {
		wanted[c.ID()] = true
	}
	type unit struct{ id, alg string }
	latest := make(map[unit]int)
	var out []Record
	for _, rec := range append(prior, s.Records...) {
		id := rec.Case().ID()
		if !wanted[id] {
			continue
		}
		u := unit{id, rec.Algorithm}
		if i, ok := latest[u]; ok {
			out[i] = rec
			continue
		}
		latest[u] = len(out)
		out = append(out, rec)
	}
	s.Records = out
	return s
}

// Stats returns per-algorithm aggregates in the standard algorithm order.
func (s *Summary) Stats() []AlgorithmStats {
	var stats []AlgorithmStats
	for _, alg := range generator.Algorithms() {
		st := AlgorithmStats{Algorithm: alg}
		var rows, secs []float64
		for _, rec := range s.Records {
			if rec.Algorithm != alg {
				continue
			}
			secs = append(secs, rec.ElapsedSeconds)
			switch rec.Status {
			case StatusCompleted:
				st.Completed++
				rows = append(rows, float64(rec.RowsGenerated))
			case StatusTimedOut:
				st.TimedOut++
			case StatusFailed:
				st.Failed++
			}
		}
		if len(secs) == 0 {
			continue
		}
		if len(rows) > 0 {
			st.MeanRows = stat.Mean(rows, nil)
		}
		st.MeanSeconds = stat.Mean(secs, nil)
		stats = append(stats, st)
	}
	return stats
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	completedStyle = cellStyle.Foreground(lipgloss.Color("#2CD7C7"))
	timedOutStyle  = cellStyle.Foreground(lipgloss.Color("#F4D03F"))
	failedStyle    = cellStyle.Foreground(lipgloss.Color("#E74C3C"))
	borderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#16858E"))
)

// Render writes the per-unit table followed by the per-algorithm table.
func (s *Summary) Render(w io.Writer) error {
	units := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("case", "algorithm", "status", "rows", "seconds", "coverage")
	statusCol := 2
	for _, rec := range s.Records {
		units.Row(
			rec.Case().ID(),
			rec.Algorithm,
			string(rec.Status),
			strconv.Itoa(rec.RowsGenerated),
			strconv.FormatFloat(rec.ElapsedSeconds, 'f', 3, 64),
			strconv.FormatFloat(rec.CoverageFraction, 'f', 4, 64),
		)
	}
	units.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == statusCol && row >= 0 && row < len(s.Records) {
			switch s.Records[row].Status {
			case StatusCompleted:
				return completedStyle
			case StatusTimedOut:
				return timedOutStyle
			default:
				return failedStyle
			}
		}
		return cellStyle
	})

	algs := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("algorithm", "completed", "timed out", "failed", "mean rows", "mean seconds")
	for _, st := range s.Stats() {
		algs.Row(
			st.Algorithm,
			strconv.Itoa(st.Completed),
			strconv.Itoa(st.TimedOut),
			strconv.Itoa(st.Failed),
			strconv.FormatFloat(st.MeanRows, 'f', 2, 64),
			strconv.FormatFloat(st.MeanSeconds, 'f', 3, 64),
		)
	}
	algs.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})

	footer := fmt.Sprintf("%d units, %d skipped as already done", len(s.Records), s.Skipped)
	if s.Adopted > 0 {
		footer += fmt.Sprintf(", %d adopted from the result store", s.Adopted)
	}
	if s.Interrupted {
		footer += " (interrupted)"
	}
	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, units.Render(), algs.Render(), footer))
	return err
}
