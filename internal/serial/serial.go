// Package serial provides the CSV codec for covering arrays.
//
// The layout is the one ACTS emits in CSV mode: optional '#' comment lines,
// a header naming the parameters p1..pn, then one 0/1 row per line.
package serial

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lvcagen/internal/core"
)

// ErrMalformed reports CSV content that is not a 0/1 array of the expected width.
var ErrMalformed = errors.New("malformed array csv")

// Header returns the parameter names p1..pn.
func Header(n int) []string {
	h := make([]string, n)
	for i := range h {
		h[i] = "p" + strconv.Itoa(i+1)
	}
	return h
}

// WriteRows writes a header followed by one line per row. All rows must
// have width n.
func WriteRows(w io.Writer, n int, rows []core.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(n)); err != nil {
		return err
	}
	record := make([]string, n)
	for i, r := range rows {
		if r.Len() != n {
			return fmt.Errorf("row %d has width %d, want %d", i, r.Len(), n)
		}
		for p := 0; p < n; p++ {
			if r.Get(p) {
				record[p] = "1"
			} else {
				record[p] = "0"
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows parses rows of width n. Comment lines and a non-numeric header
// line are skipped. A width of 0 accepts whatever width the first row has.
func ReadRows(r io.Reader, n int) ([]core.Row, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []core.Row
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(rows) == 0 && isHeader(record) {
			continue
		}
		vals := make([]int, len(record))
		for i, field := range record {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("%w: record %d field %d: %q is not an integer", ErrMalformed, line, i+1, field)
			}
			vals[i] = v
		}
		if n == 0 {
			n = len(vals)
		}
		if len(vals) != n {
			return nil, fmt.Errorf("%w: record %d has %d fields, want %d", ErrMalformed, line, len(vals), n)
		}
		row, err := core.RowFromInts(vals)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isHeader(record []string) bool {
	for _, field := range record {
		if _, err := strconv.Atoi(strings.TrimSpace(field)); err != nil {
			return true
		}
	}
	return false
}
