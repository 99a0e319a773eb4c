package experiment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

var resultHeader = []string{
	"n", "tau", "k", "seed", "algorithm",
	"rows_generated", "elapsed_seconds", "status", "coverage_fraction",
}

// Record is one line of the result store.
type Record struct {
	N                int
	Tau              int
	K                int
	Seed             int64
	Algorithm        string
	RowsGenerated    int
	ElapsedSeconds   float64
	Status           Status
	CoverageFraction float64
}

// Case returns the case the record belongs to.
func (r Record) Case() Case {
	return Case{N: r.N, Tau: r.Tau, K: r.K, Seed: r.Seed}
}

func (r Record) fields() []string {
	return []string{
		strconv.Itoa(r.N),
		strconv.Itoa(r.Tau),
		strconv.Itoa(r.K),
		strconv.FormatInt(r.Seed, 10),
		r.Algorithm,
		strconv.Itoa(r.RowsGenerated),
		strconv.FormatFloat(r.ElapsedSeconds, 'f', 6, 64),
		string(r.Status),
		strconv.FormatFloat(r.CoverageFraction, 'f', 6, 64),
	}
}

func parseRecord(fields []string) (Record, error) {
	if len(fields) != len(resultHeader) {
		return Record{}, fmt.Errorf("%d fields, want %d", len(fields), len(resultHeader))
	}
	var r Record
	var err error
	ints := []*int{&r.N, &r.Tau, &r.K}
	for i, dst := range ints {
		if *dst, err = strconv.Atoi(fields[i]); err != nil {
			return Record{}, fmt.Errorf("%s: %w", resultHeader[i], err)
		}
	}
	if r.Seed, err = strconv.ParseInt(fields[3], 10, 64); err != nil {
		return Record{}, fmt.Errorf("seed: %w", err)
	}
	r.Algorithm = fields[4]
	if r.RowsGenerated, err = strconv.Atoi(fields[5]); err != nil {
		return Record{}, fmt.Errorf("rows_generated: %w", err)
	}
	if r.ElapsedSeconds, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return Record{}, fmt.Errorf("elapsed_seconds: %w", err)
	}
	r.Status = Status(fields[7])
	if !r.Status.Valid() {
		return Record{}, fmt.Errorf("unknown status %q", fields[7])
	}
	if r.CoverageFraction, err = strconv.ParseFloat(fields[8], 64); err != nil {
		return Record{}, fmt.Errorf("coverage_fraction: %w", err)
	}
	return r, nil
}

// ResultStore appends records to a CSV file. The header is written once,
// when the file is created.
type ResultStore struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// OpenResultStore opens path for appending, creating it with a header if it
// does not exist or is empty.
func OpenResultStore(path string) (*ResultStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat result store: %w", err)
	}
	s := &ResultStore{path: path, f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.write(resultHeader); err != nil {
			f.Close()
			return nil, err
		}
		return s, nil
	}

	// Terminate a line left unfinished by a crash so the next record
	// starts on its own line.
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read result store: %w", err)
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to repair result store: %w", err)
		}
	}
	return s, nil
}

// Path returns the result file path.
func (s *ResultStore) Path() string {
	return s.path
}

// Append writes rec and syncs it to disk.
func (s *ResultStore) Append(rec Record) error {
	return s.write(rec.fields())
}

func (s *ResultStore) write(fields []string) error {
	if err := s.w.Write(fields); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync result store: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *ResultStore) Close() error {
	return s.f.Close()
}

// LoadRecords reads every well-formed record in the result file at path. A
// missing file has no records. Lines that do not parse, such as a line cut
// short by a crash, are skipped and counted.
func LoadRecords(path string) (records []Record, skipped int, err error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open result store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for line := 0; ; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("failed to read result store: %w", err)
		}
		if line == 0 && len(fields) > 0 && fields[0] == resultHeader[0] {
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}
