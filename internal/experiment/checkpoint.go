package experiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/util"
)

const checkpointVersion = 1

// Status is the terminal state of one (case, algorithm) unit.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusTimedOut  Status = "timed_out"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the terminal statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusTimedOut, StatusFailed:
		return true
	}
	return false
}

// AlgorithmEntry records how one algorithm finished on one case.
type AlgorithmEntry struct {
	Status     Status    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// CaseEntry holds the finished algorithms of one case.
type CaseEntry struct {
	Algorithms map[string]AlgorithmEntry `json:"algorithms"`
}

// Checkpoint is the resumable progress of an experiment.
type Checkpoint struct {
	Version   int                   `json:"version"`
	RunID     string                `json:"run_id"`
	UpdatedAt time.Time             `json:"updated_at"`
	Cases     map[string]*CaseEntry `json:"cases"`
}

// NewCheckpoint returns an empty checkpoint with a fresh run id.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Version: checkpointVersion,
		RunID:   uuid.NewString(),
		Cases:   make(map[string]*CaseEntry),
	}
}

// Entry returns the recorded outcome of alg on caseID.
func (c *Checkpoint) Entry(caseID, alg string) (AlgorithmEntry, bool) {
	ce, ok := c.Cases[caseID]
	if !ok {
		return AlgorithmEntry{}, false
	}
	e, ok := ce.Algorithms[alg]
	return e, ok
}

// Mark records the outcome of alg on caseID.
func (c *Checkpoint) Mark(caseID, alg string, e AlgorithmEntry) {
	ce, ok := c.Cases[caseID]
	if !ok {
		ce = &CaseEntry{Algorithms: make(map[string]AlgorithmEntry)}
		c.Cases[caseID] = ce
	}
	ce.Algorithms[alg] = e
}

// Done reports whether alg needs no further run on caseID. Any terminal
// status counts unless retryFailed is set, in which case only completed
// units are done.
func (c *Checkpoint) Done(caseID, alg string, retryFailed bool) bool {
	e, ok := c.Entry(caseID, alg)
	if !ok {
		return false
	}
	if retryFailed {
		return e.Status == StatusCompleted
	}
	return true
}

// CheckpointStore persists a Checkpoint as JSON, replacing the file
// atomically on every save.
type CheckpointStore struct {
	path   string
	logger *zap.Logger
}

// NewCheckpointStore creates a store backed by path.
func NewCheckpointStore(path string, logger *zap.Logger) *CheckpointStore {
	return &CheckpointStore{path: path, logger: util.OrNop(logger)}
}

// Path returns the checkpoint file path.
func (s *CheckpointStore) Path() string {
	return s.path
}

// Load reads the checkpoint. A missing file yields an empty checkpoint. A
// corrupt file is moved aside to path.corrupt, logged, and also yields an
// empty checkpoint.
func (s *CheckpointStore) Load() (*Checkpoint, error) {
	cp, err := s.read()
	switch {
	case err == nil:
		return cp, nil
	case errors.Is(err, os.ErrNotExist):
		return NewCheckpoint(), nil
	case errors.Is(err, core.ErrCheckpointCorrupt):
		s.logger.Warn("ignoring corrupt checkpoint", zap.String("path", s.path), zap.Error(err))
		if rerr := os.Rename(s.path, s.path+".corrupt"); rerr != nil {
			s.logger.Warn("failed to move corrupt checkpoint aside", zap.Error(rerr))
		}
		return NewCheckpoint(), nil
	}
	return nil, err
}

func (s *CheckpointStore) read() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCheckpointCorrupt, err)
	}
	if cp.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", core.ErrCheckpointCorrupt, cp.Version)
	}
	if cp.Cases == nil {
		cp.Cases = make(map[string]*CaseEntry)
	}
	for id, ce := range cp.Cases {
		if ce == nil || ce.Algorithms == nil {
			return nil, fmt.Errorf("%w: case %s has no algorithms", core.ErrCheckpointCorrupt, id)
		}
		for alg, e := range ce.Algorithms {
			if !e.Status.Valid() {
				return nil, fmt.Errorf("%w: case %s algorithm %s has status %q", core.ErrCheckpointCorrupt, id, alg, e.Status)
			}
		}
	}
	return &cp, nil
}

// Save writes cp to path.tmp, syncs it and renames it over path.
func (s *CheckpointStore) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := writeSynced(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	syncDir(filepath.Dir(s.path))
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir makes a rename durable. Not every platform supports syncing a
// directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
