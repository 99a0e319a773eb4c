package core

import (
	"errors"
	"fmt"
)

// Params describes one covering problem: n binary parameters, coverage
// strength tau and exactly k ones per row.
type Params struct {
	N   int `json:"n" yaml:"n"`
	Tau int `json:"tau" yaml:"tau"`
	K   int `json:"k" yaml:"k"`
}

// Validate checks 0 <= k <= n and 1 <= tau <= n.
func (p Params) Validate() error {
	switch {
	case p.N < 0 || p.Tau < 0 || p.K < 0:
		return InvalidParametersError{Params: p, Msg: "values must be non-negative"}
	case p.Tau < 1:
		return InvalidParametersError{Params: p, Msg: "tau must be at least 1"}
	case p.Tau > p.N:
		return InvalidParametersError{Params: p, Msg: "tau must not exceed n"}
	case p.K > p.N:
		return InvalidParametersError{Params: p, Msg: "k must not exceed n"}
	}
	return nil
}

// String provides a string representation.
func (p Params) String() string {
	return fmt.Sprintf("n=%d tau=%d k=%d", p.N, p.Tau, p.K)
}

// --- Error Types ---

var (
	ErrInvalidParameters           = errors.New("invalid parameters")
	ErrGenerationTimeout           = errors.New("generation timed out")
	ErrBudgetExhausted             = errors.New("search budget exhausted before full coverage")
	ErrExternalToolUnavailable     = errors.New("external tool unavailable")
	ErrExternalToolFailed          = errors.New("external tool failed")
	ErrExternalToolOutputMalformed = errors.New("external tool output malformed")
	ErrCheckpointCorrupt           = errors.New("checkpoint corrupt")
)

// InvalidParametersError indicates that (n, tau, k) cannot describe a
// covering problem. It matches ErrInvalidParameters with errors.Is.
type InvalidParametersError struct {
	Params Params
	Msg    string
}

func (e InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters (%s): %s", e.Params, e.Msg)
}

func (e InvalidParametersError) Is(target error) bool {
	return target == ErrInvalidParameters
}
