// Package analyzer drives query log parsing over a selected log source and
// routes parsed records to a storage sink.
package analyzer

import (
	"errors"
	"fmt"
	"time"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

var (
	// ErrNoSourceBound is returned by Run and Process before a source is set.
	ErrNoSourceBound = errors.New("no log source bound")

	// ErrSourceNotFound is wrapped by SourceValidationError.
	ErrSourceNotFound = errors.New("log source not found")
)

// SourceValidationError reports a rejected SetSource candidate.
type SourceValidationError struct {
	Candidate string
}

func (e *SourceValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSourceNotFound, e.Candidate)
}

func (e *SourceValidationError) Unwrap() error {
	return ErrSourceNotFound
}

// SourceState is the binding state of a LogAnalyzer.
type SourceState int

const (
	// StateUnset means no log source has been selected yet.
	StateUnset SourceState = iota

	// StateBound means a validated log source is held.
	StateBound
)

func (s SourceState) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateBound:
		return "bound"
	default:
		return fmt.Sprintf("SourceState(%d)", int(s))
	}
}

// binding is the analyzer's current source selection.
type binding struct {
	state SourceState
	ref   string
}

// bind is the only transition of a binding. The candidate is adopted only
// if v confirms it exists; otherwise b is returned unchanged.
func (b binding) bind(candidate string, v SourceValidator) (binding, error) {
	if candidate == "" || v == nil || !v.Exists(candidate) {
		return b, &SourceValidationError{Candidate: candidate}
	}
	return binding{state: StateBound, ref: candidate}, nil
}

// SinkFailure records a parsed line the sink refused.
type SinkFailure struct {
	// LineNum is the 1-based line number of the record in its source.
	LineNum int

	// Record is the parsed record that could not be stored.
	Record parser.QueryRecord

	// Err is the error returned by the sink.
	Err error
}

// Summary describes one processing run.
type Summary struct {
	// Source is the log source that was processed.
	Source string

	// Lines is the number of lines read.
	Lines int

	// Parsed is the number of lines that produced a record.
	Parsed int

	// Stored is the number of records the sink accepted.
	Stored int

	// Skipped is the number of lines rejected by the parser.
	Skipped int

	// Failed is the number of records the sink refused.
	Failed int

	// Failures holds details of refused records, up to the analyzer's
	// failure detail limit.
	Failures []SinkFailure

	// StartTime is when processing began.
	StartTime time.Time

	// EndTime is when processing completed.
	EndTime time.Time
}

// Clean returns true if every line was parsed and stored.
func (s *Summary) Clean() bool {
	return s.Skipped == 0 && s.Failed == 0
}

// Add folds another run's counts into s. Failure details are appended.
func (s *Summary) Add(o *Summary) {
	s.Lines += o.Lines
	s.Parsed += o.Parsed
	s.Stored += o.Stored
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.Failures = append(s.Failures, o.Failures...)
	if s.StartTime.IsZero() || (!o.StartTime.IsZero() && o.StartTime.Before(s.StartTime)) {
		s.StartTime = o.StartTime
	}
	if o.EndTime.After(s.EndTime) {
		s.EndTime = o.EndTime
	}
}
