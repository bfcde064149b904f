package analyzer

import (
	"context"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

// Sink persists parsed query records.
type Sink interface {
	// Store persists a single record. A returned error marks this record as
	// failed; processing continues with the next line.
	Store(ctx context.Context, rec parser.QueryRecord) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, rec parser.QueryRecord) error

// Store calls f(ctx, rec).
func (f SinkFunc) Store(ctx context.Context, rec parser.QueryRecord) error {
	return f(ctx, rec)
}

// SourceValidator decides whether a log source reference can be bound.
type SourceValidator interface {
	Exists(ref string) bool
}

// ValidatorFunc adapts a plain function to the SourceValidator interface.
type ValidatorFunc func(ref string) bool

// Exists calls f(ref).
func (f ValidatorFunc) Exists(ref string) bool {
	return f(ref)
}
