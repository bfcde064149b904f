package analyzer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

// DefaultMaxFailures is the default number of sink failures kept in a Summary.
const DefaultMaxFailures = 100

// LogAnalyzer parses lines from a selected log source and forwards the
// resulting records to a sink.
type LogAnalyzer struct {
	mu      sync.RWMutex
	binding binding

	parser      *parser.Parser
	validator   SourceValidator
	logger      zerolog.Logger
	maxFailures int

	// initial source requested through WithSource
	initial string
}

// Option configures analyzer behavior.
type Option func(*LogAnalyzer)

// WithParser sets the line parser. The default parses timestamps in local time.
func WithParser(p *parser.Parser) Option {
	return func(a *LogAnalyzer) {
		if p != nil {
			a.parser = p
		}
	}
}

// WithValidator sets the collaborator that confirms a source exists.
// The default is FileValidator.
func WithValidator(v SourceValidator) Option {
	return func(a *LogAnalyzer) {
		if v != nil {
			a.validator = v
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l zerolog.Logger) Option {
	return func(a *LogAnalyzer) {
		a.logger = l
	}
}

// WithMaxFailures limits how many sink failures are detailed in a Summary.
// Counts are never limited. Zero or less keeps every failure.
func WithMaxFailures(n int) Option {
	return func(a *LogAnalyzer) {
		a.maxFailures = n
	}
}

// WithSource binds an initial log source. It is validated like SetSource;
// New reports the error if it is rejected.
func WithSource(ref string) Option {
	return func(a *LogAnalyzer) {
		a.initial = ref
	}
}

// New creates a LogAnalyzer. Without WithSource it starts unbound.
func New(opts ...Option) (*LogAnalyzer, error) {
	a := &LogAnalyzer{
		parser:      parser.NewParser(),
		validator:   FileValidator{},
		logger:      zerolog.Nop(),
		maxFailures: DefaultMaxFailures,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.initial != "" {
		if err := a.SetSource(a.initial); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// State returns the current binding state.
func (a *LogAnalyzer) State() SourceState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.binding.state
}

// CurrentSource returns the bound source, or false when unbound.
func (a *LogAnalyzer) CurrentSource() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.binding.ref, a.binding.state == StateBound
}

// SetSource binds candidate after the validator confirms it exists.
// On failure the previous binding is kept and a *SourceValidationError is
// returned.
func (a *LogAnalyzer) SetSource(candidate string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.binding.bind(candidate, a.validator)
	if err != nil {
		a.logger.Debug().Str("candidate", candidate).Str("kept", a.binding.ref).Msg("log source rejected")
		return err
	}
	a.binding = next
	a.logger.Debug().Str("source", candidate).Msg("log source bound")
	return nil
}

// Run reads the bound source from the start and processes every line.
func (a *LogAnalyzer) Run(ctx context.Context, sink Sink) (*Summary, error) {
	ref, ok := a.CurrentSource()
	if !ok {
		return nil, ErrNoSourceBound
	}

	source := parser.NewFileSource(ref)
	defer source.Close()

	return a.Process(ctx, source, sink)
}

// Process parses every line from lines in order and stores each parsed
// record in sink before reading the next line. Rejected lines are counted
// as skipped and sink errors as failed; neither stops processing. The only
// errors returned are ErrNoSourceBound, read errors and context
// cancellation. On a read error or cancellation the counts so far are
// returned alongside the error.
func (a *LogAnalyzer) Process(ctx context.Context, lines parser.LineSource, sink Sink) (*Summary, error) {
	ref, ok := a.CurrentSource()
	if !ok {
		return nil, ErrNoSourceBound
	}

	summary := &Summary{
		Source:    ref,
		StartTime: time.Now(),
	}

	for {
		select {
		case <-ctx.Done():
			summary.EndTime = time.Now()
			return summary, ctx.Err()
		default:
		}

		line, err := lines.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.EndTime = time.Now()
			return summary, fmt.Errorf("reading log source: %w", err)
		}

		summary.Lines++

		if line.Truncated {
			a.logger.Debug().Str("source", line.Source).Int("line", line.LineNum).Msg("oversized line skipped")
			summary.Skipped++
			continue
		}

		rec, ok := a.parser.ParseLine(line.Content)
		if !ok {
			summary.Skipped++
			continue
		}
		summary.Parsed++

		if err := sink.Store(ctx, rec); err != nil {
			summary.Failed++
			if a.maxFailures <= 0 || len(summary.Failures) < a.maxFailures {
				summary.Failures = append(summary.Failures, SinkFailure{
					LineNum: line.LineNum,
					Record:  rec,
					Err:     err,
				})
			}
			a.logger.Warn().Err(err).
				Str("source", line.Source).
				Int("line", line.LineNum).
				Str("query", rec.Query).
				Msg("storing record failed")
			continue
		}
		summary.Stored++
	}

	summary.EndTime = time.Now()

	a.logger.Debug().
		Str("source", ref).
		Int("lines", summary.Lines).
		Int("parsed", summary.Parsed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("processing complete")

	return summary, nil
}
