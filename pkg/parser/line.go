package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrUnrecognized is returned for lines that match neither query log layout.
	ErrUnrecognized = errors.New("line does not match a query log format")

	// ErrInvalidTimestamp is returned when the layout matches but the date does not parse.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// RejectionError describes why a line was not turned into a QueryRecord.
type RejectionError struct {
	Line   string
	Reason error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected line %q: %v", e.Line, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

// Shared pieces of both layouts. Decorated lines carry a
// "<category>: <severity>: " prefix (print-category/print-severity) and
// may have a "@0x..." client object before the address.
const (
	timestampExpr = `^(\d{2}-[A-Za-z]{3}-\d{4} \d{2}:\d{2}:\d{2}\.\d{3}) `
	prefixExpr    = `(?:[a-z0-9_-]+: [a-z]+: )?`
	clientExpr    = `client ([^\s#]+)#\d+`
	objClientExpr = `client (?:@0x[0-9a-fA-F]+ )?([^\s#]+)#\d+`
	echoedExpr    = ` \([^()]+\)`
	queryExpr     = `: query: (\S+) IN (\S+) \S+ \(([^()\s]+)\)$`
)

// layout is one recognized query log line structure.
type layout struct {
	variant   Variant
	decorated bool
	pattern   *regexp.Regexp
}

// strictLayouts are the two plain BIND layouts. The echoed form comes
// first so the plain form never shadows it.
var strictLayouts = []layout{
	{
		variant: VariantEchoed,
		pattern: regexp.MustCompile(timestampExpr + clientExpr + echoedExpr + queryExpr),
	},
	{
		variant: VariantPlain,
		pattern: regexp.MustCompile(timestampExpr + clientExpr + queryExpr),
	},
}

// extendedLayouts also accept decorated lines, tried after the strict ones.
var extendedLayouts = append(append([]layout(nil), strictLayouts...),
	layout{
		variant:   VariantEchoed,
		decorated: true,
		pattern:   regexp.MustCompile(timestampExpr + prefixExpr + objClientExpr + echoedExpr + queryExpr),
	},
	layout{
		variant:   VariantPlain,
		decorated: true,
		pattern:   regexp.MustCompile(timestampExpr + prefixExpr + objClientExpr + queryExpr),
	},
)

// Match describes how a line was recognized.
type Match struct {
	Variant Variant

	// Decorated is set when the line only parsed with extended syntax.
	Decorated bool
}

// Parser turns query log lines into QueryRecords. It holds no per-line
// state and is safe for concurrent use.
type Parser struct {
	loc     *time.Location
	layouts []layout
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLocation sets the time zone log timestamps are interpreted in.
// The default is time.Local.
func WithLocation(loc *time.Location) ParserOption {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithExtendedSyntax also accepts lines decorated with a category and
// severity prefix or a client object token. The default is strict.
func WithExtendedSyntax(enabled bool) ParserOption {
	return func(p *Parser) {
		if enabled {
			p.layouts = extendedLayouts
		} else {
			p.layouts = strictLayouts
		}
	}
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{loc: time.Local, layouts: strictLayouts}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location returns the time zone timestamps are interpreted in.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Parse parses a single log line. Malformed lines yield a *RejectionError
// and a zero record; a record is never partially filled.
func (p *Parser) Parse(line string) (QueryRecord, error) {
	rec, _, err := p.parse(line)
	return rec, err
}

// ParseLine is Parse reporting success as a bool.
func (p *Parser) ParseLine(line string) (QueryRecord, bool) {
	rec, _, err := p.parse(line)
	return rec, err == nil
}

// Classify reports which layout a line uses. Lines whose structure matches
// but whose timestamp is invalid are VariantUnknown.
func (p *Parser) Classify(line string) Variant {
	_, m, err := p.parse(line)
	if err != nil {
		return VariantUnknown
	}
	return m.Variant
}

// ParseMatch is Parse also reporting how the line was recognized.
func (p *Parser) ParseMatch(line string) (QueryRecord, Match, error) {
	return p.parse(line)
}

func (p *Parser) parse(line string) (QueryRecord, Match, error) {
	line = strings.TrimRight(line, "\r\n")

	for _, l := range p.layouts {
		m := l.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		ts, err := parseTimestamp(m[1], p.loc)
		if err != nil {
			return QueryRecord{}, Match{Variant: VariantUnknown}, &RejectionError{
				Line:   line,
				Reason: fmt.Errorf("%w: %v", ErrInvalidTimestamp, err),
			}
		}

		return QueryRecord{
			Timestamp: ts,
			Client:    m[2],
			Query:     m[3],
			QType:     m[4],
			Server:    m[5],
		}, Match{Variant: l.variant, Decorated: l.decorated}, nil
	}

	return QueryRecord{}, Match{Variant: VariantUnknown}, &RejectionError{Line: line, Reason: ErrUnrecognized}
}

var defaultParser = NewParser()

// ParseLine parses a line with timestamps in the local time zone.
func ParseLine(line string) (QueryRecord, bool) {
	return defaultParser.ParseLine(line)
}
