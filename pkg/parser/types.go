// Package parser provides BIND query log reading and line parsing.
package parser

import "time"

// QueryRecord is one parsed DNS query log entry.
type QueryRecord struct {
	// Timestamp is the query time truncated to whole seconds.
	Timestamp time.Time `json:"timestamp"`

	// Client is the querying client's address, without the source port.
	Client string `json:"client"`

	// Query is the queried domain name as written in the log.
	Query string `json:"query"`

	// QType is the resource record type token, e.g. A, AAAA, MX.
	QType string `json:"q_type"`

	// Server is the address of the server that handled the query.
	Server string `json:"server"`
}

// LogLine is a raw log line before parsing.
type LogLine struct {
	// Content is the raw line text.
	Content string

	// Source is the file path this line came from.
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int

	// Truncated is set when the line exceeded MaxLineSize and Content holds
	// only its first MaxLineSize bytes.
	Truncated bool
}

// Variant identifies which query log layout a line uses.
type Variant string

const (
	// VariantEchoed is the BIND >= 9.9 layout that echoes the query name
	// in parentheses after the client port.
	VariantEchoed Variant = "echoed"

	// VariantPlain is the older layout without the echoed name.
	VariantPlain Variant = "plain"

	// VariantUnknown means the line matches neither layout.
	VariantUnknown Variant = "unknown"
)
