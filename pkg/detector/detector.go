// Package detector reports which query log layout a BIND log file uses.
package detector

import (
	"bufio"
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

// DefaultRejectSamples is how many unparsable lines a result keeps.
const DefaultRejectSamples = 5

// DetectionResult holds the result of analyzing a log file.
type DetectionResult struct {
	Matches      []FormatMatch  // Formats that matched, sorted by confidence descending
	SampledLines int            // Number of non-empty lines sampled
	ParsedLines  int            // Number of sampled lines that parsed with any format
	Decorated    int            // Parsed lines that needed extended syntax
	Rejected     []RejectSample // First unparsable lines
	FirstSeen    time.Time      // Earliest parsed timestamp
	LastSeen     time.Time      // Latest parsed timestamp
}

// FormatMatch is a format seen in the sample with its share of lines.
type FormatMatch struct {
	Format     *QueryLogFormat
	Confidence float64            // 0.0 to 1.0 (share of sampled lines)
	MatchCount int                // Number of lines that matched
	SampleLine string             // Example line that matched
	Sample     parser.QueryRecord // Parsed SampleLine
}

// RejectSample is a sampled line the parser rejected.
type RejectSample struct {
	LineNum int
	Line    string
	Reason  string
}

// Detector samples log files and classifies their lines.
type Detector struct {
	formats       []*QueryLogFormat
	parser        *parser.Parser
	sampleSize    int
	rejectSamples int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithParser sets the parser used to classify lines.
func WithParser(p *parser.Parser) Option {
	return func(d *Detector) {
		if p != nil {
			d.parser = p
		}
	}
}

// New creates a new Detector with default formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:       DefaultFormats(),
		parser:        parser.NewParser(),
		sampleSize:    100,
		rejectSamples: DefaultRejectSamples,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples the head of a log file and classifies it.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.detect(lines), nil
}

// DetectFromLines classifies a slice of log lines. Empty lines are ignored.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	numbered := make([]numberedLine, 0, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		numbered = append(numbered, numberedLine{num: i + 1, text: l})
	}
	return d.detect(numbered)
}

type numberedLine struct {
	num  int
	text string
}

func (d *Detector) detect(lines []numberedLine) *DetectionResult {
	result := &DetectionResult{
		SampledLines: len(lines),
	}

	if len(lines) == 0 {
		return result
	}

	type formatStats struct {
		format     *QueryLogFormat
		matchCount int
		sampleLine string
		sample     parser.QueryRecord
	}

	stats := make(map[parser.Variant]*formatStats)

	for _, line := range lines {
		rec, m, err := d.parser.ParseMatch(line.text)
		if err != nil {
			if len(result.Rejected) < d.rejectSamples {
				result.Rejected = append(result.Rejected, RejectSample{
					LineNum: line.num,
					Line:    line.text,
					Reason:  rejectReason(err),
				})
			}
			continue
		}

		result.ParsedLines++
		if m.Decorated {
			result.Decorated++
		}
		if result.FirstSeen.IsZero() || rec.Timestamp.Before(result.FirstSeen) {
			result.FirstSeen = rec.Timestamp
		}
		if rec.Timestamp.After(result.LastSeen) {
			result.LastSeen = rec.Timestamp
		}

		v := m.Variant
		if stats[v] == nil {
			format := formatFor(d.formats, v)
			if format == nil {
				continue
			}
			stats[v] = &formatStats{
				format:     format,
				sampleLine: line.text,
				sample:     rec,
			}
		}
		stats[v].matchCount++
	}

	for _, s := range stats {
		result.Matches = append(result.Matches, FormatMatch{
			Format:     s.format,
			Confidence: float64(s.matchCount) / float64(len(lines)),
			MatchCount: s.matchCount,
			SampleLine: s.sampleLine,
			Sample:     s.sample,
		})
	}

	// Sort by confidence descending, newer layout first on ties
	sort.Slice(result.Matches, func(i, j int) bool {
		if result.Matches[i].MatchCount != result.Matches[j].MatchCount {
			return result.Matches[i].MatchCount > result.Matches[j].MatchCount
		}
		return result.Matches[i].Format.Variant == parser.VariantEchoed
	})

	return result
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, parser.ErrInvalidTimestamp):
		return "invalid timestamp"
	case errors.Is(err, parser.ErrUnrecognized):
		return "not a query log line"
	default:
		return err.Error()
	}
}

// sampleFile reads up to sampleSize non-empty lines from the head of a file.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]numberedLine, error) {
	// #nosec G304 - path is provided by user via CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []numberedLine
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	num := 0
	for len(lines) < d.sampleSize && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num++
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			lines = append(lines, numberedLine{num: num, text: line})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *FormatMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one format matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// Mixed returns true if the sample contains more than one layout.
func (r *DetectionResult) Mixed() bool {
	return len(r.Matches) > 1
}
