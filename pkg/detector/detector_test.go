package detector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

const (
	echoedLine = "25-Nov-2015 10:29:53.073 client 192.168.16.7#60458 (host.example.com): query: host.example.com IN A + (192.168.16.1)"
	plainLine  = "28-Mar-2012 16:48:32.412 client 192.168.10.201#60303: query: google.com IN AAAA + (192.168.10.1)"
)

func TestDetectFromLines(t *testing.T) {
	tests := []struct {
		name        string
		lines       []string
		wantVariant parser.Variant
		wantMatch   bool
		wantParsed  int
		wantRejects int
	}{
		{
			name:        "echoed only",
			lines:       []string{echoedLine, echoedLine},
			wantVariant: parser.VariantEchoed,
			wantMatch:   true,
			wantParsed:  2,
		},
		{
			name:        "plain only",
			lines:       []string{plainLine},
			wantVariant: parser.VariantPlain,
			wantMatch:   true,
			wantParsed:  1,
		},
		{
			name:        "plain majority",
			lines:       []string{plainLine, plainLine, echoedLine},
			wantVariant: parser.VariantPlain,
			wantMatch:   true,
			wantParsed:  3,
		},
		{
			name:        "garbage",
			lines:       []string{"not a log line", "neither is this"},
			wantMatch:   false,
			wantRejects: 2,
		},
		{
			name:      "empty",
			lines:     nil,
			wantMatch: false,
		},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.DetectFromLines(tt.lines)

			if result.HasMatch() != tt.wantMatch {
				t.Fatalf("HasMatch() = %v, want %v", result.HasMatch(), tt.wantMatch)
			}
			if result.ParsedLines != tt.wantParsed {
				t.Errorf("ParsedLines = %d, want %d", result.ParsedLines, tt.wantParsed)
			}
			if len(result.Rejected) != tt.wantRejects {
				t.Errorf("Rejected = %d, want %d", len(result.Rejected), tt.wantRejects)
			}
			if !tt.wantMatch {
				if result.BestMatch() != nil {
					t.Error("BestMatch() should be nil")
				}
				return
			}
			if got := result.BestMatch().Format.Variant; got != tt.wantVariant {
				t.Errorf("BestMatch().Variant = %q, want %q", got, tt.wantVariant)
			}
		})
	}
}

func TestDetectFromLines_Confidence(t *testing.T) {
	d := New()
	result := d.DetectFromLines([]string{echoedLine, echoedLine, echoedLine, "junk"})

	best := result.BestMatch()
	if best == nil {
		t.Fatal("expected a match")
	}
	if best.Confidence != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", best.Confidence)
	}
	if best.MatchCount != 3 {
		t.Errorf("MatchCount = %d, want 3", best.MatchCount)
	}
	if best.Sample.Query != "host.example.com" {
		t.Errorf("Sample.Query = %q", best.Sample.Query)
	}
	if result.Mixed() {
		t.Error("Mixed() = true for a single layout")
	}
}

func TestDetectFromLines_Mixed(t *testing.T) {
	d := New()
	result := d.DetectFromLines([]string{echoedLine, plainLine})

	if !result.Mixed() {
		t.Error("Mixed() = false, want true")
	}
	// Ties go to the newer layout.
	if got := result.BestMatch().Format.Variant; got != parser.VariantEchoed {
		t.Errorf("BestMatch().Variant = %q, want echoed", got)
	}
}

func TestDetectFromLines_TimeRange(t *testing.T) {
	d := New()
	result := d.DetectFromLines([]string{echoedLine, plainLine})

	if result.FirstSeen.Year() != 2012 {
		t.Errorf("FirstSeen = %v, want 2012", result.FirstSeen)
	}
	if result.LastSeen.Year() != 2015 {
		t.Errorf("LastSeen = %v, want 2015", result.LastSeen)
	}
}

func TestDetectFromLines_RejectReasons(t *testing.T) {
	d := New()
	badDate := strings.Replace(plainLine, "28-Mar-2012", "31-Feb-2012", 1)
	result := d.DetectFromLines([]string{"", badDate, "hello"})

	if result.SampledLines != 2 {
		t.Errorf("SampledLines = %d, want 2 (blank ignored)", result.SampledLines)
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("Rejected = %d, want 2", len(result.Rejected))
	}
	if result.Rejected[0].Reason != "invalid timestamp" || result.Rejected[0].LineNum != 2 {
		t.Errorf("Rejected[0] = %+v", result.Rejected[0])
	}
	if result.Rejected[1].Reason != "not a query log line" {
		t.Errorf("Rejected[1].Reason = %q", result.Rejected[1].Reason)
	}
}

func TestDetectFromLines_RejectSamplesCapped(t *testing.T) {
	d := New()
	lines := make([]string, DefaultRejectSamples+3)
	for i := range lines {
		lines[i] = "junk"
	}
	result := d.DetectFromLines(lines)
	if len(result.Rejected) != DefaultRejectSamples {
		t.Errorf("Rejected = %d, want %d", len(result.Rejected), DefaultRejectSamples)
	}
}

func TestDetectFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query.log")
	content := strings.Join([]string{echoedLine, "", echoedLine, plainLine}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	d := New(WithSampleSize(2))
	result, err := d.DetectFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DetectFromFile() error = %v", err)
	}
	if result.SampledLines != 2 {
		t.Errorf("SampledLines = %d, want 2", result.SampledLines)
	}
	if result.Mixed() {
		t.Error("sample should stop before the plain line")
	}
}

func TestDetectFromFile_NotFound(t *testing.T) {
	d := New()
	if _, err := d.DetectFromFile(context.Background(), "/nonexistent/query.log"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDetectFromFile_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query.log")
	if err := os.WriteFile(path, []byte(echoedLine+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().DetectFromFile(ctx, path); err == nil {
		t.Error("expected context error")
	}
}

func TestWithSampleSize_IgnoresNonPositive(t *testing.T) {
	d := New(WithSampleSize(0))
	if d.sampleSize != 100 {
		t.Errorf("sampleSize = %d, want 100", d.sampleSize)
	}
}

func TestDefaultFormats(t *testing.T) {
	p := parser.NewParser()
	for _, f := range DefaultFormats() {
		if got := p.Classify(f.Example); got != f.Variant {
			t.Errorf("%s: Classify(example) = %q, want %q", f.Name, got, f.Variant)
		}
	}
}
