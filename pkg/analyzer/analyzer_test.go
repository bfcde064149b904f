package analyzer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

// mockSource is a test LineSource that returns predefined lines.
type mockSource struct {
	lines []string
	index int
	err   error
}

func (m *mockSource) Next(ctx context.Context) (*parser.LogLine, error) {
	if m.index >= len(m.lines) {
		if m.err != nil {
			return nil, m.err
		}
		return nil, io.EOF
	}
	line := &parser.LogLine{Content: m.lines[m.index], Source: "test.log", LineNum: m.index + 1}
	m.index++
	return line, nil
}

func (m *mockSource) Close() error {
	return nil
}

// recordingSink stores records in memory and fails for selected queries.
type recordingSink struct {
	records []parser.QueryRecord
	failFor map[string]bool
	calls   int
}

func (s *recordingSink) Store(ctx context.Context, rec parser.QueryRecord) error {
	s.calls++
	if s.failFor[rec.Query] {
		return errors.New("disk full")
	}
	s.records = append(s.records, rec)
	return nil
}

// existing accepts only the listed references.
func existing(refs ...string) SourceValidator {
	set := make(map[string]bool)
	for _, r := range refs {
		set[r] = true
	}
	return ValidatorFunc(func(ref string) bool { return set[ref] })
}

const (
	lineGithub = "28-Mar-2012 16:48:32.411 client 192.168.10.37#60303: query: github.com IN A + (192.168.10.1)"
	lineGoogle = "28-Mar-2012 16:48:32.412 client 192.168.10.201#60303: query: google.com IN AAAA + (192.168.10.1)"
	lineNasa   = "28-Mar-2012 16:48:32.898 client 192.168.10.114#53309: query: www.nasa.gov IN A + (192.168.10.1)"
	lineEchoed = "25-Nov-2015 10:29:53.073 client 192.168.16.7#60458 (host.example.com): query: host.example.com IN A + (192.168.16.1)"
)

func TestNew_Unbound(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if ref, ok := a.CurrentSource(); ok || ref != "" {
		t.Errorf("CurrentSource() = %q, %v, want unbound", ref, ok)
	}
	if a.State() != StateUnset {
		t.Errorf("State() = %v, want %v", a.State(), StateUnset)
	}
}

func TestNew_WithSource(t *testing.T) {
	a, err := New(WithValidator(existing("query.log")), WithSource("query.log"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if ref, ok := a.CurrentSource(); !ok || ref != "query.log" {
		t.Errorf("CurrentSource() = %q, %v, want query.log", ref, ok)
	}
}

func TestNew_WithMissingSource(t *testing.T) {
	_, err := New(WithValidator(existing()), WithSource("missing.log"))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("New() error = %v, want ErrSourceNotFound", err)
	}
}

func TestSetSource(t *testing.T) {
	tests := []struct {
		name      string
		initial   string
		candidate string
		wantErr   bool
		wantRef   string
		wantState SourceState
	}{
		{"unset to bound", "", "a.log", false, "a.log", StateBound},
		{"unset stays unset", "", "missing.log", true, "", StateUnset},
		{"bound to new source", "a.log", "b.log", false, "b.log", StateBound},
		{"bound keeps old source", "a.log", "missing.log", true, "a.log", StateBound},
		{"empty candidate rejected", "a.log", "", true, "a.log", StateBound},
		{"rebind same source", "a.log", "a.log", false, "a.log", StateBound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithValidator(existing("a.log", "b.log"))}
			if tt.initial != "" {
				opts = append(opts, WithSource(tt.initial))
			}
			a, err := New(opts...)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			err = a.SetSource(tt.candidate)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *SourceValidationError
				if !errors.As(err, &verr) || verr.Candidate != tt.candidate {
					t.Errorf("SetSource() error = %v, want SourceValidationError for %q", err, tt.candidate)
				}
			}

			ref, _ := a.CurrentSource()
			if ref != tt.wantRef {
				t.Errorf("CurrentSource() = %q, want %q", ref, tt.wantRef)
			}
			if a.State() != tt.wantState {
				t.Errorf("State() = %v, want %v", a.State(), tt.wantState)
			}
		})
	}
}

func TestSetSource_FileValidator(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "query.log")
	second := filepath.Join(dir, "new_query.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	a, err := New(WithSource(first))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.SetSource(second); err != nil {
		t.Fatalf("SetSource() error = %v", err)
	}
	if ref, _ := a.CurrentSource(); ref != second {
		t.Errorf("CurrentSource() = %q, want %q", ref, second)
	}

	if err := a.SetSource(filepath.Join(dir, "unexisting_file")); err == nil {
		t.Error("SetSource() expected error for missing file")
	}
	if ref, _ := a.CurrentSource(); ref != second {
		t.Errorf("CurrentSource() = %q, want %q", ref, second)
	}

	// Directories are not log files
	if err := a.SetSource(dir); err == nil {
		t.Error("SetSource() expected error for directory")
	}
}

func TestProcess_Unbound(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sink := &recordingSink{}
	_, err = a.Process(context.Background(), &mockSource{lines: []string{lineGithub}}, sink)
	if !errors.Is(err, ErrNoSourceBound) {
		t.Errorf("Process() error = %v, want ErrNoSourceBound", err)
	}
	if sink.calls != 0 {
		t.Errorf("sink calls = %d, want 0", sink.calls)
	}

	if _, err := a.Run(context.Background(), sink); !errors.Is(err, ErrNoSourceBound) {
		t.Errorf("Run() error = %v, want ErrNoSourceBound", err)
	}
}

func TestProcess_SkipsMalformed(t *testing.T) {
	a, err := New(WithValidator(existing("test.log")), WithSource("test.log"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	source := &mockSource{lines: []string{lineGithub, "garbage in the log", lineNasa}}
	sink := &recordingSink{}

	summary, err := a.Process(context.Background(), source, sink)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if summary.Parsed != 2 {
		t.Errorf("Parsed = %d, want 2", summary.Parsed)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Skipped)
	}
	if summary.Lines != 3 {
		t.Errorf("Lines = %d, want 3", summary.Lines)
	}
	if sink.calls != 2 {
		t.Errorf("sink calls = %d, want 2", sink.calls)
	}
	if summary.Clean() {
		t.Error("Clean() = true, want false")
	}
	if summary.Source != "test.log" {
		t.Errorf("Source = %q, want test.log", summary.Source)
	}
}

func TestProcess_PreservesOrder(t *testing.T) {
	a, err := New(WithValidator(existing("test.log")), WithSource("test.log"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	source := &mockSource{lines: []string{lineNasa, lineGithub, lineEchoed, lineGoogle}}
	sink := &recordingSink{}

	if _, err := a.Process(context.Background(), source, sink); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []string{"www.nasa.gov", "github.com", "host.example.com", "google.com"}
	if len(sink.records) != len(want) {
		t.Fatalf("stored %d records, want %d", len(sink.records), len(want))
	}
	for i, q := range want {
		if sink.records[i].Query != q {
			t.Errorf("record %d Query = %q, want %q", i, sink.records[i].Query, q)
		}
	}
}

func TestProcess_SinkFailures(t *testing.T) {
	a, err := New(WithValidator(existing("test.log")), WithSource("test.log"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	source := &mockSource{lines: []string{lineGithub, lineGoogle, "bad", lineNasa}}
	sink := &recordingSink{failFor: map[string]bool{"google.com": true}}

	summary, err := a.Process(context.Background(), source, sink)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if summary.Parsed != 3 || summary.Stored != 2 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Errorf("summary = parsed %d stored %d failed %d skipped %d, want 3/2/1/1",
			summary.Parsed, summary.Stored, summary.Failed, summary.Skipped)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(summary.Failures))
	}
	f := summary.Failures[0]
	if f.LineNum != 2 || f.Record.Query != "google.com" || f.Err == nil {
		t.Errorf("Failure = %+v, want line 2 google.com with error", f)
	}
	// The record after the failure is still stored
	if len(sink.records) != 2 || sink.records[1].Query != "www.nasa.gov" {
		t.Errorf("records = %+v, want github.com and www.nasa.gov", sink.records)
	}
}

func TestProcess_MaxFailures(t *testing.T) {
	a, err := New(WithValidator(existing("test.log")), WithSource("test.log"), WithMaxFailures(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	failing := SinkFunc(func(ctx context.Context, rec parser.QueryRecord) error {
		return errors.New("unavailable")
	})

	summary, err := a.Process(context.Background(), &mockSource{lines: []string{lineGithub, lineGoogle, lineNasa}}, failing)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if summary.Failed != 3 {
		t.Errorf("Failed = %d, want 3", summary.Failed)
	}
	if len(summary.Failures) != 1 {
		t.Errorf("Failures = %d, want 1", len(summary.Failures))
	}
}

func TestProcess_ReadError(t *testing.T) {
	a, err := New(WithValidator(existing("test.log")), WithSource("test.log"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	source := &mockSource{lines: []string{lineGithub}, err: errors.New("device error")}
	summary, err := a.Process(context.Background(), source, &recordingSink{})
	if err == nil {
		t.Fatal("Process() expected read error")
	}
	if summary == nil || summary.Stored != 1 {
		t.Errorf("summary = %+v, want Stored = 1 before the read error", summary)
	}
}

// cancellingSink cancels the run after storing its first record.
type cancellingSink struct {
	cancel context.CancelFunc
	stored int
}

func (s *cancellingSink) Store(ctx context.Context, rec parser.QueryRecord) error {
	s.stored++
	s.cancel()
	return nil
}

func TestProcess_CancelledMidBatchKeepsCounts(t *testing.T) {
	a, err := New(WithValidator(existing("test.log")), WithSource("test.log"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancellingSink{cancel: cancel}

	summary, err := a.Process(ctx, &mockSource{lines: []string{lineGithub, lineGoogle, lineNasa}}, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
	if summary == nil {
		t.Fatal("Process() returned nil summary")
	}
	if summary.Stored != sink.stored || summary.Stored != 1 {
		t.Errorf("Stored = %d, sink stored %d, want 1", summary.Stored, sink.stored)
	}
}

func TestProcess_ContextCancellation(t *testing.T) {
	a, err := New(WithValidator(existing("test.log")), WithSource("test.log"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = a.Process(ctx, &mockSource{lines: []string{lineGithub}}, &recordingSink{})
	if err != context.Canceled {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
}

func TestRun_File(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "query.log")
	content := lineGithub + "\n" + lineGoogle + "\n" + lineNasa + "\n"
	if err := os.WriteFile(logFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p := parser.NewParser(parser.WithLocation(time.UTC))
	a, err := New(WithParser(p), WithSource(logFile))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sink := &recordingSink{}
	summary, err := a.Run(context.Background(), sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Parsed != 3 || summary.Skipped != 0 {
		t.Errorf("Parsed = %d, Skipped = %d, want 3, 0", summary.Parsed, summary.Skipped)
	}
	want := parser.QueryRecord{
		Timestamp: time.Date(2012, 3, 28, 16, 48, 32, 0, time.UTC),
		Client:    "192.168.10.201",
		Query:     "google.com",
		QType:     "AAAA",
		Server:    "192.168.10.1",
	}
	if got := sink.records[1]; !got.Timestamp.Equal(want.Timestamp) || got.Client != want.Client ||
		got.Query != want.Query || got.QType != want.QType || got.Server != want.Server {
		t.Errorf("record = %+v, want %+v", got, want)
	}
	if !summary.Clean() {
		t.Error("Clean() = false, want true")
	}
}

func TestRun_OversizedLineSkipped(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "query.log")
	junk := strings.Repeat("x", 2*parser.MaxLineSize)
	content := lineGithub + "\n" + junk + "\n" + lineNasa + "\n"
	if err := os.WriteFile(logFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := New(WithSource(logFile))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sink := &recordingSink{}
	summary, err := a.Run(context.Background(), sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Lines != 3 || summary.Parsed != 2 || summary.Skipped != 1 {
		t.Errorf("Lines = %d, Parsed = %d, Skipped = %d, want 3, 2, 1",
			summary.Lines, summary.Parsed, summary.Skipped)
	}
	if sink.calls != 2 || sink.records[1].Query != "www.nasa.gov" {
		t.Errorf("sink calls = %d, records = %+v", sink.calls, sink.records)
	}
}

func TestSummary_Add(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Summary{Lines: 2, Parsed: 2, Stored: 2, StartTime: t0.Add(time.Minute), EndTime: t0.Add(2 * time.Minute)}
	s.Add(&Summary{
		Lines: 3, Parsed: 2, Stored: 1, Skipped: 1, Failed: 1,
		Failures:  []SinkFailure{{LineNum: 2}},
		StartTime: t0, EndTime: t0.Add(3 * time.Minute),
	})

	if s.Lines != 5 || s.Parsed != 4 || s.Stored != 3 || s.Skipped != 1 || s.Failed != 1 {
		t.Errorf("Add() = %+v", s)
	}
	if len(s.Failures) != 1 {
		t.Errorf("Failures = %d, want 1", len(s.Failures))
	}
	if !s.StartTime.Equal(t0) || !s.EndTime.Equal(t0.Add(3*time.Minute)) {
		t.Errorf("time range = %v - %v", s.StartTime, s.EndTime)
	}
}

func TestSourceState_String(t *testing.T) {
	if StateUnset.String() != "unset" || StateBound.String() != "bound" {
		t.Errorf("String() = %q, %q", StateUnset, StateBound)
	}
}
