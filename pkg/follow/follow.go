// Package follow tails a growing query log and feeds each appended line
// through a LogAnalyzer.
package follow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ccollicutt/bindlog/pkg/analyzer"
	"github.com/ccollicutt/bindlog/pkg/parser"
)

// Follower watches the analyzer's bound source and processes lines as they
// are appended. Only complete lines are processed; a trailing partial line
// waits for its newline.
type Follower struct {
	analyzer  *analyzer.LogAnalyzer
	sink      analyzer.Sink
	logger    zerolog.Logger
	fromStart bool
	onBatch   func(*analyzer.Summary)

	path   string // absolute path currently tailed
	offset int64  // bytes consumed from path
	line   int    // lines consumed from path
}

// Option configures a Follower.
type Option func(*Follower)

// WithLogger sets the logger. The default discards output.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Follower) {
		f.logger = l
	}
}

// FromStart processes the existing file contents before tailing.
// By default only lines written after Run starts are processed.
func FromStart(enabled bool) Option {
	return func(f *Follower) {
		f.fromStart = enabled
	}
}

// WithBatchHandler registers a callback invoked with the summary of every
// batch of appended lines.
func WithBatchHandler(fn func(*analyzer.Summary)) Option {
	return func(f *Follower) {
		f.onBatch = fn
	}
}

// New creates a Follower. The analyzer must have a bound source.
func New(a *analyzer.LogAnalyzer, sink analyzer.Sink, opts ...Option) (*Follower, error) {
	if a == nil || sink == nil {
		return nil, errors.New("follow: analyzer and sink are required")
	}
	if _, ok := a.CurrentSource(); !ok {
		return nil, analyzer.ErrNoSourceBound
	}

	f := &Follower{
		analyzer: a,
		sink:     sink,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Run tails the source until ctx is cancelled and returns the combined
// summary of every batch. Cancellation is a normal stop, not an error.
func (f *Follower) Run(ctx context.Context) (*analyzer.Summary, error) {
	total := &analyzer.Summary{}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := f.switchSource(watcher); err != nil {
		return nil, err
	}

	if !f.fromStart {
		if err := f.skipExisting(); err != nil {
			return nil, err
		}
	}

	if err := f.drain(ctx, total); err != nil {
		return stopped(total, err)
	}

	for {
		select {
		case <-ctx.Done():
			return total, nil

		case event, ok := <-watcher.Events:
			if !ok {
				return total, nil
			}

			if ref, _ := f.analyzer.CurrentSource(); absPath(ref) != f.path {
				if err := f.switchSource(watcher); err != nil {
					return total, err
				}
			}

			if absPath(event.Name) != f.path {
				continue
			}
			f.logger.Trace().Str("file", event.Name).Stringer("op", event.Op).Msg("fsnotify event")

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if err := f.drain(ctx, total); err != nil {
					return stopped(total, err)
				}
			case event.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
				f.logger.Info().Str("file", f.path).Msg("log file rotated, waiting for new file")
				f.offset, f.line = 0, 0
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return total, nil
			}
			f.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// switchSource starts tailing the analyzer's current source from its start.
func (f *Follower) switchSource(watcher *fsnotify.Watcher) error {
	ref, ok := f.analyzer.CurrentSource()
	if !ok {
		return analyzer.ErrNoSourceBound
	}

	path := absPath(ref)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	if f.path != "" && f.path != path {
		f.logger.Info().Str("from", f.path).Str("to", path).Msg("log source changed")
	}
	f.path = path
	f.offset, f.line = 0, 0
	return nil
}

// drain processes every complete line appended since the last call.
func (f *Follower) drain(ctx context.Context, total *analyzer.Summary) error {
	lines, err := f.readAppended()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	first := f.line + 1
	f.line += len(lines)

	summary, err := f.analyzer.Process(ctx, parser.NewSliceSource(f.path, first, lines), f.sink)
	if summary != nil {
		total.Add(summary)
	}
	if err != nil {
		return err
	}

	f.logger.Debug().
		Int("lines", summary.Lines).
		Int("stored", summary.Stored).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("processed appended lines")

	if f.onBatch != nil {
		f.onBatch(summary)
	}
	return nil
}

// readAppended returns complete lines written after offset and advances it.
// A file shorter than offset was truncated and is read from the start.
func (f *Follower) readAppended() ([]string, error) {
	file, err := os.Open(f.path) // #nosec G304 -- path is the bound log source
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < f.offset {
		f.logger.Info().Str("file", f.path).Msg("log file truncated, reading from start")
		f.offset, f.line = 0, 0
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}

	var lines []string
	reader := bufio.NewReader(file)
	for {
		s, err := reader.ReadString('\n')
		if err == io.EOF {
			// Partial line stays unconsumed until its newline arrives.
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		f.offset += int64(len(s))
		lines = append(lines, strings.TrimRight(s, "\r\n"))
	}
}

// skipExisting consumes the lines already in the file without processing them.
func (f *Follower) skipExisting() error {
	lines, err := f.readAppended()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f.line += len(lines)
	return nil
}

func stopped(total *analyzer.Summary, err error) (*analyzer.Summary, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return total, nil
	}
	return total, err
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
