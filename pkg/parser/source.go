package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileSource implements LineSource for reading from log files.
// Files are read one after another, in the order given.
type FileSource struct {
	files []string

	currentFile   *os.File
	currentReader *bufio.Reader
	currentSource string
	currentLine   int
	fileIndex     int
}

// MaxLineSize is the number of bytes kept from a single line. The rest of a
// longer line is discarded and the line is marked Truncated.
const MaxLineSize = 1024 * 1024

// NewFileSource creates a LineSource that reads from the given files.
func NewFileSource(files ...string) *FileSource {
	return &FileSource{
		files:     files,
		fileIndex: -1,
	}
}

// Next returns the next raw line.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*LogLine, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentReader == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		content, truncated, err := readLine(s.currentReader)
		if err == nil {
			s.currentLine++
			return &LogLine{
				Content:   content,
				Source:    s.currentSource,
				LineNum:   s.currentLine,
				Truncated: truncated,
			}, nil
		}
		if err != io.EOF {
			return nil, fmt.Errorf("reading %s: %w", s.currentSource, err)
		}

		// Current file exhausted, try next
		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}

	s.currentFile = f
	s.currentReader = bufio.NewReader(f)
	s.currentSource = path
	s.currentLine = 0

	return nil
}

func (s *FileSource) closeCurrentFile() error {
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		s.currentReader = nil
		return err
	}
	return nil
}

// readLine returns the next line without its line ending. At most
// MaxLineSize bytes are kept; the bool reports whether more were dropped.
// A final line without a newline is returned before io.EOF.
func readLine(r *bufio.Reader) (string, bool, error) {
	var buf []byte
	read := 0
	truncated := false
	for {
		chunk, err := r.ReadSlice('\n')
		read += len(chunk)
		if err == nil {
			chunk = chunk[:len(chunk)-1]
		}
		if room := MaxLineSize - len(buf); len(chunk) > room {
			buf = append(buf, chunk[:room]...)
			truncated = true
		} else {
			buf = append(buf, chunk...)
		}

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read == 0:
			return "", false, io.EOF
		case err != nil && err != io.EOF:
			return "", false, err
		}
		return strings.TrimSuffix(string(buf), "\r"), truncated, nil
	}
}

// SliceSource is a LineSource over lines already in memory.
type SliceSource struct {
	source string
	first  int
	lines  []string
	index  int
}

// NewSliceSource returns a source yielding lines in order. Line numbers
// start at firstLine (1 if firstLine < 1).
func NewSliceSource(source string, firstLine int, lines []string) *SliceSource {
	if firstLine < 1 {
		firstLine = 1
	}
	return &SliceSource{source: source, first: firstLine, lines: lines}
}

// Next returns the next line or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*LogLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index >= len(s.lines) {
		return nil, io.EOF
	}
	line := &LogLine{
		Content: s.lines[s.index],
		Source:  s.source,
		LineNum: s.first + s.index,
	}
	s.index++
	return line, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error {
	return nil
}
