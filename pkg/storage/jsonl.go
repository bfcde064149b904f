package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

// JSONLStore writes one JSON object per record. Each Store call writes its
// line before returning, so a failed write is reported on that record.
type JSONLStore struct {
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONL writes records to w. Close does not close w.
func NewJSONL(w io.Writer) *JSONLStore {
	return &JSONLStore{enc: json.NewEncoder(w)}
}

// OpenJSONL appends records to the file at path; "-" or "" writes to stdout.
func OpenJSONL(path string) (*JSONLStore, error) {
	if path == "" || path == "-" {
		return NewJSONL(os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G304 -- user-provided output path
	if err != nil {
		return nil, fmt.Errorf("opening jsonl output %s: %w", path, err)
	}
	s := NewJSONL(f)
	s.closer = f
	return s, nil
}

// Store writes one record.
func (s *JSONLStore) Store(_ context.Context, rec parser.QueryRecord) error {
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("writing record for %s: %w", rec.Query, err)
	}
	return nil
}

// Close closes the file, if any.
func (s *JSONLStore) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
