package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/DominicTanzillo/Panacea/internal/classify"
)

// JSONL writes one JSON object per line.
type JSONL struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewJSONL writes to w. Close does not close w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{w: w}
}

// OpenJSONL appends to the file at path, creating it if needed.
func OpenJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &JSONL{w: f, closer: f}, nil
}

func (s *JSONL) Write(ctx context.Context, records []classify.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing record %d: %w", r.NoradID, err)
		}
	}
	return nil
}

func (s *JSONL) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
