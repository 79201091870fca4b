package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/oikos-cash/oikos-data-bsc/internal/model"
)

// Stdout selects standard output as the JSONL destination.
const Stdout = "-"

// JsonlStorage appends records to a JSONL file or writer.
type JsonlStorage struct {
	path string
	w    io.Writer
	mu   sync.Mutex
}

// NewJsonlStorage writes to path, or to standard output for Stdout.
func NewJsonlStorage(path string) *JsonlStorage {
	if path == Stdout {
		return &JsonlStorage{w: os.Stdout}
	}
	return &JsonlStorage{path: path}
}

// NewJsonlWriter writes to w.
func NewJsonlWriter(w io.Writer) *JsonlStorage {
	return &JsonlStorage{w: w}
}

// PutRecords appends a batch of records as JSON lines.
func (s *JsonlStorage) PutRecords(_ context.Context, records []model.Envelope) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w != nil {
		return writeLines(s.w, records)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	return writeLines(file, records)
}

func writeLines(w io.Writer, records []model.Envelope) error {
	writer := bufio.NewWriter(w)
	enc := json.NewEncoder(writer)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("write record %s/%s: %w", record.Entity, record.Key, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
