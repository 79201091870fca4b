package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileCursorStore keeps a cursor in a local JSON file. Writes go through a
// temporary file and a rename.
type FileCursorStore struct {
	Path string
}

type cursorRecord struct {
	LastTimestamp int64  `json:"last_timestamp"`
	UpdatedAt     string `json:"updated_at"`
}

func (s *FileCursorStore) Load(_ context.Context) (int64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}

	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat cursor: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("cursor path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, false, fmt.Errorf("read cursor: %w", err)
	}

	var rec cursorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, false, fmt.Errorf("parse cursor: %w", err)
	}
	return rec.LastTimestamp, true, nil
}

func (s *FileCursorStore) Save(_ context.Context, ts int64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	data, err := json.Marshal(cursorRecord{
		LastTimestamp: ts,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}
	return nil
}
