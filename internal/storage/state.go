package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"readScope/internal/model"
)

// StateStore persists the last block head handled by a watcher.
type StateStore interface {
	Load(ctx context.Context) (model.Head, bool, error)
	Save(ctx context.Context, head model.Head) error
}

// FileStateStore stores state in a local JSON file.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	Timestamp   uint64 `json:"block_timestamp"`
	UpdatedAt   string `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (model.Head, bool, error) {
	if s == nil || s.Path == "" {
		return model.Head{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Head{}, false, nil
		}
		return model.Head{}, false, fmt.Errorf("read state: %w", err)
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Head{}, false, fmt.Errorf("parse state: %w", err)
	}
	return model.Head{Number: rec.BlockNumber, Hash: rec.BlockHash, Timestamp: rec.Timestamp}, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, head model.Head) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	rec := stateRecord{
		BlockNumber: head.Number,
		BlockHash:   head.Hash,
		Timestamp:   head.Timestamp,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
