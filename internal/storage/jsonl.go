package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"readScope/internal/model"
)

// JsonlStorage is a Storage backed by an append-only file, one snapshot per line.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) PutBalanceBatch(snapshots []model.BalanceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	enc := json.NewEncoder(buf)
	for i := range snapshots {
		// Encode terminates each value with a newline.
		if err := enc.Encode(&snapshots[i]); err != nil {
			return fmt.Errorf("encode snapshot %s/%s: %w", snapshots[i].Token, snapshots[i].Owner, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush snapshots: %w", err)
	}
	return nil
}
