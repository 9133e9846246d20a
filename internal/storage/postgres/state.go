package postgres

import (
	"context"

	"readScope/internal/model"
)

// StateStore keeps a watcher's last head in the watch_state table.
type StateStore struct {
	Store *Store
	Name  string
}

func (s *StateStore) Load(ctx context.Context) (model.Head, bool, error) {
	if s == nil || s.Store == nil {
		return model.Head{}, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *StateStore) Save(ctx context.Context, head model.Head) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, head)
}
