package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readScope/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "balances.jsonl")
	s := NewJsonlStorage(path)

	require.NoError(t, s.PutBalanceBatch(nil))
	require.NoError(t, s.PutBalanceBatch([]model.BalanceSnapshot{{Owner: "a", Formatted: "1.5"}}))
	require.NoError(t, s.PutBalanceBatch([]model.BalanceSnapshot{{Owner: "b", Formatted: "2"}}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var owners []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var snap model.BalanceSnapshot
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &snap))
		owners = append(owners, snap.Owner)
	}
	assert.Equal(t, []string{"a", "b"}, owners)
}

type failing struct{ calls int }

func (f *failing) PutBalanceBatch([]model.BalanceSnapshot) error {
	f.calls++
	return errors.New("disk full")
}

func TestMultiStopsAtFirstFailure(t *testing.T) {
	first := &failing{}
	second := &failing{}
	err := Multi{first, second}.PutBalanceBatch([]model.BalanceSnapshot{{}})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestFileStateStore(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	head := model.Head{Number: 19000000, Hash: "0xabc", Timestamp: 1700000000}
	require.NoError(t, store.Save(context.Background(), head))

	loaded, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, head, loaded)

	var nilStore *FileStateStore
	assert.NoError(t, nilStore.Save(context.Background(), head))
}
