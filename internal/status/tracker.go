package status

import (
	"sort"
	"strings"
	"sync"

	"readScope/internal/model"
)

// Tracker keeps the latest head and the latest snapshot per owner.
type Tracker struct {
	mu        sync.RWMutex
	head      model.Head
	snapshots map[string]model.BalanceSnapshot
}

func NewTracker() *Tracker {
	return &Tracker{snapshots: make(map[string]model.BalanceSnapshot)}
}

// SetHead records the last handled head.
func (t *Tracker) SetHead(head model.Head) {
	t.mu.Lock()
	t.head = head
	t.mu.Unlock()
}

// Head returns the last handled head.
func (t *Tracker) Head() model.Head {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head
}

// Record stores snap and reports whether it differs from the previous
// snapshot of the same token and owner.
func (t *Tracker) Record(snap model.BalanceSnapshot) bool {
	key := strings.ToLower(snap.Token + "/" + snap.Owner)

	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.snapshots[key]
	if ok && prev.BlockNumber == snap.BlockNumber && prev.Value == snap.Value && prev.Symbol == snap.Symbol {
		return false
	}
	t.snapshots[key] = snap
	return true
}

// Snapshots returns the latest snapshots ordered by token and owner.
func (t *Tracker) Snapshots() []model.BalanceSnapshot {
	t.mu.RLock()
	out := make([]model.BalanceSnapshot, 0, len(t.snapshots))
	for _, snap := range t.snapshots {
		out = append(out, snap)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Token != out[j].Token {
			return out[i].Token < out[j].Token
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}
