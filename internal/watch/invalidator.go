package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"readScope/internal/chain"
	"readScope/internal/model"
	"readScope/internal/query"
)

// EntityReadContract is the entity tag carried by contract read keys.
const EntityReadContract = "readContract"

// State is the invalidator lifecycle state.
type State int

const (
	Idle State = iota
	Watching
)

func (s State) String() string {
	if s == Watching {
		return "watching"
	}
	return "idle"
}

// Scope selects which cached reads a new block invalidates.
type Scope int

const (
	// ScopeKey invalidates only the watched key.
	ScopeKey Scope = iota
	// ScopeEntity invalidates every contract read.
	ScopeEntity
)

// ParseScope parses "key" or "entity".
func ParseScope(input string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "key":
		return ScopeKey, nil
	case "entity":
		return ScopeEntity, nil
	default:
		return ScopeKey, fmt.Errorf("unsupported invalidate scope: %s", input)
	}
}

// Rounds records the last head handled for each invalidation target.
// Invalidators sharing one handle a target once per head.
type Rounds struct {
	mu   sync.Mutex
	last map[string]model.Head
}

func NewRounds() *Rounds {
	return &Rounds{last: make(map[string]model.Head)}
}

// Claim reports whether target is unhandled for head and marks it handled.
func (r *Rounds) Claim(target string, head model.Head) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.last[target]; ok && prev.Number == head.Number && prev.Hash == head.Hash {
		return false
	}
	r.last[target] = head
	return true
}

// Options configures an Invalidator.
type Options struct {
	Scope  Scope
	Logger *zap.Logger
	// Rounds, when shared, skips targets another invalidator already handled
	// for the same head.
	Rounds *Rounds
	// OnInvalidate runs after each handled head with the keys newly marked stale.
	OnInvalidate func(head model.Head, keys []query.Key)
}

// Invalidator marks a watched read stale on every new block.
type Invalidator struct {
	ctx     context.Context
	queries *query.Client
	feed    *chain.HeadFeed
	opts    Options
	logger  *zap.Logger

	mu    sync.Mutex
	state State
	key   query.Key
	last  model.Head
	sub   event.Subscription
	done  chan struct{}
	wg    sync.WaitGroup
}

// New builds an idle Invalidator. ctx bounds the refetches it triggers.
func New(ctx context.Context, queries *query.Client, feed *chain.HeadFeed, opts Options) *Invalidator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{
		ctx:     ctx,
		queries: queries,
		feed:    feed,
		opts:    opts,
		logger:  logger,
	}
}

// Update applies the caller's current inputs. It starts watching when watch
// is set and key is non-nil, and stops otherwise. A key change while watching
// keeps the subscription and re-scopes it.
func (i *Invalidator) Update(watch bool, key query.Key) {
	i.mu.Lock()
	if !watch || key == nil || i.feed == nil {
		i.mu.Unlock()
		i.stop()
		return
	}

	i.key = key
	if i.state == Watching {
		i.mu.Unlock()
		return
	}

	heads := make(chan model.Head, 16)
	i.sub = i.feed.Subscribe(heads)
	i.done = make(chan struct{})
	i.state = Watching
	i.wg.Add(1)
	go i.loop(heads, i.sub, i.done)
	i.mu.Unlock()

	i.logger.Debug("watch start", zap.String("key", key.Hash()))
}

// Close releases the subscription. Reads already in flight are not cancelled.
func (i *Invalidator) Close() {
	i.stop()
}

// State reports whether the invalidator is watching.
func (i *Invalidator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Invalidator) stop() {
	i.mu.Lock()
	if i.state == Idle {
		i.key = nil
		i.mu.Unlock()
		return
	}
	i.sub.Unsubscribe()
	close(i.done)
	i.state = Idle
	i.key = nil
	i.last = model.Head{}
	i.mu.Unlock()

	i.wg.Wait()
	i.logger.Debug("watch stop")
}

func (i *Invalidator) loop(heads <-chan model.Head, sub event.Subscription, done <-chan struct{}) {
	defer i.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-sub.Err():
			return
		case head := <-heads:
			i.handle(head)
		}
	}
}

func (i *Invalidator) handle(head model.Head) {
	i.mu.Lock()
	if i.state != Watching || i.key == nil {
		i.mu.Unlock()
		return
	}
	if head.Number == i.last.Number && head.Hash == i.last.Hash {
		i.mu.Unlock()
		return
	}
	i.last = head
	filter := i.filter()
	target := i.target()
	i.mu.Unlock()

	if !i.opts.Rounds.Claim(target, head) {
		i.logger.Debug("block already handled", zap.Uint64("block_number", head.Number), zap.String("target", target))
		return
	}

	keys := i.queries.InvalidateAndRefetch(i.ctx, filter)
	i.logger.Debug("new block invalidation",
		zap.Uint64("block_number", head.Number),
		zap.Int("invalidated", len(keys)),
	)
	if i.opts.OnInvalidate != nil {
		i.opts.OnInvalidate(head, keys)
	}
}

func (i *Invalidator) target() string {
	if i.opts.Scope == ScopeKey {
		return i.key.Hash()
	}
	return EntityReadContract
}

func (i *Invalidator) filter() query.Filter {
	filter := query.Filter{Entity: EntityReadContract}
	if i.opts.Scope == ScopeKey {
		filter.Hashes = []string{i.key.Hash()}
	}
	return filter
}
