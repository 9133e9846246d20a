package query

import (
	"context"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the data for one query.
type Fetcher func(ctx context.Context) (interface{}, error)

// Listener receives every state change of an observed query.
type Listener func(State)

// Config controls cache and fetch behavior.
type Config struct {
	// CacheSize bounds the number of cached entries (LRU).
	CacheSize int
	// CacheTTL evicts entries this long after they were stored. Zero keeps them.
	CacheTTL time.Duration
	// StaleTime marks successful data stale after this long. Zero keeps it
	// fresh until invalidated.
	StaleTime    time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Metrics      *Metrics
}

type entry struct {
	key     Key
	fetcher Fetcher
	state   State
	// gen is bumped by every invalidation; a fetch that started under an
	// older generation leaves the entry stale.
	gen uint64
}

type observer struct {
	key       Key
	fetcher   Fetcher
	listeners map[uint64]Listener
}

// Client caches query results by key, collapses concurrent fetches of the
// same key and supports invalidation by filter.
type Client struct {
	cfg     Config
	store   gcache.Cache
	group   singleflight.Group
	logger  *zap.Logger
	metrics *Metrics

	mu        sync.Mutex
	observers map[string]*observer
	nextID    uint64

	wg sync.WaitGroup
}

// NewClient builds a query client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		metrics:   cfg.Metrics,
		observers: make(map[string]*observer),
	}

	builder := gcache.New(cfg.CacheSize).LRU().EvictedFunc(func(key, _ interface{}) {
		c.metrics.evicted()
		c.logger.Debug("query evicted", zap.Any("key", key))
	})
	if cfg.CacheTTL > 0 {
		builder = builder.Expiration(cfg.CacheTTL)
	}
	c.store = builder.Build()

	return c
}

// Query returns fresh cached data for key, or fetches it. Concurrent calls
// for the same key share one fetch.
func (c *Client) Query(ctx context.Context, key Key, fetch Fetcher) State {
	hash := key.Hash()

	c.mu.Lock()
	e := c.lookup(hash)
	if e != nil && e.state.Status == StatusSuccess && !c.isStale(e) {
		e.fetcher = fetch
		state := c.snapshot(e)
		c.mu.Unlock()
		c.metrics.hit()
		return state
	}
	if e == nil {
		e = &entry{key: key}
		c.put(hash, e)
	}
	e.fetcher = fetch
	if obs, ok := c.observers[hash]; ok {
		obs.fetcher = fetch
	}
	c.mu.Unlock()

	c.metrics.miss()
	return c.fetch(ctx, key, fetch)
}

// Fetch fetches key with fetch regardless of its cached state and registers
// fetch for later refetches.
func (c *Client) Fetch(ctx context.Context, key Key, fetch Fetcher) State {
	hash := key.Hash()

	c.mu.Lock()
	if e := c.lookup(hash); e != nil {
		e.fetcher = fetch
	}
	if obs, ok := c.observers[hash]; ok {
		obs.fetcher = fetch
	}
	c.mu.Unlock()

	return c.fetch(ctx, key, fetch)
}

// Refetch fetches key again regardless of its cached state, using the last
// fetcher registered for it. Unknown keys return an idle state.
func (c *Client) Refetch(ctx context.Context, key Key) State {
	hash := key.Hash()

	c.mu.Lock()
	var fetch Fetcher
	if e := c.lookup(hash); e != nil {
		fetch = e.fetcher
	}
	if fetch == nil {
		if obs, ok := c.observers[hash]; ok {
			fetch = obs.fetcher
		}
	}
	c.mu.Unlock()

	if fetch == nil {
		return State{}
	}
	return c.fetch(ctx, key, fetch)
}

// Peek returns the cached state for key without fetching.
func (c *Client) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(key.Hash())
	if e == nil {
		return State{}, false
	}
	return c.snapshot(e), true
}

// Invalidate marks every cached entry matched by filter as stale and returns
// the keys that were not already stale.
func (c *Client) Invalidate(filter Filter) []Key {
	invalidated, _ := c.invalidate(filter)
	return invalidated
}

// InvalidateAndRefetch invalidates like Invalidate and starts a background
// refetch for each matched key that has listeners. It does not wait for those
// fetches. A fetch already in flight for a key is joined, and the key is
// fetched once more after it returns.
func (c *Client) InvalidateAndRefetch(ctx context.Context, filter Filter) []Key {
	invalidated, matched := c.invalidate(filter)
	for _, key := range matched {
		if !c.observed(key.Hash()) {
			continue
		}
		c.wg.Add(1)
		go func(key Key) {
			defer c.wg.Done()
			c.Refetch(ctx, key)
		}(key)
	}
	return invalidated
}

func (c *Client) invalidate(filter Filter) ([]Key, []Key) {
	c.mu.Lock()
	var invalidated, matched []Key
	for _, value := range c.store.GetALL(true) {
		e, ok := value.(*entry)
		if !ok || !filter.Match(e.key) {
			continue
		}
		e.gen++
		matched = append(matched, e.key)
		if e.state.IsStale {
			continue
		}
		e.state.IsStale = true
		invalidated = append(invalidated, e.key)
	}
	c.mu.Unlock()

	c.metrics.invalidated(len(invalidated))
	return invalidated, matched
}

// Subscribe registers listener for state changes of key. The returned
// function removes it.
func (c *Client) Subscribe(key Key, listener Listener) func() {
	hash := key.Hash()

	c.mu.Lock()
	obs, ok := c.observers[hash]
	if !ok {
		obs = &observer{key: key, listeners: make(map[uint64]Listener)}
		if e := c.lookup(hash); e != nil {
			obs.fetcher = e.fetcher
		}
		c.observers[hash] = obs
	}
	c.nextID++
	id := c.nextID
	obs.listeners[id] = listener
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if obs, ok := c.observers[hash]; ok {
				delete(obs.listeners, id)
				if len(obs.listeners) == 0 {
					delete(c.observers, hash)
				}
			}
		})
	}
}

// Remove drops key from the cache.
func (c *Client) Remove(key Key) {
	c.mu.Lock()
	c.store.Remove(key.Hash())
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Client) Len() int {
	return c.store.Len(true)
}

// Wait blocks until background refetches started by InvalidateAndRefetch finish.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) fetch(ctx context.Context, key Key, fetch Fetcher) State {
	hash := key.Hash()
	var released chan struct{}
	value, _, _ := c.group.Do(hash, func() (interface{}, error) {
		gen := c.begin(hash, key, fetch)

		var data interface{}
		err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
			result, err := fetch(ctx)
			if err != nil {
				return err
			}
			data = result
			return nil
		})
		if err != nil {
			c.logger.Debug("query fetch failed", zap.String("key", hash), zap.Error(err))
		}
		c.metrics.fetched(err)

		state, again := c.finish(hash, key, fetch, gen, data, err)
		if again {
			released = make(chan struct{})
			c.wg.Add(1)
			go c.followUp(ctx, key, released)
		}
		return state, nil
	})
	if released != nil {
		close(released)
	}
	return value.(State)
}

// followUp refetches key once the fetch that returned stale data has left the
// singleflight group, unless another fetch refreshed it first.
func (c *Client) followUp(ctx context.Context, key Key, released <-chan struct{}) {
	defer c.wg.Done()
	<-released
	if state, ok := c.Peek(key); ok && !state.IsStale {
		return
	}
	c.Refetch(context.WithoutCancel(ctx), key)
}

func (c *Client) begin(hash string, key Key, fetch Fetcher) uint64 {
	c.mu.Lock()
	e := c.lookup(hash)
	if e == nil {
		e = &entry{key: key, fetcher: fetch}
		c.put(hash, e)
	}
	e.state.FetchStatus = Fetching
	if e.state.Status == StatusIdle {
		e.state.Status = StatusLoading
	}
	gen := e.gen
	state := c.snapshot(e)
	listeners := c.listeners(hash)
	c.mu.Unlock()

	notify(listeners, state)
	return gen
}

// finish stores a fetch result. It reports whether the entry was invalidated
// while the fetch ran and still has listeners.
func (c *Client) finish(hash string, key Key, fetch Fetcher, gen uint64, data interface{}, err error) (State, bool) {
	c.mu.Lock()
	e := c.lookup(hash)
	if e == nil {
		e = &entry{key: key, fetcher: fetch, gen: gen}
		c.put(hash, e)
	}
	e.state.FetchStatus = FetchIdle
	e.state.FetchCount++
	if err != nil {
		e.state.Err = err
		e.state.Status = StatusError
	} else {
		e.state.Data = data
		e.state.Err = nil
		e.state.Status = StatusSuccess
		e.state.UpdatedAt = time.Now()
		e.state.IsStale = e.gen != gen
	}
	state := c.snapshot(e)
	listeners := c.listeners(hash)
	again := e.gen != gen && len(listeners) > 0
	c.mu.Unlock()

	notify(listeners, state)
	return state, again
}

func (c *Client) lookup(hash string) *entry {
	value, err := c.store.GetIFPresent(hash)
	if err != nil {
		return nil
	}
	e, _ := value.(*entry)
	return e
}

func (c *Client) put(hash string, e *entry) {
	if err := c.store.Set(hash, e); err != nil {
		c.logger.Warn("query cache set failed", zap.String("key", hash), zap.Error(err))
	}
}

func (c *Client) isStale(e *entry) bool {
	if e.state.IsStale {
		return true
	}
	return c.cfg.StaleTime > 0 && time.Since(e.state.UpdatedAt) > c.cfg.StaleTime
}

func (c *Client) snapshot(e *entry) State {
	state := e.state
	state.IsStale = c.isStale(e)
	return state
}

func (c *Client) observed(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	obs, ok := c.observers[hash]
	return ok && len(obs.listeners) > 0
}

func (c *Client) listeners(hash string) []Listener {
	obs, ok := c.observers[hash]
	if !ok {
		return nil
	}
	out := make([]Listener, 0, len(obs.listeners))
	for _, l := range obs.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, state State) {
	for _, l := range listeners {
		l(state)
	}
}
