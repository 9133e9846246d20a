package contract

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"readScope/internal/chain"
	"readScope/internal/model"
	"readScope/internal/query"
	"readScope/internal/watch"
)

// ReadRequest describes a read as the caller sees it. Missing fields make the
// request incomplete; incomplete requests never reach the network.
type ReadRequest struct {
	Contract     *Contract
	FunctionName string
	Args         []interface{}
	Block        model.BlockSelector
	// Watch refreshes the read on every new block. Only bound calls honor it.
	Watch bool
}

// ReadResponse is the outcome of a read. Failures are reported in Err.
type ReadResponse struct {
	query.State
	Key CacheKey
	// Dispatched is false when the request was incomplete and nothing was read.
	Dispatched bool

	refetch func(context.Context) ReadResponse
}

// Refetch reads the same request again regardless of cached state. An
// undispatched response refetches to itself.
func (r ReadResponse) Refetch(ctx context.Context) ReadResponse {
	if r.refetch == nil {
		return r
	}
	return r.refetch(ctx)
}

// Values returns the decoded outputs of a successful read.
func (r ReadResponse) Values() ([]interface{}, bool) {
	values, ok := r.Data.([]interface{})
	return values, ok
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Scope  watch.Scope
	Logger *zap.Logger
}

// Reader issues contract reads through a query client.
type Reader struct {
	ctx     context.Context
	queries *query.Client
	scope   watch.Scope
	rounds  *watch.Rounds
	logger  *zap.Logger
}

// NewReader builds a Reader. ctx bounds refetches triggered by new blocks.
func NewReader(ctx context.Context, queries *query.Client, opts ReaderOptions) *Reader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		ctx:     ctx,
		queries: queries,
		scope:   opts.Scope,
		rounds:  watch.NewRounds(),
		logger:  logger,
	}
}

// Read performs a one-shot read. Cached fresh data is returned without a
// network call.
func (r *Reader) Read(ctx context.Context, provider chain.Provider, req ReadRequest) ReadResponse {
	return r.read(ctx, describe(provider, req), false)
}

// Refetch reads again regardless of cached state.
func (r *Reader) Refetch(ctx context.Context, provider chain.Provider, req ReadRequest) ReadResponse {
	return r.read(ctx, describe(provider, req), true)
}

func (r *Reader) read(ctx context.Context, desc Descriptor, force bool) ReadResponse {
	resp := ReadResponse{Key: desc.Key()}
	method, ok := resolve(desc)
	if !ok {
		return resp
	}

	resp.Dispatched = true
	resp.refetch = func(ctx context.Context) ReadResponse {
		return r.read(ctx, desc, true)
	}
	fetch := fetcher(method, desc)
	if force {
		resp.State = r.queries.Fetch(ctx, resp.Key, fetch)
	} else {
		resp.State = r.queries.Query(ctx, resp.Key, fetch)
	}
	return resp
}

func describe(provider chain.Provider, req ReadRequest) Descriptor {
	desc := Descriptor{
		Contract:     req.Contract,
		FunctionName: req.FunctionName,
		Args:         req.Args,
		Block:        req.Block,
	}
	if provider != nil {
		desc.ChainID = provider.ChainID()
	}
	return desc
}

func resolve(desc Descriptor) (Method, bool) {
	if !desc.Complete() {
		return nil, false
	}
	return desc.Contract.Method(desc.FunctionName)
}

func fetcher(method Method, desc Descriptor) query.Fetcher {
	args := append([]interface{}(nil), desc.Args...)
	block := desc.Block
	return func(ctx context.Context) (interface{}, error) {
		values, err := method(ctx, block, args...)
		if err != nil {
			return nil, err
		}
		return values, nil
	}
}

// Call is a caller-owned read. It keeps a listener on its cache key and,
// while watching, refreshes it on every new block until Close.
type Call struct {
	reader   *Reader
	provider chain.Provider
	inv      *watch.Invalidator
	listener func(ReadResponse)

	mu       sync.Mutex
	desc     Descriptor
	hash     string
	unlisten func()
}

// Bind creates a Call for req. listener, when set, receives every state
// change of the call's current key.
func (r *Reader) Bind(provider chain.Provider, req ReadRequest, listener func(ReadResponse)) *Call {
	var heads *chain.HeadFeed
	if provider != nil {
		heads = provider.Heads()
	}
	c := &Call{
		reader:   r,
		provider: provider,
		listener: listener,
		inv:      watch.New(r.ctx, r.queries, heads, watch.Options{Scope: r.scope, Rounds: r.rounds, Logger: r.logger}),
	}
	c.Update(req)
	return c
}

// Update replaces the call's inputs. A new key supersedes the old one.
func (c *Call) Update(req ReadRequest) {
	desc := describe(c.provider, req)
	key := desc.Key()
	hash := key.Hash()
	_, dispatchable := resolve(desc)

	c.mu.Lock()
	c.desc = desc
	if c.unlisten != nil && (hash != c.hash || !dispatchable) {
		c.unlisten()
		c.unlisten = nil
		c.hash = ""
	}
	if dispatchable && c.unlisten == nil {
		c.hash = hash
		c.unlisten = c.reader.queries.Subscribe(key, func(state query.State) {
			if c.listener != nil {
				c.listener(ReadResponse{
					State:      state,
					Key:        key,
					Dispatched: true,
					refetch: func(ctx context.Context) ReadResponse {
						return c.reader.read(ctx, desc, true)
					},
				})
			}
		})
	}
	c.mu.Unlock()

	if dispatchable {
		c.inv.Update(req.Watch, key)
	} else {
		c.inv.Update(false, nil)
	}
}

// Result reads the call's current inputs.
func (c *Call) Result(ctx context.Context) ReadResponse {
	return c.reader.read(ctx, c.descriptor(), false)
}

// Refetch reads the call's current inputs regardless of cached state.
func (c *Call) Refetch(ctx context.Context) ReadResponse {
	return c.reader.read(ctx, c.descriptor(), true)
}

// Key returns the cache key of the current inputs.
func (c *Call) Key() CacheKey {
	return c.descriptor().Key()
}

// Watching reports whether new blocks currently refresh this call.
func (c *Call) Watching() bool {
	return c.inv.State() == watch.Watching
}

// Close stops watching and drops the listener.
func (c *Call) Close() {
	c.inv.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unlisten != nil {
		c.unlisten()
		c.unlisten = nil
		c.hash = ""
	}
}

func (c *Call) descriptor() Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desc
}
