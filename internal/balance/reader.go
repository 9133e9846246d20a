package balance

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"readScope/internal/chain"
	"readScope/internal/contract"
	"readScope/internal/model"
)

// Request describes a token balance read. A missing token or owner makes the
// request incomplete.
type Request struct {
	Token    *common.Address
	Owner    *common.Address
	Decimals uint8
	Block    model.BlockSelector
	Watch    bool
}

// Response carries both sub-reads and, once both succeeded, their combination.
type Response struct {
	Data    *model.BalanceResult
	Balance contract.ReadResponse
	Symbol  contract.ReadResponse

	decimals uint8
}

// Err returns the first sub-read error.
func (r Response) Err() error {
	if r.Balance.Err != nil {
		return r.Balance.Err
	}
	return r.Symbol.Err
}

func (r Response) IsIdle() bool     { return r.Balance.IsIdle() && r.Symbol.IsIdle() }
func (r Response) IsLoading() bool  { return r.Balance.IsLoading() || r.Symbol.IsLoading() }
func (r Response) IsFetching() bool { return r.Balance.IsFetching() || r.Symbol.IsFetching() }
func (r Response) IsError() bool    { return r.Balance.IsError() || r.Symbol.IsError() }
func (r Response) IsSuccess() bool  { return r.Data != nil }
func (r Response) IsFetched() bool  { return r.Balance.IsFetched() && r.Symbol.IsFetched() }

// Refetch reads both values of this response again regardless of cached state.
func (r Response) Refetch(ctx context.Context) Response {
	var next Response
	var g errgroup.Group
	g.Go(func() error {
		next.Balance = r.Balance.Refetch(ctx)
		return nil
	})
	g.Go(func() error {
		next.Symbol = r.Symbol.Refetch(ctx)
		return nil
	})
	_ = g.Wait()

	next.Data, _ = Combine(next.Balance, next.Symbol, r.decimals)
	return next
}

// Reader reads normalized token balances.
type Reader struct {
	reads *contract.Reader
}

func NewReader(reads *contract.Reader) *Reader {
	return &Reader{reads: reads}
}

// Balance reads balanceOf(owner) and symbol concurrently and combines them.
func (r *Reader) Balance(ctx context.Context, provider chain.Provider, req Request) Response {
	return r.run(ctx, provider, req, r.reads.Read)
}

// Refetch reads both values again regardless of cached state.
func (r *Reader) Refetch(ctx context.Context, provider chain.Provider, req Request) Response {
	return r.run(ctx, provider, req, r.reads.Refetch)
}

type readFunc func(context.Context, chain.Provider, contract.ReadRequest) contract.ReadResponse

func (r *Reader) run(ctx context.Context, provider chain.Provider, req Request, read readFunc) Response {
	balanceReq, symbolReq := subRequests(provider, req)

	var resp Response
	var g errgroup.Group
	g.Go(func() error {
		resp.Balance = read(ctx, provider, balanceReq)
		return nil
	})
	g.Go(func() error {
		resp.Symbol = read(ctx, provider, symbolReq)
		return nil
	})
	_ = g.Wait()

	resp.decimals = req.Decimals
	resp.Data, _ = Combine(resp.Balance, resp.Symbol, req.Decimals)
	return resp
}

func subRequests(provider chain.Provider, req Request) (contract.ReadRequest, contract.ReadRequest) {
	balanceReq := contract.ReadRequest{FunctionName: "balanceOf", Block: req.Block, Watch: req.Watch}
	symbolReq := contract.ReadRequest{FunctionName: "symbol", Args: contract.NoArgs(), Block: req.Block, Watch: req.Watch}

	if req.Token != nil && provider != nil {
		if token, err := contract.NewERC20(*req.Token, provider); err == nil {
			balanceReq.Contract = token
			symbolReq.Contract = token
		}
	}
	if req.Owner != nil {
		balanceReq.Args = []interface{}{*req.Owner}
	}
	return balanceReq, symbolReq
}

// Watcher keeps a balance up to date. Each sub-read refreshes on new blocks
// while watching, and every change of either one is reported to the listener.
type Watcher struct {
	provider chain.Provider
	balance  *contract.Call
	symbol   *contract.Call
	listener func(Response)

	mu     sync.Mutex
	req    Request
	latest Response
}

// Bind creates a Watcher for req. listener, when set, receives a Response
// whenever either sub-read changes state.
func (r *Reader) Bind(provider chain.Provider, req Request, listener func(Response)) *Watcher {
	balanceReq, symbolReq := subRequests(provider, req)
	w := &Watcher{provider: provider, req: req, listener: listener}
	w.balance = r.reads.Bind(provider, balanceReq, func(resp contract.ReadResponse) {
		w.apply(func(latest *Response) { latest.Balance = resp })
	})
	w.symbol = r.reads.Bind(provider, symbolReq, func(resp contract.ReadResponse) {
		w.apply(func(latest *Response) { latest.Symbol = resp })
	})
	return w
}

// Update replaces the watcher's inputs.
func (w *Watcher) Update(req Request) {
	balanceReq, symbolReq := subRequests(w.provider, req)

	w.mu.Lock()
	w.req = req
	w.latest = Response{}
	w.mu.Unlock()

	w.balance.Update(balanceReq)
	w.symbol.Update(symbolReq)
}

// Result reads the current inputs, using cached data when it is fresh.
func (w *Watcher) Result(ctx context.Context) Response {
	return w.collect(ctx, (*contract.Call).Result)
}

// Refetch reads both values again regardless of cached state.
func (w *Watcher) Refetch(ctx context.Context) Response {
	return w.collect(ctx, (*contract.Call).Refetch)
}

// Watching reports whether new blocks refresh both sub-reads.
func (w *Watcher) Watching() bool {
	return w.balance.Watching() && w.symbol.Watching()
}

// Close stops both sub-reads.
func (w *Watcher) Close() {
	w.balance.Close()
	w.symbol.Close()
}

func (w *Watcher) collect(ctx context.Context, read func(*contract.Call, context.Context) contract.ReadResponse) Response {
	var resp Response
	var g errgroup.Group
	g.Go(func() error {
		resp.Balance = read(w.balance, ctx)
		return nil
	})
	g.Go(func() error {
		resp.Symbol = read(w.symbol, ctx)
		return nil
	})
	_ = g.Wait()

	w.mu.Lock()
	resp.decimals = w.req.Decimals
	resp.Data, _ = Combine(resp.Balance, resp.Symbol, w.req.Decimals)
	w.latest = resp
	w.mu.Unlock()
	return resp
}

func (w *Watcher) apply(update func(*Response)) {
	w.mu.Lock()
	update(&w.latest)
	w.latest.decimals = w.req.Decimals
	w.latest.Data, _ = Combine(w.latest.Balance, w.latest.Symbol, w.req.Decimals)
	resp := w.latest
	w.mu.Unlock()

	if w.listener != nil {
		w.listener(resp)
	}
}

// Snapshot records a combined balance for storage.
func Snapshot(chainID uint64, token, owner common.Address, blockNumber uint64, result *model.BalanceResult, observedAt time.Time) model.BalanceSnapshot {
	snap := model.BalanceSnapshot{
		ChainID:     chainID,
		Token:       token.Hex(),
		Owner:       owner.Hex(),
		BlockNumber: blockNumber,
		ObservedAt:  observedAt.UTC().Format(time.RFC3339),
	}
	if result != nil {
		snap.Value = result.Value.String()
		snap.Decimals = result.Decimals
		snap.Formatted = result.Formatted
		snap.Symbol = result.Symbol
	}
	return snap
}
