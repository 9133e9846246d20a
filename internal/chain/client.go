package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"readScope/internal/model"
)

// Provider is the chain surface the read layer depends on.
type Provider interface {
	ChainID() uint64
	Call(ctx context.Context, msg ethereum.CallMsg, block model.BlockSelector) ([]byte, error)
	Heads() *HeadFeed
}

// Options configures a Client.
type Options struct {
	// RateLimit caps eth_call requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
	Logger    *zap.Logger
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	chainID   uint64
	heads     *HeadFeed
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

var _ Provider = (*Client)(nil)

// NewClient dials the RPC URL and resolves the chain ID.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		heads:     NewHeadFeed(),
		logger:    logger,
		tsCache:   make(map[uint64]uint64),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		rpcClient.Close()
		return nil, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	c.chainID = chainID.Uint64()

	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID resolved at dial time.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// Heads returns the new-block notification feed.
func (c *Client) Heads() *HeadFeed {
	return c.heads
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// Call performs a single eth_call against the selected block.
func (c *Client) Call(ctx context.Context, msg ethereum.CallMsg, block model.BlockSelector) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if block.IsPending() {
		return c.ethClient.PendingCallContract(ctx, msg)
	}
	return c.ethClient.CallContract(ctx, msg, block.BlockNumber())
}
