package contract

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readScope/internal/chain/chaintest"
	"readScope/internal/model"
	"readScope/internal/query"
	"readScope/internal/watch"
)

func mustERC20(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := ERC20ABI()
	require.NoError(t, err)
	return parsed
}

func newTestReader(scope watch.Scope) *Reader {
	queries := query.NewClient(query.Config{}, zap.NewNop())
	return NewReader(context.Background(), queries, ReaderOptions{Scope: scope, Logger: zap.NewNop()})
}

func newTokenProvider(t *testing.T, balance *int64) *chaintest.Provider {
	t.Helper()
	parsed := mustERC20(t)
	provider := chaintest.New(1)
	provider.Handle(parsed, "balanceOf", func(args []interface{}, _ model.BlockSelector) ([]interface{}, error) {
		return []interface{}{big.NewInt(atomic.LoadInt64(balance))}, nil
	})
	provider.Handle(parsed, "symbol", func([]interface{}, model.BlockSelector) ([]interface{}, error) {
		return []interface{}{"TKN"}, nil
	})
	provider.Handle(parsed, "decimals", func([]interface{}, model.BlockSelector) ([]interface{}, error) {
		return []interface{}{uint8(18)}, nil
	})
	return provider
}

func TestReadReturnsDecodedValues(t *testing.T) {
	balance := int64(1500)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)

	resp := reader.Read(context.Background(), provider, ReadRequest{
		Contract:     token,
		FunctionName: "balanceOf",
		Args:         []interface{}{ownerAddr},
	})

	require.True(t, resp.Dispatched)
	require.True(t, resp.IsSuccess())
	values, ok := resp.Values()
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1500), values[0])
	assert.Equal(t, uint64(1), resp.Key.ChainID)

	reader.Read(context.Background(), provider, ReadRequest{
		Contract:     token,
		FunctionName: "balanceOf",
		Args:         []interface{}{ownerAddr},
	})
	assert.Equal(t, 1, provider.Calls("balanceOf"))
}

func TestReadIncompleteIsNoop(t *testing.T) {
	balance := int64(1)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)

	requests := []ReadRequest{
		{FunctionName: "balanceOf", Args: []interface{}{ownerAddr}},
		{Contract: token, Args: []interface{}{ownerAddr}},
		{Contract: token, FunctionName: "balanceOf"},
		{Contract: token, FunctionName: "doesNotExist", Args: NoArgs()},
		{Contract: token, FunctionName: "transfer", Args: []interface{}{ownerAddr, big.NewInt(1)}},
	}
	for _, req := range requests {
		resp := reader.Read(context.Background(), provider, req)
		assert.False(t, resp.Dispatched)
		assert.True(t, resp.IsIdle())
		assert.NoError(t, resp.Err)
		assert.Nil(t, resp.Data)
	}
	assert.Equal(t, 0, provider.TotalCalls())
}

func TestReadPropagatesCallError(t *testing.T) {
	parsed := mustERC20(t)
	provider := chaintest.New(1)
	revert := errors.New("execution reverted")
	provider.Handle(parsed, "symbol", func([]interface{}, model.BlockSelector) ([]interface{}, error) {
		return nil, revert
	})
	reader := newTestReader(watch.ScopeKey)

	resp := reader.Read(context.Background(), provider, ReadRequest{
		Contract:     NewContract(tokenAddr, parsed, provider),
		FunctionName: "symbol",
		Args:         NoArgs(),
	})

	assert.True(t, resp.IsError())
	assert.Same(t, revert, resp.Err)
	assert.Equal(t, 1, provider.Calls("symbol"))
}

func TestReadPassesBlockSelector(t *testing.T) {
	parsed := mustERC20(t)
	provider := chaintest.New(1)
	var seen model.BlockSelector
	provider.Handle(parsed, "totalSupply", func(_ []interface{}, block model.BlockSelector) ([]interface{}, error) {
		seen = block
		return []interface{}{big.NewInt(1)}, nil
	})
	reader := newTestReader(watch.ScopeKey)

	reader.Read(context.Background(), provider, ReadRequest{
		Contract:     NewContract(tokenAddr, parsed, provider),
		FunctionName: "totalSupply",
		Args:         NoArgs(),
		Block:        model.AtHeight(77),
	})
	assert.Equal(t, model.AtHeight(77), seen)
}

func TestRefetchBypassesCache(t *testing.T) {
	balance := int64(1)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)
	req := ReadRequest{Contract: token, FunctionName: "balanceOf", Args: []interface{}{ownerAddr}}

	reader.Read(context.Background(), provider, req)
	atomic.StoreInt64(&balance, 2)
	resp := reader.Refetch(context.Background(), provider, req)

	values, _ := resp.Values()
	assert.Equal(t, big.NewInt(2), values[0])
	assert.Equal(t, 2, provider.Calls("balanceOf"))
}

func TestResponseRefetch(t *testing.T) {
	balance := int64(1)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)

	resp := reader.Read(context.Background(), provider, ReadRequest{Contract: token, FunctionName: "balanceOf", Args: []interface{}{ownerAddr}})
	atomic.StoreInt64(&balance, 3)
	resp = resp.Refetch(context.Background())

	values, ok := resp.Values()
	require.True(t, ok)
	assert.Equal(t, big.NewInt(3), values[0])
	assert.Equal(t, 2, provider.Calls("balanceOf"))

	idle := reader.Read(context.Background(), provider, ReadRequest{Contract: token, FunctionName: "balanceOf"})
	idle = idle.Refetch(context.Background())
	assert.False(t, idle.Dispatched)
	assert.Equal(t, 2, provider.TotalCalls())
}

func TestBoundCallWatchRefreshesOnNewBlock(t *testing.T) {
	balance := int64(10)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)

	updates := make(chan ReadResponse, 8)
	call := reader.Bind(provider, ReadRequest{
		Contract:     token,
		FunctionName: "balanceOf",
		Args:         []interface{}{ownerAddr},
		Watch:        true,
	}, func(resp ReadResponse) { updates <- resp })
	defer call.Close()

	require.True(t, call.Watching())
	require.True(t, call.Result(context.Background()).IsSuccess())

	atomic.StoreInt64(&balance, 20)
	provider.Feed.Send(model.Head{Number: 100, Hash: "0x64"})

	require.Eventually(t, func() bool { return provider.Calls("balanceOf") == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		for {
			select {
			case resp := <-updates:
				if values, ok := resp.Values(); ok && resp.IsSuccess() && !resp.IsFetching() {
					if values[0].(*big.Int).Int64() == 20 {
						return true
					}
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)

	resp := call.Result(context.Background())
	values, _ := resp.Values()
	assert.Equal(t, big.NewInt(20), values[0])
	assert.Equal(t, 2, provider.Calls("balanceOf"))
}

func TestBoundCallsSharingKeyFetchOncePerBlock(t *testing.T) {
	balance := int64(10)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)

	req := ReadRequest{Contract: token, FunctionName: "symbol", Args: NoArgs(), Watch: true}
	for i := 0; i < 4; i++ {
		call := reader.Bind(provider, req, func(ReadResponse) {})
		defer call.Close()
		require.True(t, call.Result(context.Background()).IsSuccess())
	}
	require.Equal(t, 1, provider.Calls("symbol"))

	provider.Feed.Send(model.Head{Number: 7, Hash: "0x07"})
	require.Eventually(t, func() bool { return provider.Calls("symbol") == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, provider.Calls("symbol"))

	provider.Feed.Send(model.Head{Number: 8, Hash: "0x08"})
	require.Eventually(t, func() bool { return provider.Calls("symbol") == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, provider.Calls("symbol"))
}

func TestBoundCallStopsWatching(t *testing.T) {
	balance := int64(10)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)

	req := ReadRequest{Contract: token, FunctionName: "balanceOf", Args: []interface{}{ownerAddr}, Watch: true}
	call := reader.Bind(provider, req, nil)
	call.Result(context.Background())

	req.Watch = false
	call.Update(req)
	assert.False(t, call.Watching())
	assert.Equal(t, 0, provider.Feed.Send(model.Head{Number: 1, Hash: "0x01"}))

	req.Watch = true
	req.Contract = nil
	call.Update(req)
	assert.False(t, call.Watching())

	call.Close()
	assert.Equal(t, 1, provider.Calls("balanceOf"))
}

func TestBoundCallKeyFollowsInputs(t *testing.T) {
	balance := int64(10)
	provider := newTokenProvider(t, &balance)
	reader := newTestReader(watch.ScopeKey)
	token, err := NewERC20(tokenAddr, provider)
	require.NoError(t, err)

	call := reader.Bind(provider, ReadRequest{Contract: token, FunctionName: "symbol", Args: NoArgs()}, nil)
	defer call.Close()
	first := call.Key()

	call.Update(ReadRequest{Contract: token, FunctionName: "decimals", Args: NoArgs()})
	second := call.Key()

	assert.False(t, first.Equal(second))
	assert.True(t, strings.Contains(second.Hash(), "decimals"))
}
