package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readScope/internal/chain"
	"readScope/internal/model"
	"readScope/internal/query"
)

type readKey string

func (k readKey) Hash() string   { return string(k) }
func (k readKey) Entity() string { return EntityReadContract }

type fixture struct {
	queries *query.Client
	feed    *chain.HeadFeed
	handled chan []query.Key
}

func newFixture() *fixture {
	return &fixture{
		queries: query.NewClient(query.Config{}, zap.NewNop()),
		feed:    chain.NewHeadFeed(),
		handled: make(chan []query.Key, 16),
	}
}

func (f *fixture) invalidator(scope Scope) *Invalidator {
	return New(context.Background(), f.queries, f.feed, Options{
		Scope:  scope,
		Logger: zap.NewNop(),
		OnInvalidate: func(_ model.Head, keys []query.Key) {
			f.handled <- keys
		},
	})
}

func (f *fixture) seed(t *testing.T, key query.Key, calls *int32) {
	t.Helper()
	state := f.queries.Query(context.Background(), key, func(context.Context) (interface{}, error) {
		return atomic.AddInt32(calls, 1), nil
	})
	require.True(t, state.IsSuccess())
}

func (f *fixture) waitHandled(t *testing.T) []query.Key {
	t.Helper()
	select {
	case keys := <-f.handled:
		return keys
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for invalidation")
		return nil
	}
}

func TestInvalidatorTransitions(t *testing.T) {
	f := newFixture()
	inv := f.invalidator(ScopeKey)
	assert.Equal(t, Idle, inv.State())

	inv.Update(true, nil)
	assert.Equal(t, Idle, inv.State())

	inv.Update(true, readKey("a"))
	assert.Equal(t, Watching, inv.State())

	inv.Update(true, readKey("b"))
	assert.Equal(t, Watching, inv.State())

	inv.Update(false, readKey("b"))
	assert.Equal(t, Idle, inv.State())

	inv.Update(true, readKey("b"))
	inv.Close()
	assert.Equal(t, Idle, inv.State())
}

func TestInvalidatorRefetchesWatchedKeyOnNewBlock(t *testing.T) {
	f := newFixture()
	key := readKey("balanceOf")
	var calls int32
	f.seed(t, key, &calls)

	unsubscribe := f.queries.Subscribe(key, func(query.State) {})
	defer unsubscribe()

	inv := f.invalidator(ScopeKey)
	inv.Update(true, key)
	defer inv.Close()

	f.feed.Send(model.Head{Number: 10, Hash: "0x0a"})
	keys := f.waitHandled(t)
	require.Len(t, keys, 1)
	assert.Equal(t, key.Hash(), keys[0].Hash())

	f.queries.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	state, ok := f.queries.Peek(key)
	require.True(t, ok)
	assert.False(t, state.IsStale)
}

func TestInvalidatorIgnoresRepeatedHead(t *testing.T) {
	f := newFixture()
	key := readKey("symbol")
	var calls int32
	f.seed(t, key, &calls)

	inv := f.invalidator(ScopeKey)
	inv.Update(true, key)
	defer inv.Close()

	head := model.Head{Number: 11, Hash: "0x0b"}
	f.feed.Send(head)
	f.feed.Send(head)
	f.feed.Send(model.Head{Number: 12, Hash: "0x0c"})

	first := f.waitHandled(t)
	second := f.waitHandled(t)
	assert.Len(t, first, 1)
	// no listener refetched the key, so it is still stale from the first block
	assert.Empty(t, second)

	select {
	case <-f.handled:
		t.Fatal("repeated head should not be handled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInvalidatorScopes(t *testing.T) {
	f := newFixture()
	watched := readKey("watched")
	other := readKey("other")
	var calls int32
	f.seed(t, watched, &calls)
	f.seed(t, other, &calls)

	keyScoped := f.invalidator(ScopeKey)
	keyScoped.Update(true, watched)
	f.feed.Send(model.Head{Number: 1, Hash: "0x01"})
	assert.Len(t, f.waitHandled(t), 1)
	keyScoped.Close()

	otherState, _ := f.queries.Peek(other)
	assert.False(t, otherState.IsStale)

	entityScoped := f.invalidator(ScopeEntity)
	entityScoped.Update(true, watched)
	defer entityScoped.Close()
	f.feed.Send(model.Head{Number: 2, Hash: "0x02"})
	keys := f.waitHandled(t)
	require.Len(t, keys, 1)
	assert.Equal(t, other.Hash(), keys[0].Hash())
}

func TestInvalidatorStopsAfterWatchDisabled(t *testing.T) {
	f := newFixture()
	key := readKey("balanceOf")
	var calls int32
	f.seed(t, key, &calls)

	inv := f.invalidator(ScopeKey)
	inv.Update(true, key)
	inv.Update(false, key)

	assert.Equal(t, 0, f.feed.Send(model.Head{Number: 5, Hash: "0x05"}))

	state, _ := f.queries.Peek(key)
	assert.False(t, state.IsStale)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvalidatorsSharingRoundsHandleKeyOncePerHead(t *testing.T) {
	f := newFixture()
	key := readKey("symbol")
	var calls int32
	f.seed(t, key, &calls)
	unsubscribe := f.queries.Subscribe(key, func(query.State) {})
	defer unsubscribe()

	rounds := NewRounds()
	for n := 0; n < 3; n++ {
		inv := New(context.Background(), f.queries, f.feed, Options{
			Scope:  ScopeKey,
			Rounds: rounds,
			OnInvalidate: func(_ model.Head, keys []query.Key) {
				f.handled <- keys
			},
		})
		inv.Update(true, key)
		defer inv.Close()
	}

	f.feed.Send(model.Head{Number: 20, Hash: "0x14"})
	assert.Len(t, f.waitHandled(t), 1)
	select {
	case <-f.handled:
		t.Fatal("head handled twice for one key")
	case <-time.After(50 * time.Millisecond):
	}

	f.queries.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRoundsClaim(t *testing.T) {
	rounds := NewRounds()
	head := model.Head{Number: 1, Hash: "0x01"}
	assert.True(t, rounds.Claim("a", head))
	assert.False(t, rounds.Claim("a", head))
	assert.True(t, rounds.Claim("b", head))
	assert.True(t, rounds.Claim("a", model.Head{Number: 1, Hash: "0x1f"}))

	var none *Rounds
	assert.True(t, none.Claim("a", head))
	assert.True(t, none.Claim("a", head))
}

func TestParseScope(t *testing.T) {
	scope, err := ParseScope("entity")
	require.NoError(t, err)
	assert.Equal(t, ScopeEntity, scope)

	scope, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeKey, scope)

	_, err = ParseScope("everything")
	assert.Error(t, err)
}
