package chain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readScope/internal/model"
)

func TestHeadFeedDelivers(t *testing.T) {
	feed := NewHeadFeed()
	ch := make(chan model.Head, 1)
	sub := feed.Subscribe(ch)
	defer sub.Unsubscribe()

	sent := feed.Send(model.Head{Number: 7, Hash: "0x07"})
	assert.Equal(t, 1, sent)

	select {
	case head := <-ch:
		assert.Equal(t, uint64(7), head.Number)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for head")
	}
}

func TestHeadFeedUnsubscribe(t *testing.T) {
	feed := NewHeadFeed()
	ch := make(chan model.Head, 1)
	sub := feed.Subscribe(ch)
	sub.Unsubscribe()

	assert.Equal(t, 0, feed.Send(model.Head{Number: 1}))
}

func TestHeadFromHeader(t *testing.T) {
	header := &types.Header{Number: big.NewInt(99), Time: 1700000000}
	head := headFromHeader(header)

	require.Equal(t, uint64(99), head.Number)
	assert.Equal(t, uint64(1700000000), head.Timestamp)
	assert.Equal(t, header.Hash().Hex(), head.Hash)
}
