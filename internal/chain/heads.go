package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"readScope/internal/model"
)

// HeadFeed fans new-block notifications out to subscribers.
type HeadFeed struct {
	feed event.Feed
}

func NewHeadFeed() *HeadFeed {
	return &HeadFeed{}
}

// Subscribe delivers every subsequent head to ch until the subscription is released.
func (f *HeadFeed) Subscribe(ch chan<- model.Head) event.Subscription {
	return f.feed.Subscribe(ch)
}

// Send publishes a head and returns the number of subscribers it reached.
func (f *HeadFeed) Send(head model.Head) int {
	return f.feed.Send(head)
}

// StreamHeads publishes new heads into the client's feed until ctx is done.
// It prefers eth_subscribe and falls back to polling the block number when the
// transport does not support notifications.
func (c *Client) StreamHeads(ctx context.Context, pollInterval time.Duration) error {
	headers := make(chan *types.Header, 16)
	sub, err := c.ethClient.SubscribeNewHead(ctx, headers)
	if err != nil {
		if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
			return fmt.Errorf("subscribe new heads: %w", err)
		}
		c.logger.Info("head subscription unsupported, polling", zap.Duration("interval", pollInterval))
		return c.pollHeads(ctx, pollInterval)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				return nil
			}
			return fmt.Errorf("head subscription: %w", err)
		case header := <-headers:
			if header == nil || header.Number == nil {
				continue
			}
			c.heads.Send(headFromHeader(header))
		}
	}
}

func (c *Client) pollHeads(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		number, err := c.LatestBlockNumber(ctx)
		if err != nil {
			c.logger.Warn("poll block number failed", zap.Error(err))
		} else if number != last {
			last = number
			header, err := c.HeaderByNumber(ctx, nil)
			if err != nil {
				c.logger.Warn("poll header failed", zap.Uint64("block_number", number), zap.Error(err))
				c.heads.Send(model.Head{Number: number})
			} else {
				c.heads.Send(headFromHeader(header))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func headFromHeader(header *types.Header) model.Head {
	return model.Head{
		Number:    header.Number.Uint64(),
		Hash:      header.Hash().Hex(),
		Timestamp: header.Time,
	}
}
