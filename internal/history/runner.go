package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"readScope/internal/balance"
	"readScope/internal/chain"
	"readScope/internal/model"
	"readScope/internal/storage"
)

// Chain is the chain surface a backfill needs.
type Chain interface {
	chain.Provider
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// RunConfig holds runtime settings for a balance backfill.
type RunConfig struct {
	FromBlock uint64
	// ToBlock 0 means the latest block at start.
	ToBlock   uint64
	Step      uint64
	BatchSize uint64
	Token     common.Address
	Owners    []common.Address
	Decimals  uint8
}

// Runner reads balances at historical heights and writes them to storage.
type Runner struct {
	cfg      RunConfig
	chain    Chain
	balances *balance.Reader
	storage  storage.Storage
	state    storage.StateStore
	logger   *zap.Logger
}

// NewRunner builds a Runner with its dependencies. state may be nil.
func NewRunner(cfg RunConfig, chainClient Chain, balances *balance.Reader, sink storage.Storage, state storage.StateStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Step == 0 {
		cfg.Step = 1
	}
	return &Runner{
		cfg:      cfg,
		chain:    chainClient,
		balances: balances,
		storage:  sink,
		state:    state,
		logger:   logger,
	}
}

// Run executes the backfill, resuming after the last saved batch.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Owners) == 0 {
		return fmt.Errorf("at least one owner is required")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.state != nil {
		last, ok, err := r.state.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last.Number >= from {
			from = last.Number + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last.Number), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to backfill", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	chainID := r.chain.ChainID()
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		heights := blockRange.Heights(r.cfg.FromBlock, r.cfg.Step)
		snapshots := make([]model.BalanceSnapshot, 0, len(heights)*len(r.cfg.Owners))
		var lastTs uint64
		for _, height := range heights {
			ts, err := r.chain.BlockTimestamp(ctx, height)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", height, err)
			}
			lastTs = ts

			for _, owner := range r.cfg.Owners {
				result, err := r.read(ctx, owner, height)
				if err != nil {
					return err
				}
				observedAt := time.Unix(int64(ts), 0)
				snapshots = append(snapshots, balance.Snapshot(chainID, r.cfg.Token, owner, height, result, observedAt))
			}
		}

		if err := r.storage.PutBalanceBatch(snapshots); err != nil {
			return fmt.Errorf("store snapshots: %w", err)
		}

		if r.state != nil {
			if err := r.state.Save(ctx, model.Head{Number: blockRange.To, Timestamp: lastTs}); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("snapshots", len(snapshots)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

func (r *Runner) read(ctx context.Context, owner common.Address, height uint64) (*model.BalanceResult, error) {
	token := r.cfg.Token
	resp := r.balances.Balance(ctx, r.chain, balance.Request{
		Token:    &token,
		Owner:    &owner,
		Decimals: r.cfg.Decimals,
		Block:    model.AtHeight(height),
	})
	if err := resp.Err(); err != nil {
		r.logger.Warn("historical balance failed", zap.String("owner", owner.Hex()), zap.Uint64("block_number", height), zap.Error(err))
		return nil, fmt.Errorf("balance of %s at %d: %w", owner.Hex(), height, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("balance of %s at %d: incomplete result", owner.Hex(), height)
	}
	return resp.Data, nil
}
