package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readScope/internal/balance"
	"readScope/internal/chain"
	"readScope/internal/config"
	"readScope/internal/model"
	"readScope/internal/status"
	"readScope/internal/storage"
	"readScope/internal/storage/postgres"
)

// relay hands heads to watchers only after the loop has recorded them, so
// every snapshot is tagged with the head that triggered it.
type relay struct {
	chain.Provider
	heads *chain.HeadFeed
}

func (r *relay) Heads() *chain.HeadFeed { return r.heads }

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBalance(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	token, owners, err := balanceTargets(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := openSession(ctx, cfg.Config, reg)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.logger

	decimals, err := resolveDecimals(ctx, s, token, cfg.Decimals)
	if err != nil {
		return err
	}

	sink, state, closeStore, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tracker := status.NewTracker()
	if last, ok, err := state.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	} else if ok {
		tracker.SetHead(last)
		logger.Info("resume after head", zap.Uint64("block_number", last.Number), zap.String("block_hash", last.Hash))
	}

	if cfg.MetricsAddr != "" {
		srv := status.NewServer(cfg.MetricsAddr, s.client.ChainID(), tracker, reg, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	var current atomic.Uint64
	if number, err := s.client.LatestBlockNumber(ctx); err == nil {
		current.Store(number)
	} else {
		logger.Warn("latest block number failed", zap.Error(err))
	}

	heads := make(chan model.Head, 16)
	sub := s.client.Heads().Subscribe(heads)
	defer sub.Unsubscribe()

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- s.client.StreamHeads(ctx, cfg.PollInterval)
	}()

	provider := &relay{Provider: s.client, heads: chain.NewHeadFeed()}
	updates := make(chan model.BalanceSnapshot, 64)
	reader := balance.NewReader(s.reads)
	chainID := s.client.ChainID()

	watchers := make([]*balance.Watcher, 0, len(owners))
	for _, owner := range owners {
		owner := owner
		w := reader.Bind(provider, balance.Request{
			Token:    &token,
			Owner:    &owner,
			Decimals: decimals,
			Block:    s.block,
			Watch:    true,
		}, func(resp balance.Response) {
			if resp.IsFetching() {
				return
			}
			if err := resp.Err(); err != nil {
				logger.Warn("balance refresh failed", zap.String("owner", owner.Hex()), zap.Error(err))
				return
			}
			if resp.Data == nil {
				return
			}
			snap := balance.Snapshot(chainID, token, owner, current.Load(), resp.Data, time.Now())
			select {
			case updates <- snap:
			case <-ctx.Done():
			}
		})
		defer w.Close()
		watchers = append(watchers, w)
	}

	go func() {
		for _, w := range watchers {
			w.Result(ctx)
		}
	}()

	logger.Info("watch start",
		zap.Uint64("chain_id", chainID),
		zap.String("token", token.Hex()),
		zap.Int("owners", len(owners)),
		zap.Uint8("decimals", decimals),
		zap.String("block", s.block.String()),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stop")
			return nil
		case err := <-streamErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case err := <-sub.Err():
			return err
		case head := <-heads:
			current.Store(head.Number)
			tracker.SetHead(head)
			if err := state.Save(ctx, head); err != nil {
				logger.Warn("save state failed", zap.Uint64("block_number", head.Number), zap.Error(err))
			}
			logger.Debug("new head", zap.Uint64("block_number", head.Number), zap.String("block_hash", head.Hash))
			provider.heads.Send(head)
		case snap := <-updates:
			if !tracker.Record(snap) {
				continue
			}
			if err := sink.PutBalanceBatch([]model.BalanceSnapshot{snap}); err != nil {
				logger.Error("write snapshot failed", zap.String("owner", snap.Owner), zap.Error(err))
				continue
			}
			logger.Info("balance",
				zap.String("owner", snap.Owner),
				zap.String("formatted", snap.Formatted),
				zap.String("symbol", snap.Symbol),
				zap.Uint64("block_number", snap.BlockNumber),
			)
		}
	}
}

func openSinks(ctx context.Context, cfg config.BalanceConfig) (storage.Storage, storage.StateStore, func(), error) {
	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	var state storage.StateStore = &storage.FileStateStore{Path: cfg.StateFile}
	closeStore := func() {}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		sinks = append(sinks, store)
		state = &postgres.StateStore{Store: store, Name: cfg.StateName}
		closeStore = store.Close
	}
	if len(sinks) == 0 {
		return nil, nil, nil, errors.New("no output configured: set --out or --pg-dsn")
	}
	return sinks, state, closeStore, nil
}

