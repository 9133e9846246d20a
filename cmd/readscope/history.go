package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readScope/internal/balance"
	"readScope/internal/config"
	"readScope/internal/history"
	"readScope/internal/storage"
	"readScope/internal/storage/postgres"
)

func runHistory(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadHistory(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	token, owners, err := balanceTargets(cfg.BalanceConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg.Config, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	decimals, err := resolveDecimals(ctx, s, token, cfg.Decimals)
	if err != nil {
		return err
	}

	sink, state, closeStore, err := openSinks(ctx, cfg.BalanceConfig)
	if err != nil {
		return err
	}
	defer closeStore()
	if _, ok := state.(*postgres.StateStore); !ok {
		state = &storage.FileStateStore{Path: cfg.Checkpoint}
	}

	runner := history.NewRunner(history.RunConfig{
		FromBlock: cfg.FromBlock,
		ToBlock:   cfg.ToBlock,
		Step:      cfg.Step,
		BatchSize: cfg.BatchSize,
		Token:     token,
		Owners:    owners,
		Decimals:  decimals,
	}, s.client, balance.NewReader(s.reads), sink, state, s.logger)

	s.logger.Info("history start",
		zap.Uint64("chain_id", s.client.ChainID()),
		zap.String("token", token.Hex()),
		zap.Int("owners", len(owners)),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("step", cfg.Step),
		zap.Uint64("batch_size", cfg.BatchSize),
	)

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}
