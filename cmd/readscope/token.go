package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"readScope/internal/config"
	"readScope/internal/contract"
)

func runToken(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadToken(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Token) {
		return fmt.Errorf("invalid token address: %q", cfg.Token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg.Config, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	meta, err := contract.FetchTokenMeta(ctx, s.reads, s.client, common.HexToAddress(cfg.Token), s.logger)
	if err != nil {
		return err
	}
	return printJSON(meta)
}
