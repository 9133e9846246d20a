package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readScope/internal/balance"
	"readScope/internal/config"
	"readScope/internal/contract"
	"readScope/internal/model"
)

type balanceOutput struct {
	ChainID uint64               `json:"chain_id"`
	Token   string               `json:"token"`
	Owner   string               `json:"owner"`
	Block   string               `json:"block"`
	Balance *model.BalanceResult `json:"balance,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func runBalance(cmd *cobra.Command, _ []string) error {
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

	s, err := openSession(ctx, cfg.Config, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	decimals, err := resolveDecimals(ctx, s, token, cfg.Decimals)
	if err != nil {
		return err
	}

	reader := balance.NewReader(s.reads)
	for _, owner := range owners {
		owner := owner
		resp := reader.Balance(ctx, s.client, balance.Request{
			Token:    &token,
			Owner:    &owner,
			Decimals: decimals,
			Block:    s.block,
		})
		out := balanceOutput{
			ChainID: s.client.ChainID(),
			Token:   token.Hex(),
			Owner:   owner.Hex(),
			Block:   s.block.String(),
			Balance: resp.Data,
		}
		if err := resp.Err(); err != nil {
			out.Error = err.Error()
			s.logger.Warn("balance read failed", zap.String("owner", owner.Hex()), zap.Error(err))
		}
		if err := printJSON(out); err != nil {
			return err
		}
	}
	return nil
}

func balanceTargets(cfg config.BalanceConfig) (common.Address, []common.Address, error) {
	if !common.IsHexAddress(cfg.Token) {
		return common.Address{}, nil, fmt.Errorf("invalid token address: %q", cfg.Token)
	}
	owners, err := contract.ParseAddresses(cfg.Owners)
	if err != nil {
		return common.Address{}, nil, err
	}
	if len(owners) == 0 {
		return common.Address{}, nil, fmt.Errorf("owner list is required")
	}
	return common.HexToAddress(cfg.Token), owners, nil
}

func resolveDecimals(ctx context.Context, s *session, token common.Address, configured *uint8) (uint8, error) {
	if configured != nil {
		return *configured, nil
	}
	meta, err := contract.FetchTokenMeta(ctx, s.reads, s.client, token, s.logger)
	if err != nil {
		return 0, fmt.Errorf("fetch token decimals: %w", err)
	}
	s.logger.Info("token metadata",
		zap.String("token", token.Hex()),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", meta.Decimals),
	)
	return meta.Decimals, nil
}
