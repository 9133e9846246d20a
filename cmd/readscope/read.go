package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readScope/internal/config"
	"readScope/internal/contract"
)

type readOutput struct {
	ChainID        uint64        `json:"chain_id"`
	Contract       string        `json:"contract"`
	Function       string        `json:"function"`
	Block          string        `json:"block"`
	BlockTimestamp uint64        `json:"block_timestamp,omitempty"`
	Key            string        `json:"key"`
	Values         []interface{} `json:"values"`
}

func runRead(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRead(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Address) {
		return fmt.Errorf("invalid contract address: %q", cfg.Address)
	}
	if cfg.Function == "" {
		return fmt.Errorf("function is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg.Config, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	bound, err := bindContract(common.HexToAddress(cfg.Address), cfg.ABIFile, s)
	if err != nil {
		return err
	}
	args, err := bound.ParseArgs(cfg.Function, cfg.Args)
	if err != nil {
		return err
	}

	resp := s.reads.Read(ctx, s.client, contract.ReadRequest{
		Contract:     bound,
		FunctionName: cfg.Function,
		Args:         args,
		Block:        s.block,
	})
	if !resp.Dispatched {
		return fmt.Errorf("%s is not a read-only function", cfg.Function)
	}
	if resp.Err != nil {
		return fmt.Errorf("call %s: %w", cfg.Function, resp.Err)
	}

	values, _ := resp.Values()
	out := readOutput{
		ChainID:  s.client.ChainID(),
		Contract: bound.Address().Hex(),
		Function: cfg.Function,
		Block:    s.block.String(),
		Key:      resp.Key.Hash(),
		Values:   make([]interface{}, 0, len(values)),
	}
	for _, v := range values {
		out.Values = append(out.Values, displayValue(v))
	}
	if s.block.Exact {
		ts, err := s.client.BlockTimestamp(ctx, s.block.Height)
		if err != nil {
			s.logger.Warn("block timestamp failed", zap.Uint64("block_number", s.block.Height), zap.Error(err))
		} else {
			out.BlockTimestamp = ts
		}
	}
	return printJSON(out)
}

func bindContract(address common.Address, abiFile string, s *session) (*contract.Contract, error) {
	if abiFile == "" {
		return contract.NewERC20(address, s.client)
	}
	file, err := os.Open(abiFile)
	if err != nil {
		return nil, fmt.Errorf("open abi: %w", err)
	}
	defer file.Close()
	return contract.NewContractFromJSON(address, file, s.client)
}

func displayValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case *big.Int:
		return typed.String()
	case []byte:
		return hexutil.Encode(typed)
	case [32]byte:
		return hexutil.Encode(typed[:])
	default:
		return v
	}
}
