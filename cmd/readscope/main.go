package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"readScope/internal/chain"
	"readScope/internal/config"
	"readScope/internal/contract"
	"readScope/internal/model"
	"readScope/internal/query"
	"readScope/internal/watch"
)

func main() {
	root := &cobra.Command{
		Use:          "readscope",
		Short:        "Cached contract reads with block-driven refresh",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Call one read-only contract function",
		RunE:  runRead,
	}
	addCommonFlags(readCmd.Flags())
	readCmd.Flags().String("address", "", "contract address")
	readCmd.Flags().String("abi", "", "ABI JSON file (defaults to ERC-20)")
	readCmd.Flags().String("function", "", "function name")
	readCmd.Flags().StringSlice("args", nil, "function arguments (comma-separated)")
	root.AddCommand(readCmd)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Show ERC-20 token metadata",
		RunE:  runToken,
	}
	addCommonFlags(tokenCmd.Flags())
	tokenCmd.Flags().String("token", "", "token address")
	root.AddCommand(tokenCmd)

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Read normalized token balances",
		RunE:  runBalance,
	}
	addCommonFlags(balanceCmd.Flags())
	addBalanceFlags(balanceCmd.Flags())
	root.AddCommand(balanceCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep token balances fresh on every new block",
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd.Flags())
	addBalanceFlags(watchCmd.Flags())
	watchCmd.Flags().String("out", "./data/balances.jsonl", "output JSONL path (empty disables)")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	watchCmd.Flags().String("state-file", "./data/watch_state.json", "local state file used without Postgres")
	watchCmd.Flags().String("state-name", "balances", "state row name in Postgres")
	watchCmd.Flags().Duration("poll-interval", 12*time.Second, "head polling interval when subscriptions are unsupported")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	root.AddCommand(watchCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Backfill token balances at historical block heights",
		RunE:  runHistory,
	}
	addCommonFlags(historyCmd.Flags())
	addBalanceFlags(historyCmd.Flags())
	historyCmd.Flags().Uint64("from", 0, "first block (inclusive)")
	historyCmd.Flags().Uint64("to", 0, "last block (inclusive), 0 means latest")
	historyCmd.Flags().Uint64("step", 1, "blocks between samples")
	historyCmd.Flags().Uint64("batch-size", 100, "blocks per batch")
	historyCmd.Flags().String("out", "./data/balances.jsonl", "output JSONL path (empty disables)")
	historyCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	historyCmd.Flags().String("state-name", "history", "checkpoint row name in Postgres")
	historyCmd.Flags().String("checkpoint", "./data/history_checkpoint.json", "checkpoint file used without Postgres")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL (http, ws or ipc)")
	flags.String("block", "latest", "block selector (latest, pending, safe, finalized or a height)")
	flags.Float64("rpc-rate", 0, "max eth_call requests per second, 0 disables limiting")
	flags.Int("rpc-burst", 1, "eth_call burst size")
	flags.Int("cache-size", 1024, "max cached reads")
	flags.Duration("cache-ttl", 0, "evict cached reads after this long, 0 keeps them")
	flags.Duration("stale-time", 0, "treat cached reads as stale after this long, 0 waits for a new block")
	flags.Int("max-retries", 0, "retry attempts for failed reads")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("invalidate-scope", "key", "what a new block invalidates (key, entity)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addBalanceFlags(flags *pflag.FlagSet) {
	flags.String("token", "", "token address")
	flags.StringSlice("owner", nil, "owner addresses (comma-separated)")
	flags.Uint8("decimals", 18, "token decimals (read from the token when not set)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// session holds what every command needs to issue reads.
type session struct {
	logger  *zap.Logger
	client  *chain.Client
	queries *query.Client
	reads   *contract.Reader
	block   model.BlockSelector
}

func openSession(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*session, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	block, err := model.ParseBlockSelector(cfg.Block)
	if err != nil {
		return nil, err
	}
	scope, err := watch.ParseScope(cfg.InvalidateScope)
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		RateLimit: cfg.RPCRate,
		Burst:     cfg.RPCBurst,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	var metrics *query.Metrics
	if reg != nil {
		metrics = query.NewMetrics("readscope")
		if err := metrics.Register(reg); err != nil {
			client.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	queries := query.NewClient(query.Config{
		CacheSize:    cfg.CacheSize,
		CacheTTL:     cfg.CacheTTL,
		StaleTime:    cfg.StaleTime,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Metrics:      metrics,
	}, logger)

	return &session{
		logger:  logger,
		client:  client,
		queries: queries,
		reads:   contract.NewReader(ctx, queries, contract.ReaderOptions{Scope: scope, Logger: logger}),
		block:   block,
	}, nil
}

func (s *session) Close() {
	s.queries.Wait()
	s.client.Close()
	_ = s.logger.Sync()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
