package config

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

// BalanceConfig holds configuration for balance reads and the watch loop.
type BalanceConfig struct {
	Config
	Token  string
	Owners []string
	// Decimals is nil when the token's own decimals() should be used.
	Decimals     *uint8
	Out          string
	PGDSN        string
	StateFile    string
	StateName    string
	PollInterval time.Duration
	MetricsAddr  string
}

// LoadBalance merges config file, environment variables, and flags into BalanceConfig.
func LoadBalance(cfgFile string, flags *pflag.FlagSet) (BalanceConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return BalanceConfig{}, err
	}
	v.SetDefault("out", "./data/balances.jsonl")
	v.SetDefault("state-file", "./data/watch_state.json")
	v.SetDefault("state-name", "balances")
	v.SetDefault("poll-interval", 12*time.Second)

	cfg := BalanceConfig{
		Config:       shared(v),
		Token:        v.GetString("token"),
		Owners:       getStringSlice(v, "owner"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		StateFile:    v.GetString("state-file"),
		StateName:    v.GetString("state-name"),
		PollInterval: v.GetDuration("poll-interval"),
		MetricsAddr:  v.GetString("metrics-addr"),
	}
	if v.IsSet("decimals") {
		d, err := cast.ToIntE(v.Get("decimals"))
		if err != nil {
			return BalanceConfig{}, fmt.Errorf("invalid decimals: %w", err)
		}
		if d < 0 || d > math.MaxUint8 {
			return BalanceConfig{}, fmt.Errorf("decimals out of range: %d", d)
		}
		decimals := uint8(d)
		cfg.Decimals = &decimals
	}
	return cfg, nil
}

// HistoryConfig holds configuration for historical balance backfills.
type HistoryConfig struct {
	BalanceConfig
	FromBlock  uint64
	ToBlock    uint64
	Step       uint64
	BatchSize  uint64
	Checkpoint string
}

// LoadHistory merges config file, environment variables, and flags into HistoryConfig.
func LoadHistory(cfgFile string, flags *pflag.FlagSet) (HistoryConfig, error) {
	balanceCfg, err := LoadBalance(cfgFile, flags)
	if err != nil {
		return HistoryConfig{}, err
	}
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return HistoryConfig{}, err
	}
	v.SetDefault("step", uint64(1))
	v.SetDefault("batch-size", uint64(100))
	v.SetDefault("checkpoint", "./data/history_checkpoint.json")

	if !v.IsSet("state-name") {
		balanceCfg.StateName = "history"
	}

	return HistoryConfig{
		BalanceConfig: balanceCfg,
		FromBlock:     v.GetUint64("from"),
		ToBlock:       v.GetUint64("to"),
		Step:          v.GetUint64("step"),
		BatchSize:     v.GetUint64("batch-size"),
		Checkpoint:    v.GetString("checkpoint"),
	}, nil
}
