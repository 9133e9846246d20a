package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds settings shared by every command.
type Config struct {
	RPCURL          string
	RPCRate         float64
	RPCBurst        int
	CacheSize       int
	CacheTTL        time.Duration
	StaleTime       time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	InvalidateScope string
	Block           string
	LogLevel        string
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("READSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc-rate", 0.0)
	v.SetDefault("rpc-burst", 1)
	v.SetDefault("cache-size", 1024)
	v.SetDefault("cache-ttl", time.Duration(0))
	v.SetDefault("stale-time", time.Duration(0))
	v.SetDefault("max-retries", 0)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("invalidate-scope", "key")
	v.SetDefault("block", "latest")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func shared(v *viper.Viper) Config {
	return Config{
		RPCURL:          v.GetString("rpc"),
		RPCRate:         v.GetFloat64("rpc-rate"),
		RPCBurst:        v.GetInt("rpc-burst"),
		CacheSize:       v.GetInt("cache-size"),
		CacheTTL:        v.GetDuration("cache-ttl"),
		StaleTime:       v.GetDuration("stale-time"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		InvalidateScope: v.GetString("invalidate-scope"),
		Block:           v.GetString("block"),
		LogLevel:        v.GetString("log-level"),
	}
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return shared(v), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
