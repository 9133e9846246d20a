package config

import (
	"github.com/spf13/pflag"
)

// ReadConfig holds configuration for a single contract read.
type ReadConfig struct {
	Config
	Address  string
	ABIFile  string
	Function string
	Args     []string
}

// LoadRead merges config file, environment variables, and flags into ReadConfig.
func LoadRead(cfgFile string, flags *pflag.FlagSet) (ReadConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReadConfig{}, err
	}
	return ReadConfig{
		Config:   shared(v),
		Address:  v.GetString("address"),
		ABIFile:  v.GetString("abi"),
		Function: v.GetString("function"),
		Args:     getStringSlice(v, "args"),
	}, nil
}

// TokenConfig holds configuration for token metadata lookups.
type TokenConfig struct {
	Config
	Token string
}

// LoadToken merges config file, environment variables, and flags into TokenConfig.
func LoadToken(cfgFile string, flags *pflag.FlagSet) (TokenConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return TokenConfig{}, err
	}
	return TokenConfig{
		Config: shared(v),
		Token:  v.GetString("token"),
	}, nil
}
