package model

import "math/big"

// BalanceResult is a token balance combined with its display metadata.
type BalanceResult struct {
	Value     *big.Int `json:"value"`
	Decimals  uint8    `json:"decimals"`
	Formatted string   `json:"formatted"`
	Symbol    string   `json:"symbol"`
}

// BalanceSnapshot records a refreshed balance for storage.
type BalanceSnapshot struct {
	ChainID     uint64 `json:"chain_id"`
	Token       string `json:"token"`
	Owner       string `json:"owner"`
	BlockNumber uint64 `json:"block_number"`
	Value       string `json:"value"`
	Decimals    uint8  `json:"decimals"`
	Formatted   string `json:"formatted"`
	Symbol      string `json:"symbol"`
	ObservedAt  string `json:"observed_at"`
}
