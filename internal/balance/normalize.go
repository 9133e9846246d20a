package balance

import (
	"fmt"

	"readScope/internal/contract"
	"readScope/internal/model"
)

// Normalize builds a balance result from a decoded balance and symbol.
func Normalize(rawBalance, rawSymbol interface{}, decimals uint8) (*model.BalanceResult, error) {
	value, err := ToUint256(rawBalance)
	if err != nil {
		return nil, err
	}
	symbol, ok := contract.AsString(rawSymbol)
	if !ok {
		return nil, fmt.Errorf("balance: unsupported symbol type %T", rawSymbol)
	}
	return &model.BalanceResult{
		Value:     value,
		Decimals:  decimals,
		Formatted: FormatUnits(value, decimals),
		Symbol:    symbol,
	}, nil
}

// Combine returns a result only when both reads succeeded. A pending,
// failed or undecodable read yields no result.
func Combine(balance, symbol contract.ReadResponse, decimals uint8) (*model.BalanceResult, bool) {
	if !balance.IsSuccess() || !symbol.IsSuccess() {
		return nil, false
	}
	rawBalance, err := contract.FirstValue(balance)
	if err != nil {
		return nil, false
	}
	rawSymbol, err := contract.FirstValue(symbol)
	if err != nil {
		return nil, false
	}
	result, err := Normalize(rawBalance, rawSymbol, decimals)
	if err != nil {
		return nil, false
	}
	return result, true
}
