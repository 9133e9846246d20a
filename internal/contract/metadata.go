package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"readScope/internal/chain"
	"readScope/internal/model"
)

// FetchTokenMeta loads token metadata via ERC-20 reads. Symbol and name may be
// string or bytes32; their failure is logged, not returned.
func FetchTokenMeta(ctx context.Context, reader *Reader, provider chain.Provider, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if reader == nil || provider == nil {
		return meta, fmt.Errorf("reader and provider are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bound, err := NewERC20(token, provider)
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}

	read := func(method string) (interface{}, error) {
		return FirstValue(reader.Read(ctx, provider, ReadRequest{
			Contract:     bound,
			FunctionName: method,
			Args:         NoArgs(),
		}))
	}

	value, err := read("decimals")
	if err != nil {
		return meta, fmt.Errorf("call decimals: %w", err)
	}
	decimals, err := AsUint8(value)
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if value, err := read("symbol"); err == nil {
		meta.Symbol, _ = AsString(value)
	} else {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if value, err := read("name"); err == nil {
		meta.Name, _ = AsString(value)
	} else {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}
