package contract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"readScope/internal/model"
)

// Caller performs a raw eth_call. chain.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, msg ethereum.CallMsg, block model.BlockSelector) ([]byte, error)
}

// Method invokes one read-only contract function and returns its decoded outputs.
type Method func(ctx context.Context, block model.BlockSelector, args ...interface{}) ([]interface{}, error)

// Contract binds an address and ABI to a caller.
type Contract struct {
	address common.Address
	abi     abi.ABI
	// outputs decodes return data that abi cannot, for methods sharing a selector.
	outputs *abi.ABI
	caller  Caller
}

// NewContract binds address and parsed ABI to caller.
func NewContract(address common.Address, parsed abi.ABI, caller Caller) *Contract {
	return &Contract{address: address, abi: parsed, caller: caller}
}

// NewContractFromJSON parses an ABI document and binds it.
func NewContractFromJSON(address common.Address, r io.Reader, caller Caller) (*Contract, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return NewContract(address, parsed, caller), nil
}

// WithOutputFallback returns a copy of c that decodes a method's return data
// with alt when its own ABI fails to. The cache key does not change.
func (c *Contract) WithOutputFallback(alt abi.ABI) *Contract {
	bound := *c
	bound.outputs = &alt
	return &bound
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Method looks up a read-only function by name. Unknown and state-changing
// functions are reported as absent.
func (c *Contract) Method(name string) (Method, bool) {
	if c == nil || c.caller == nil {
		return nil, false
	}
	m, ok := c.abi.Methods[name]
	if !ok || !m.IsConstant() {
		return nil, false
	}

	return func(ctx context.Context, block model.BlockSelector, args ...interface{}) ([]interface{}, error) {
		data, err := c.abi.Pack(name, args...)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", name, err)
		}
		to := c.address
		resp, err := c.caller.Call(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
		if err != nil {
			return nil, err
		}
		values, err := c.abi.Unpack(name, resp)
		if err != nil {
			if alt, ok := c.fallbackFor(m); ok {
				if values, altErr := alt.Unpack(name, resp); altErr == nil {
					return values, nil
				}
			}
			return nil, fmt.Errorf("unpack %s: %w", name, err)
		}
		return values, nil
	}, true
}

func (c *Contract) fallbackFor(m abi.Method) (*abi.ABI, bool) {
	if c.outputs == nil {
		return nil, false
	}
	alt, ok := c.outputs.Methods[m.Name]
	if !ok || !bytes.Equal(alt.ID, m.ID) {
		return nil, false
	}
	return c.outputs, true
}
