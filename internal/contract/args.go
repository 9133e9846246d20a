package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseArgs converts textual arguments into the Go values the ABI encoder
// expects for the named function.
func (c *Contract) ParseArgs(name string, inputs []string) ([]interface{}, error) {
	if c == nil {
		return nil, fmt.Errorf("contract is nil")
	}
	m, ok := c.abi.Methods[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %s", name)
	}
	if len(inputs) != len(m.Inputs) {
		return nil, fmt.Errorf("%s expects %d args, got %d", name, len(m.Inputs), len(inputs))
	}

	args := make([]interface{}, 0, len(inputs))
	for i, input := range inputs {
		value, err := parseArg(m.Inputs[i].Type, strings.TrimSpace(input))
		if err != nil {
			return nil, fmt.Errorf("arg %d (%s): %w", i, m.Inputs[i].Type.String(), err)
		}
		args = append(args, value)
	}
	return args, nil
}

func parseArg(t abi.Type, input string) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		return common.HexToAddress(input), nil
	case abi.BoolTy:
		return strconv.ParseBool(input)
	case abi.StringTy:
		return input, nil
	case abi.BytesTy:
		return hexutil.Decode(input)
	case abi.FixedBytesTy:
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, err
		}
		if len(data) > t.Size {
			return nil, fmt.Errorf("value longer than %d bytes", t.Size)
		}
		out := reflect.New(t.GetType()).Elem()
		reflect.Copy(out, reflect.ValueOf(common.RightPadBytes(data, t.Size)))
		return out.Interface(), nil
	case abi.IntTy, abi.UintTy:
		return parseInt(t, input)
	default:
		return nil, fmt.Errorf("unsupported argument type")
	}
}

func parseInt(t abi.Type, input string) (interface{}, error) {
	value, ok := new(big.Int).SetString(input, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %s", input)
	}
	if t.T == abi.UintTy && value.Sign() < 0 {
		return nil, fmt.Errorf("negative value for unsigned type")
	}
	bits := value.BitLen()
	if t.T == abi.IntTy {
		if value.Sign() < 0 {
			bits = new(big.Int).Sub(new(big.Int).Neg(value), big.NewInt(1)).BitLen()
		}
		bits++
	}
	if bits > t.Size {
		return nil, fmt.Errorf("value overflows %d bits", t.Size)
	}

	goType := t.GetType()
	if goType == reflect.TypeOf(&big.Int{}) {
		return value, nil
	}
	out := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		out.SetUint(value.Uint64())
	} else {
		out.SetInt(value.Int64())
	}
	return out.Interface(), nil
}

// ParseAddresses converts hex strings into addresses, skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
