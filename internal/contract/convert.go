package contract

import (
	"bytes"
	"fmt"
	"math/big"
)

// AsString converts a string or bytes32 output to text.
func AsString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

// AsUint8 converts a uint8 output, as returned by decimals().
func AsUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

// FirstValue returns the single output of a read.
func FirstValue(resp ReadResponse) (interface{}, error) {
	if resp.Err != nil {
		return nil, resp.Err
	}
	values, ok := resp.Values()
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("read %s returned no values", resp.Key.FunctionName)
	}
	return values[0], nil
}
