package contract

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"readScope/internal/model"
	"readScope/internal/watch"
)

// CacheKey identifies one contract read. Keys built from equal inputs have
// equal hashes.
type CacheKey struct {
	ChainID      uint64
	Contract     *common.Address
	FunctionName string
	Args         []interface{}
	Block        model.BlockSelector
}

// BuildKey derives the cache key for a read. It has no side effects.
func BuildKey(chainID uint64, contract *common.Address, functionName string, args []interface{}, block model.BlockSelector) CacheKey {
	key := CacheKey{
		ChainID:      chainID,
		FunctionName: functionName,
		Block:        block,
	}
	if contract != nil {
		addr := *contract
		key.Contract = &addr
	}
	if args != nil {
		key.Args = append(make([]interface{}, 0, len(args)), args...)
	}
	return key
}

// Entity returns the entity tag shared by all contract reads.
func (k CacheKey) Entity() string {
	return watch.EntityReadContract
}

// Hash returns the canonical encoding of the key.
func (k CacheKey) Hash() string {
	var contract interface{}
	if k.Contract != nil {
		contract = strings.ToLower(k.Contract.Hex())
	}
	var args interface{}
	if k.Args != nil {
		args = canonicalArgs(k.Args)
	}

	parts := []interface{}{
		k.Entity(),
		k.ChainID,
		contract,
		k.FunctionName,
		args,
		k.Block.String(),
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return fmt.Sprintf("%v", parts)
	}
	return string(data)
}

// Equal reports whether both keys identify the same read.
func (k CacheKey) Equal(other CacheKey) bool {
	return k.Hash() == other.Hash()
}

func canonicalArgs(args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args))
	for _, arg := range args {
		out = append(out, canonicalValue(arg))
	}
	return out
}

func canonicalValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case common.Address:
		return "address:" + strings.ToLower(v.Hex())
	case *common.Address:
		if v == nil {
			return nil
		}
		return "address:" + strings.ToLower(v.Hex())
	case common.Hash:
		return "bytes:" + v.Hex()
	case *big.Int:
		if v == nil {
			return nil
		}
		return "int:" + v.String()
	case big.Int:
		return "int:" + v.String()
	case model.Uint256:
		return "int:" + v.Big().String()
	case []byte:
		return "bytes:" + hexutil.Encode(v)
	case string:
		return "string:" + v
	case bool:
		return v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("int:%d", v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return "bytes:" + hexutil.Encode(buf)
		}
		items := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items = append(items, canonicalValue(rv.Index(i).Interface()))
		}
		return items
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return canonicalValue(rv.Elem().Interface())
	default:
		return fmt.Sprintf("%T:%+v", value, value)
	}
}
