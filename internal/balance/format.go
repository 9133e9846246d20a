package balance

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"readScope/internal/model"
)

// FormatUnits renders value / 10^decimals as an exact decimal string with
// trailing fractional zeros removed.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))
	if strings.Contains(text, ".") {
		text = strings.TrimRight(text, "0")
		text = strings.TrimSuffix(text, ".")
	}
	if sign < 0 {
		return "-" + text
	}
	return text
}

// ToUint256 converts a decoded balance to an integer. It accepts plain
// integers as well as two-limb values with Low and High fields.
func ToUint256(raw interface{}) (*big.Int, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("balance: missing value")
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("balance: missing value")
		}
		return checkRange(new(big.Int).Set(v))
	case big.Int:
		return checkRange(new(big.Int).Set(&v))
	case model.Uint256:
		return limbs(v)
	case *model.Uint256:
		if v == nil {
			return nil, fmt.Errorf("balance: missing value")
		}
		return limbs(*v)
	case uint64:
		return new(big.Int).SetUint64(v), nil
	}

	// ABI-decoded tuples arrive as anonymous structs.
	rv := reflect.Indirect(reflect.ValueOf(raw))
	if rv.Kind() == reflect.Struct {
		low, lowOK := bigField(rv, "Low")
		high, highOK := bigField(rv, "High")
		if lowOK && highOK {
			return limbs(model.Uint256{Low: low, High: high})
		}
	}
	return nil, fmt.Errorf("balance: unsupported value type %T", raw)
}

func limbs(u model.Uint256) (*big.Int, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u.Big(), nil
}

func checkRange(v *big.Int) (*big.Int, error) {
	if _, err := model.Uint256FromBig(v); err != nil {
		return nil, err
	}
	return v, nil
}

func bigField(rv reflect.Value, name string) (*big.Int, bool) {
	field := rv.FieldByName(name)
	if !field.IsValid() || !field.CanInterface() {
		return nil, false
	}
	switch v := field.Interface().(type) {
	case *big.Int:
		return v, true
	case big.Int:
		return &v, true
	default:
		return nil, false
	}
}
