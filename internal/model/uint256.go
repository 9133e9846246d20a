package model

import (
	"fmt"
	"math/big"
)

var limbMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Uint256 is an unsigned 256-bit integer split into two 128-bit limbs.
type Uint256 struct {
	Low  *big.Int
	High *big.Int
}

// Uint256FromBig splits value into limbs.
func Uint256FromBig(value *big.Int) (Uint256, error) {
	if value == nil {
		return Uint256{}, fmt.Errorf("uint256: nil value")
	}
	if value.Sign() < 0 {
		return Uint256{}, fmt.Errorf("uint256: negative value %s", value)
	}
	if value.BitLen() > 256 {
		return Uint256{}, fmt.Errorf("uint256: overflow %s", value)
	}
	return Uint256{
		Low:  new(big.Int).And(value, limbMask),
		High: new(big.Int).Rsh(value, 128),
	}, nil
}

// Big joins the limbs into a single integer. Missing limbs count as zero.
func (u Uint256) Big() *big.Int {
	out := new(big.Int)
	if u.High != nil {
		out.Lsh(u.High, 128)
	}
	if u.Low != nil {
		out.Add(out, u.Low)
	}
	return out
}

// Validate checks that both limbs fit in 128 bits.
func (u Uint256) Validate() error {
	for name, limb := range map[string]*big.Int{"low": u.Low, "high": u.High} {
		if limb == nil {
			continue
		}
		if limb.Sign() < 0 || limb.BitLen() > 128 {
			return fmt.Errorf("uint256: %s limb out of range: %s", name, limb)
		}
	}
	return nil
}
