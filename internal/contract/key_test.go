package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"readScope/internal/model"
)

var (
	tokenAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	ownerAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestBuildKeyStructuralEquality(t *testing.T) {
	a := BuildKey(1, &tokenAddr, "balanceOf", []interface{}{ownerAddr}, model.Latest())

	addrCopy := common.HexToAddress(tokenAddr.Hex())
	b := BuildKey(1, &addrCopy, "balanceOf", []interface{}{common.HexToAddress(ownerAddr.Hex())}, model.BlockSelector{})

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, "readContract", a.Entity())
}

func TestBuildKeyDiffersPerField(t *testing.T) {
	base := BuildKey(1, &tokenAddr, "balanceOf", []interface{}{ownerAddr}, model.Latest())
	other := common.HexToAddress("0x3333333333333333333333333333333333333333")

	variants := map[string]CacheKey{
		"chain":    BuildKey(2, &tokenAddr, "balanceOf", []interface{}{ownerAddr}, model.Latest()),
		"contract": BuildKey(1, &other, "balanceOf", []interface{}{ownerAddr}, model.Latest()),
		"missing":  BuildKey(1, nil, "balanceOf", []interface{}{ownerAddr}, model.Latest()),
		"function": BuildKey(1, &tokenAddr, "allowance", []interface{}{ownerAddr}, model.Latest()),
		"args":     BuildKey(1, &tokenAddr, "balanceOf", []interface{}{other}, model.Latest()),
		"no args":  BuildKey(1, &tokenAddr, "balanceOf", nil, model.Latest()),
		"empty":    BuildKey(1, &tokenAddr, "balanceOf", []interface{}{}, model.Latest()),
		"block":    BuildKey(1, &tokenAddr, "balanceOf", []interface{}{ownerAddr}, model.Pending()),
		"height":   BuildKey(1, &tokenAddr, "balanceOf", []interface{}{ownerAddr}, model.AtHeight(10)),
	}
	seen := map[string]string{base.Hash(): "base"}
	for name, key := range variants {
		prev, dup := seen[key.Hash()]
		assert.False(t, dup, "%s collides with %s", name, prev)
		seen[key.Hash()] = name
	}
}

func TestBuildKeyDoesNotAliasInputs(t *testing.T) {
	addr := tokenAddr
	args := []interface{}{big.NewInt(5)}
	key := BuildKey(1, &addr, "f", args, model.Latest())
	before := key.Hash()

	addr = common.Address{}
	args[0] = big.NewInt(6)

	assert.Equal(t, before, key.Hash())
}

func TestCanonicalArgs(t *testing.T) {
	numeric := BuildKey(1, &tokenAddr, "f", []interface{}{big.NewInt(42)}, model.Latest())
	native := BuildKey(1, &tokenAddr, "f", []interface{}{uint64(42)}, model.Latest())
	assert.Equal(t, numeric.Hash(), native.Hash())

	text := BuildKey(1, &tokenAddr, "f", []interface{}{"42"}, model.Latest())
	assert.NotEqual(t, numeric.Hash(), text.Hash())

	nested := BuildKey(1, &tokenAddr, "f", []interface{}{[]common.Address{ownerAddr}, []byte{0xde, 0xad}}, model.Latest())
	assert.Contains(t, nested.Hash(), "address:0x2222222222222222222222222222222222222222")
	assert.Contains(t, nested.Hash(), "bytes:0xdead")
}

func TestDescriptorComplete(t *testing.T) {
	bound := NewContract(tokenAddr, mustERC20(t), nil)

	assert.True(t, Descriptor{Contract: bound, FunctionName: "symbol", Args: NoArgs()}.Complete())
	assert.False(t, Descriptor{FunctionName: "symbol", Args: NoArgs()}.Complete())
	assert.False(t, Descriptor{Contract: bound, Args: NoArgs()}.Complete())
	assert.False(t, Descriptor{Contract: bound, FunctionName: "symbol"}.Complete())

	key := Descriptor{ChainID: 5, Contract: bound, FunctionName: "symbol", Args: NoArgs()}.Key()
	assert.Equal(t, tokenAddr, *key.Contract)
	assert.Equal(t, uint64(5), key.ChainID)
}
