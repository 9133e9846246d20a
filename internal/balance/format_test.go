package balance

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readScope/internal/model"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"1500000000000000000", 18, "1.5"},
		{"1000000000000000000", 18, "1"},
		{"1", 18, "0.000000000000000001"},
		{"0", 18, "0"},
		{"123456", 0, "123456"},
		{"123456", 6, "0.123456"},
		{"100", 2, "1"},
		{"-250", 2, "-2.5"},
		// 2^256 - 1 keeps every digit.
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", 18,
			"115792089237316195423570985008687907853269984665640564039457.584007913129639935"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatUnits(mustBig(t, tc.value), tc.decimals), "%s/%d", tc.value, tc.decimals)
	}
	assert.Equal(t, "0", FormatUnits(nil, 18))
}

func TestToUint256(t *testing.T) {
	v, err := ToUint256(big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	limbs := model.Uint256{Low: big.NewInt(5), High: big.NewInt(1)}
	v, err = ToUint256(limbs)
	require.NoError(t, err)
	want := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(5))
	assert.Equal(t, 0, want.Cmp(v))

	tuple := struct {
		Low  *big.Int
		High *big.Int
	}{Low: big.NewInt(7), High: big.NewInt(0)}
	v, err = ToUint256(tuple)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int64())

	_, err = ToUint256(big.NewInt(-1))
	assert.Error(t, err)
	_, err = ToUint256(new(big.Int).Lsh(big.NewInt(1), 256))
	assert.Error(t, err)
	_, err = ToUint256(model.Uint256{Low: new(big.Int).Lsh(big.NewInt(1), 128)})
	assert.Error(t, err)
	_, err = ToUint256("42")
	assert.Error(t, err)
	_, err = ToUint256(nil)
	assert.Error(t, err)
}
