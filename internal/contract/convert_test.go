package contract

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readScope/internal/query"
)

func TestAsString(t *testing.T) {
	var raw [32]byte
	copy(raw[:], "DAI")

	for _, input := range []interface{}{"DAI", raw, []byte("DAI\x00\x00")} {
		got, ok := AsString(input)
		assert.True(t, ok)
		assert.Equal(t, "DAI", got)
	}
	_, ok := AsString(42)
	assert.False(t, ok)
}

func TestAsUint8(t *testing.T) {
	got, err := AsUint8(uint8(18))
	require.NoError(t, err)
	assert.Equal(t, uint8(18), got)

	got, err = AsUint8(big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, uint8(6), got)

	_, err = AsUint8(big.NewInt(256))
	assert.Error(t, err)
	_, err = AsUint8("18")
	assert.Error(t, err)
}

func TestFirstValue(t *testing.T) {
	revert := errors.New("execution reverted")
	_, err := FirstValue(ReadResponse{State: query.State{Err: revert}})
	assert.Same(t, revert, err)

	_, err = FirstValue(ReadResponse{State: query.State{Status: query.StatusSuccess, Data: []interface{}{}}})
	assert.Error(t, err)

	v, err := FirstValue(ReadResponse{State: query.State{Status: query.StatusSuccess, Data: []interface{}{"x"}}})
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}
