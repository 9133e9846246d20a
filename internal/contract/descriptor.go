package contract

import (
	"github.com/ethereum/go-ethereum/common"

	"readScope/internal/model"
)

// NoArgs returns the argument list for a function that takes no arguments.
// A nil argument list means the arguments are not known yet.
func NoArgs() []interface{} {
	return []interface{}{}
}

// Descriptor holds everything needed to issue one read.
type Descriptor struct {
	ChainID      uint64
	Contract     *Contract
	FunctionName string
	Args         []interface{}
	Block        model.BlockSelector
}

// Complete reports whether the read can be dispatched.
func (d Descriptor) Complete() bool {
	return d.Contract != nil && d.FunctionName != "" && d.Args != nil
}

// Key derives the cache key for the descriptor.
func (d Descriptor) Key() CacheKey {
	var addr *common.Address
	if d.Contract != nil {
		a := d.Contract.Address()
		addr = &a
	}
	return BuildKey(d.ChainID, addr, d.FunctionName, d.Args, d.Block)
}
