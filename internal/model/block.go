package model

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// BlockTag names a chain state snapshot that is not an explicit height.
type BlockTag string

const (
	BlockLatest    BlockTag = "latest"
	BlockPending   BlockTag = "pending"
	BlockSafe      BlockTag = "safe"
	BlockFinalized BlockTag = "finalized"
)

// BlockSelector chooses which chain state a read is evaluated against.
// The zero value selects the latest accepted block.
type BlockSelector struct {
	Tag    BlockTag
	Height uint64
	Exact  bool
}

// Latest returns the selector for the latest accepted block.
func Latest() BlockSelector { return BlockSelector{Tag: BlockLatest} }

// Pending returns the selector for the pending block.
func Pending() BlockSelector { return BlockSelector{Tag: BlockPending} }

// AtHeight returns a selector pinned to an explicit block height.
func AtHeight(height uint64) BlockSelector {
	return BlockSelector{Height: height, Exact: true}
}

// ParseBlockSelector parses a tag name, a decimal height or a 0x-prefixed hex height.
func ParseBlockSelector(input string) (BlockSelector, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	switch input {
	case "", string(BlockLatest):
		return Latest(), nil
	case string(BlockPending):
		return Pending(), nil
	case string(BlockSafe):
		return BlockSelector{Tag: BlockSafe}, nil
	case string(BlockFinalized):
		return BlockSelector{Tag: BlockFinalized}, nil
	}

	base := 10
	digits := input
	if strings.HasPrefix(input, "0x") {
		base = 16
		digits = input[2:]
	}
	height, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return BlockSelector{}, fmt.Errorf("invalid block selector: %s", input)
	}
	return AtHeight(height), nil
}

// String returns the canonical form used in cache keys and logs.
func (b BlockSelector) String() string {
	if b.Exact {
		return strconv.FormatUint(b.Height, 10)
	}
	if b.Tag == "" {
		return string(BlockLatest)
	}
	return string(b.Tag)
}

// IsPending reports whether the selector targets the pending block.
func (b BlockSelector) IsPending() bool {
	return !b.Exact && b.Tag == BlockPending
}

// BlockNumber converts the selector into the block argument accepted by ethclient.
// Latest maps to nil; named tags map to the negative rpc.BlockNumber values.
func (b BlockSelector) BlockNumber() *big.Int {
	if b.Exact {
		return new(big.Int).SetUint64(b.Height)
	}
	switch b.Tag {
	case BlockPending:
		return big.NewInt(int64(rpc.PendingBlockNumber))
	case BlockSafe:
		return big.NewInt(int64(rpc.SafeBlockNumber))
	case BlockFinalized:
		return big.NewInt(int64(rpc.FinalizedBlockNumber))
	default:
		return nil
	}
}
