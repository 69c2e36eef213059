package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Vicinity is the block-level context every transaction application sees.
// It is a value: the With* helpers return modified copies.
type Vicinity struct {
	GasPrice    *uint256.Int
	Origin      common.Address
	Beneficiary common.Address
	BlockNumber uint64
	Timestamp   uint64
	GasLimit    uint64
	BaseFee     *uint256.Int
	Randomness  common.Hash
	Difficulty  *uint256.Int
	ChainID     uint64
}

// WithOrigin returns a copy of v for a transaction sent by origin at price.
func (v Vicinity) WithOrigin(origin common.Address, price *uint256.Int) Vicinity {
	v.Origin = origin
	v.GasPrice = price
	return v
}

// WithBlock returns a copy of v positioned at another block.
func (v Vicinity) WithBlock(number, timestamp uint64) Vicinity {
	v.BlockNumber = number
	v.Timestamp = timestamp
	return v
}

// WithBaseFee returns a copy of v with a replaced base fee.
func (v Vicinity) WithBaseFee(fee *uint256.Int) Vicinity {
	v.BaseFee = fee
	return v
}
