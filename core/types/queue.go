package types

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// QueueItem is one transaction held by a build context together with the
// results recorded for it. GasUsed is known at push time; the remaining
// result fields are filled in by block assembly.
type QueueItem struct {
	Tx        QueueTx
	TxHash    common.Hash
	GasUsed   uint64
	GasFees   *uint256.Int
	StateRoot common.Hash
	LogsBloom gethtypes.Bloom
	Receipt   *Receipt
}

// Sender returns the EVM sender of the item and whether it has one.
func (it *QueueItem) Sender() (common.Address, bool) {
	if s := SignedOf(it.Tx); s != nil {
		return s.Sender, true
	}
	return common.Address{}, false
}

// Copy returns a shallow copy safe to hand out of a locked context.
func (it *QueueItem) Copy() *QueueItem {
	cpy := *it
	if it.GasFees != nil {
		cpy.GasFees = new(uint256.Int).Set(it.GasFees)
	}
	return &cpy
}
