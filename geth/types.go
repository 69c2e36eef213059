// Package geth runs the side ledger's transactions on go-ethereum's EVM. It
// opens a go-ethereum StateDB over the same trie database the state backend
// writes to, so state moves between the two without copying.
package geth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/types"
)

// ToBig converts a possibly nil *uint256.Int to *big.Int.
func ToBig(u *uint256.Int) *big.Int {
	if u == nil {
		return new(big.Int)
	}
	return u.ToBig()
}

// blockContext builds the EVM block context for a vicinity. The randomness
// is always set, which go-ethereum takes as post-merge.
func blockContext(v types.Vicinity, getHash gethvm.GetHashFunc) gethvm.BlockContext {
	random := v.Randomness
	return gethvm.BlockContext{
		CanTransfer: gethcore.CanTransfer,
		Transfer:    gethcore.Transfer,
		GetHash:     getHash,
		Coinbase:    v.Beneficiary,
		GasLimit:    v.GasLimit,
		BlockNumber: new(big.Int).SetUint64(v.BlockNumber),
		Time:        v.Timestamp,
		Difficulty:  ToBig(v.Difficulty),
		BaseFee:     ToBig(v.BaseFee),
		BlobBaseFee: big.NewInt(1),
		Random:      &random,
	}
}

// message builds a zero-priced go-ethereum message. Gas is paid through the
// state backend, outside the EVM.
func message(from common.Address, to *common.Address, nonce uint64, value *big.Int, gas uint64, data []byte) *gethcore.Message {
	if value == nil {
		value = new(big.Int)
	}
	return &gethcore.Message{
		From:      from,
		To:        to,
		Nonce:     nonce,
		Value:     value,
		GasLimit:  gas,
		GasPrice:  new(big.Int),
		GasFeeCap: new(big.Int),
		GasTipCap: new(big.Int),
		Data:      data,
	}
}
