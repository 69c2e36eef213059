package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/crypto"
)

// DST20 storage layout.
const (
	BalancesSlot    = 0
	TotalSupplySlot = 2
	NameSlot        = 3
	SymbolSlot      = 4
)

var (
	TransferSelector  = crypto.Selector("transfer(address,uint256)")
	BalanceOfSelector = crypto.Selector("balanceOf(address)")
	TransferTopic     = crypto.EventTopic("Transfer(address,address,uint256)")
)

// BalanceSlot is the storage slot of holder's token balance.
func BalanceSlot(holder common.Address) common.Hash {
	return crypto.MappingSlot(holder, BalancesSlot)
}

// TotalSupplyKey is the storage slot of the total supply.
var TotalSupplyKey = common.BigToHash(big.NewInt(TotalSupplySlot))

// StringDiffs lays out s at slot the way Solidity stores a string: inline
// with length*2 in the last byte when shorter than 32 bytes, otherwise
// length*2+1 at slot and the data in the words from keccak(slot).
func StringDiffs(slot uint64, s string) []state.StorageDiff {
	key := common.BigToHash(new(big.Int).SetUint64(slot))
	data := []byte(s)
	if len(data) < 32 {
		var word common.Hash
		copy(word[:], data)
		word[31] = byte(len(data) * 2)
		return []state.StorageDiff{{Key: key, Value: word}}
	}
	diffs := []state.StorageDiff{{Key: key, Value: uint64Word(uint64(len(data)*2 + 1))}}
	base := new(uint256.Int).SetBytes32(crypto.Keccak256(key.Bytes()))
	for i := 0; i*32 < len(data); i++ {
		var word common.Hash
		copy(word[:], data[i*32:])
		pos := new(uint256.Int).AddUint64(base, uint64(i))
		diffs = append(diffs, state.StorageDiff{Key: pos.Bytes32(), Value: word})
	}
	return diffs
}

// DeployDiffs returns the initial storage of a token contract.
func DeployDiffs(name, symbol string) []state.StorageDiff {
	diffs := StringDiffs(NameSlot, name)
	return append(diffs, StringDiffs(SymbolSlot, symbol)...)
}

// EncodeTransfer builds transfer(to, amount) call data.
func EncodeTransfer(to common.Address, amount *uint256.Int) []byte {
	data := make([]byte, 4+64)
	copy(data, TransferSelector[:])
	copy(data[4+12:36], to.Bytes())
	amount.WriteToSlice(data[36:68])
	return data
}

// EncodeBalanceOf builds balanceOf(holder) call data.
func EncodeBalanceOf(holder common.Address) []byte {
	data := make([]byte, 4+32)
	copy(data, BalanceOfSelector[:])
	copy(data[4+12:], holder.Bytes())
	return data
}

// DecodeTransfer extracts the recipient and amount of transfer call data.
func DecodeTransfer(data []byte) (common.Address, *uint256.Int, error) {
	if len(data) < 4+64 || [4]byte(data[:4]) != TransferSelector {
		return common.Address{}, nil, ErrInvalidCallData
	}
	return common.BytesToAddress(data[4:36]), new(uint256.Int).SetBytes(data[36:68]), nil
}
