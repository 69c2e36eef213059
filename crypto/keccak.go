// Package crypto holds the hashing helpers shared by the trie backend and the
// system contracts.
package crypto

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// MappingSlot returns the storage slot of key inside a Solidity mapping
// declared at slot: keccak256(pad32(key) ++ pad32(slot)).
func MappingSlot(key common.Address, slot uint64) common.Hash {
	var buf [64]byte
	copy(buf[12:32], key.Bytes())
	s := common.BigToHash(new(big.Int).SetUint64(slot))
	copy(buf[32:], s[:])
	return Keccak256Hash(buf[:])
}

// EventTopic returns topic0 for an event signature such as
// "Transfer(address,address,uint256)".
func EventTopic(signature string) common.Hash {
	return Keccak256Hash([]byte(signature))
}

// Selector returns the four byte function selector of a signature.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], Keccak256([]byte(signature)))
	return sel
}
