package rawdb

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var errBlockNumberRange = errors.New("rawdb: block number exceeds 64 bits")

// Key prefixes. Trie nodes written by the hash-scheme triedb use bare 32-byte
// keys and go-ethereum's code store uses "c", so every key here is either a
// distinct prefix or a distinct length.
var (
	latestBlockKey = []byte("LastBlock")
	attributesKey  = []byte("Attributes")

	blockPrefix        = []byte("b") // b + num (32 bytes BE) -> block RLP
	blockNumberPrefix  = []byte("H") // H + hash -> num (32 bytes BE)
	txLookupPrefix     = []byte("t") // t + tx hash -> txLookup RLP
	receiptPrefix      = []byte("r") // r + tx hash -> storedReceipt RLP
	logPrefix          = []byte("l") // l + num (32 bytes BE) + address -> []storedLog RLP
	contractCodePrefix = []byte("C") // C + address + code hash -> code
)

// encodeBlockNumber encodes a block number as a 256-bit big-endian value.
func encodeBlockNumber(number uint64) []byte {
	return common.BigToHash(new(big.Int).SetUint64(number)).Bytes()
}

func decodeBlockNumber(enc []byte) (uint64, error) {
	if len(enc) != common.HashLength {
		return 0, ErrNotFound
	}
	n := new(big.Int).SetBytes(enc)
	if !n.IsUint64() {
		return 0, errBlockNumberRange
	}
	return n.Uint64(), nil
}

func blockKey(number uint64) []byte {
	return append(common.CopyBytes(blockPrefix), encodeBlockNumber(number)...)
}

func blockNumberKey(hash common.Hash) []byte {
	return append(common.CopyBytes(blockNumberPrefix), hash.Bytes()...)
}

func txLookupKey(hash common.Hash) []byte {
	return append(common.CopyBytes(txLookupPrefix), hash.Bytes()...)
}

func receiptKey(hash common.Hash) []byte {
	return append(common.CopyBytes(receiptPrefix), hash.Bytes()...)
}

// logsPrefix is the iteration prefix of every log index of one block.
func logsPrefix(number uint64) []byte {
	return append(common.CopyBytes(logPrefix), encodeBlockNumber(number)...)
}

func logKey(number uint64, addr common.Address) []byte {
	return append(logsPrefix(number), addr.Bytes()...)
}

func contractCodeKey(addr common.Address, codeHash common.Hash) []byte {
	key := append(common.CopyBytes(contractCodePrefix), addr.Bytes()...)
	return append(key, codeHash.Bytes()...)
}
