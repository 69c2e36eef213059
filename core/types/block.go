package types

import (
	"bytes"
	"encoding/binary"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// FinalizedBlock is an assembled block waiting for commit. Receipts follow
// the body's transaction order.
type FinalizedBlock struct {
	Block    *gethtypes.Block
	Receipts []*Receipt
}

// nativeExtraTag prefixes the header extra data carrying the native block
// number.
var nativeExtraTag = []byte("DFI")

// NativeBlockExtra encodes the host chain block number into header extra
// data.
func NativeBlockExtra(number uint64) []byte {
	extra := make([]byte, len(nativeExtraTag)+8)
	copy(extra, nativeExtraTag)
	binary.BigEndian.PutUint64(extra[len(nativeExtraTag):], number)
	return extra
}

// ParseNativeBlockExtra is the inverse of NativeBlockExtra.
func ParseNativeBlockExtra(extra []byte) (uint64, bool) {
	if len(extra) != len(nativeExtraTag)+8 || !bytes.HasPrefix(extra, nativeExtraTag) {
		return 0, false
	}
	return binary.BigEndian.Uint64(extra[len(nativeExtraTag):]), true
}
