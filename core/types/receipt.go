package types

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Receipt is a consensus receipt plus the sender and recipient, which the
// RPC layer returns but go-ethereum's receipt does not carry.
type Receipt struct {
	*gethtypes.Receipt
	From common.Address
	To   *common.Address
}

// Failed reports whether the transaction reverted or ran out of gas.
func (r *Receipt) Failed() bool {
	return r.Status != gethtypes.ReceiptStatusSuccessful
}

// LogsBloom computes the bloom filter over logs.
func LogsBloom(logs []*gethtypes.Log) gethtypes.Bloom {
	var bloom gethtypes.Bloom
	for _, l := range logs {
		bloom.Add(l.Address.Bytes())
		for _, topic := range l.Topics {
			bloom.Add(topic.Bytes())
		}
	}
	return bloom
}

// MergeBloom ORs src into dst.
func MergeBloom(dst *gethtypes.Bloom, src gethtypes.Bloom) {
	for i := range dst {
		dst[i] |= src[i]
	}
}
