// Package params defines the protocol constants of the side ledger: fee
// bounds, limits of the gas-price endpoints and the reserved system contract
// addresses.
package params

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	GWei = 1_000_000_000

	// BaseFeeChangeDenominator bounds the per-block base fee move to 1/8.
	BaseFeeChangeDenominator = 8

	// DefaultGasTargetFactor is the divisor of the gas limit giving the
	// per-block gas target.
	DefaultGasTargetFactor = 2

	DefaultBlockGasLimit = 30_000_000
	DefaultFinalityCount = 2880

	// MaxFeeHistoryBlocks is the largest block_count accepted by fee history.
	MaxFeeHistoryBlocks = 1024

	// MaxFeeHistoryPercentiles caps the reward percentile list length.
	MaxFeeHistoryPercentiles = 100

	DefaultPriorityFeeBlocks     = 20
	DefaultPriorityFeePercentile = 60

	// TxGas is the flat gas charged to synthetic system transactions.
	TxGas = 21_000
)

var (
	// InitialBaseFee is the base fee of the genesis block and the floor of
	// every subsequent base fee.
	InitialBaseFee = uint256.NewInt(10 * GWei)

	// MaxBaseFee is the ceiling of the base fee.
	MaxBaseFee = uint256.NewInt(100_000 * GWei)
)

// Reserved system addresses.
var (
	IntrinsicsAddress     = common.HexToAddress("0xdf00000000000000000000000000000000000000")
	TransferDomainAddress = common.HexToAddress("0xdf00000000000000000000000000000000000001")

	// DST20AddressPrefix is the leading byte of every token contract address;
	// the trailing eight bytes carry the native token id.
	DST20AddressPrefix = byte(0xff)
)

// DST20Address derives the reserved contract address of a native token.
func DST20Address(tokenID uint64) common.Address {
	var a common.Address
	a[0] = DST20AddressPrefix
	for i := 0; i < 8; i++ {
		a[common.AddressLength-1-i] = byte(tokenID >> (8 * i))
	}
	return a
}
