package types

import "github.com/DeFiCh/ain-sub000/params"

// Attributes are the chain-wide tunables persisted next to the blocks.
type Attributes struct {
	BlockGasLimit   uint64
	GasTargetFactor uint64
	FinalityCount   uint64
}

// DefaultAttributes returns the attributes used before any are persisted.
func DefaultAttributes() *Attributes {
	return &Attributes{
		BlockGasLimit:   params.DefaultBlockGasLimit,
		GasTargetFactor: params.DefaultGasTargetFactor,
		FinalityCount:   params.DefaultFinalityCount,
	}
}
