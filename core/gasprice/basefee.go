package gasprice

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/params"
)

var (
	ErrFeeOverflow       = errors.New("gasprice: fee arithmetic overflow")
	ErrFeeUnderflow      = errors.New("gasprice: fee arithmetic underflow")
	ErrFeeDivisionByZero = errors.New("gasprice: division by zero in fee arithmetic")
)

// CalcBaseFee computes the base fee of the child of a block with the given
// gas limit, gas used and base fee. The target is gasLimit/factor; the fee
// moves by at most 1/8 per block, never above MaxBaseFee and never below
// InitialBaseFee. Every step is checked.
func CalcBaseFee(gasLimit, gasUsed uint64, parentBaseFee *uint256.Int, factor uint64) (*uint256.Int, error) {
	if factor == 0 {
		return nil, fmt.Errorf("%w: gas target factor", ErrFeeDivisionByZero)
	}
	target := gasLimit / factor
	if target == 0 {
		return nil, fmt.Errorf("%w: gas target", ErrFeeDivisionByZero)
	}
	base := new(uint256.Int).Set(params.InitialBaseFee)
	if parentBaseFee != nil {
		base.Set(parentBaseFee)
	}

	switch {
	case gasUsed == target:
		return base, nil

	case gasUsed > target:
		delta, err := baseFeeDelta(base, gasUsed-target, target)
		if err != nil {
			return nil, err
		}
		if delta.IsZero() {
			delta.SetOne()
		}
		fee, overflow := new(uint256.Int).AddOverflow(base, delta)
		if overflow {
			return nil, fmt.Errorf("%w: base fee increase", ErrFeeOverflow)
		}
		if fee.Gt(params.MaxBaseFee) {
			fee.Set(params.MaxBaseFee)
		}
		return fee, nil

	default:
		delta, err := baseFeeDelta(base, target-gasUsed, target)
		if err != nil {
			return nil, err
		}
		fee, underflow := new(uint256.Int).SubOverflow(base, delta)
		if underflow {
			return nil, fmt.Errorf("%w: base fee decrease", ErrFeeUnderflow)
		}
		if fee.Lt(params.InitialBaseFee) {
			fee.Set(params.InitialBaseFee)
		}
		return fee, nil
	}
}

// baseFeeDelta returns base * diff / target / BaseFeeChangeDenominator.
func baseFeeDelta(base *uint256.Int, diff, target uint64) (*uint256.Int, error) {
	num, overflow := new(uint256.Int).MulOverflow(base, uint256.NewInt(diff))
	if overflow {
		return nil, fmt.Errorf("%w: base fee delta", ErrFeeOverflow)
	}
	num.Div(num, uint256.NewInt(target))
	return num.Div(num, uint256.NewInt(params.BaseFeeChangeDenominator)), nil
}

// CalculateBaseFee computes the base fee of a block built on parentHash. The
// zero hash denotes the parent of genesis and yields InitialBaseFee.
func (e *FeeEngine) CalculateBaseFee(parentHash common.Hash, gasTargetFactor uint64) (*uint256.Int, error) {
	if parentHash == (common.Hash{}) {
		return new(uint256.Int).Set(params.InitialBaseFee), nil
	}
	parent, err := e.chain.BlockByHash(parentHash)
	if err != nil {
		return nil, fmt.Errorf("gasprice: parent block %x: %w", parentHash, err)
	}
	return nextBaseFee(parent.Header(), gasTargetFactor)
}

func nextBaseFee(parent *gethtypes.Header, factor uint64) (*uint256.Int, error) {
	return CalcBaseFee(parent.GasLimit, parent.GasUsed, headerBaseFee(parent), factor)
}

// headerBaseFee returns the header's base fee, InitialBaseFee when unset.
func headerBaseFee(h *gethtypes.Header) *uint256.Int {
	if h.BaseFee == nil {
		return new(uint256.Int).Set(params.InitialBaseFee)
	}
	fee, overflow := uint256.FromBig(h.BaseFee)
	if overflow {
		return new(uint256.Int).Set(params.MaxBaseFee)
	}
	return fee
}
