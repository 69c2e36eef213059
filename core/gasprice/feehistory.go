package gasprice

import (
	"errors"
	"fmt"
	"sort"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/params"
)

var (
	ErrInvalidBlockCount   = fmt.Errorf("gasprice: block count must be in [1, %d]", params.MaxFeeHistoryBlocks)
	ErrTooManyPercentiles  = fmt.Errorf("gasprice: at most %d reward percentiles", params.MaxFeeHistoryPercentiles)
	ErrInvalidPercentile   = errors.New("gasprice: reward percentile out of range [0, 100]")
	ErrUnsortedPercentiles = errors.New("gasprice: reward percentiles must be non-decreasing")
	ErrFutureBlock         = errors.New("gasprice: requested block is beyond the head")
)

// BlockNumber selects the newest block of a fee history request.
type BlockNumber int64

// LatestBlockNumber selects the current head.
const LatestBlockNumber BlockNumber = -1

// FeeHistory is the result of a fee history request. BaseFee carries one
// entry more than the other series: the projected fee of the next block.
type FeeHistory struct {
	OldestBlock  uint64
	BaseFee      []*uint256.Int
	GasUsedRatio []float64
	Reward       [][]*uint256.Int
}

// ValidateFeeHistory checks fee history arguments without touching the
// chain.
func ValidateFeeHistory(blockCount uint64, percentiles []float64) error {
	if blockCount < 1 || blockCount > params.MaxFeeHistoryBlocks {
		return ErrInvalidBlockCount
	}
	if len(percentiles) > params.MaxFeeHistoryPercentiles {
		return ErrTooManyPercentiles
	}
	for i, p := range percentiles {
		if p < 0 || p > 100 {
			return fmt.Errorf("%w: %f", ErrInvalidPercentile, p)
		}
		if i > 0 && p < percentiles[i-1] {
			return fmt.Errorf("%w: index %d", ErrUnsortedPercentiles, i)
		}
	}
	return nil
}

// FeeHistory reports base fees, gas usage ratios and gas-weighted reward
// percentiles for blockCount blocks ending at highest. Arguments are
// validated before any block is read.
func (e *FeeEngine) FeeHistory(blockCount uint64, highest BlockNumber, percentiles []float64, gasTargetFactor uint64) (*FeeHistory, error) {
	if err := ValidateFeeHistory(blockCount, percentiles); err != nil {
		return nil, err
	}
	head, err := e.chain.LatestBlock()
	if err != nil {
		return nil, fmt.Errorf("gasprice: head block: %w", err)
	}
	last := head.NumberU64()
	if highest != LatestBlockNumber {
		if highest < 0 || uint64(highest) > last {
			return nil, fmt.Errorf("%w: %d > %d", ErrFutureBlock, highest, last)
		}
		last = uint64(highest)
	}
	if blockCount > last+1 {
		blockCount = last + 1
	}
	oldest := last + 1 - blockCount

	result := &FeeHistory{
		OldestBlock:  oldest,
		BaseFee:      make([]*uint256.Int, 0, blockCount+1),
		GasUsedRatio: make([]float64, 0, blockCount),
	}
	if len(percentiles) > 0 {
		result.Reward = make([][]*uint256.Int, 0, blockCount)
	}

	var block *gethtypes.Block
	for n := oldest; n <= last; n++ {
		if block, err = e.chain.BlockByNumber(n); err != nil {
			return nil, fmt.Errorf("gasprice: block %d: %w", n, err)
		}
		baseFee := headerBaseFee(block.Header())
		result.BaseFee = append(result.BaseFee, baseFee)

		ratio := 0.0
		if block.GasLimit() > 0 {
			ratio = float64(block.GasUsed()) / float64(block.GasLimit())
		}
		result.GasUsedRatio = append(result.GasUsedRatio, ratio)

		if len(percentiles) > 0 {
			rewards, err := e.blockRewards(block, baseFee, percentiles)
			if err != nil {
				return nil, err
			}
			result.Reward = append(result.Reward, rewards)
		}
	}

	next, err := e.chain.BlockByNumber(last + 1)
	switch {
	case err == nil:
		result.BaseFee = append(result.BaseFee, headerBaseFee(next.Header()))
	case errors.Is(err, rawdb.ErrNotFound):
		fee, err := nextBaseFee(block.Header(), gasTargetFactor)
		if err != nil {
			return nil, err
		}
		result.BaseFee = append(result.BaseFee, fee)
	default:
		return nil, fmt.Errorf("gasprice: block %d: %w", last+1, err)
	}
	return result, nil
}

type txGasAndReward struct {
	gasUsed uint64
	reward  *uint256.Int
}

// blockRewards computes, for every percentile p, the priority fee of the
// first transaction (sorted by priority fee) at which the cumulative gas
// used reaches p% of the block's gas used.
func (e *FeeEngine) blockRewards(block *gethtypes.Block, baseFee *uint256.Int, percentiles []float64) ([]*uint256.Int, error) {
	rewards := make([]*uint256.Int, len(percentiles))
	txs := block.Transactions()
	if len(txs) == 0 {
		for i := range rewards {
			rewards[i] = new(uint256.Int)
		}
		return rewards, nil
	}

	sorted := make([]txGasAndReward, len(txs))
	for i, tx := range txs {
		receipt, err := e.chain.Receipt(tx.Hash())
		if err != nil {
			return nil, fmt.Errorf("gasprice: receipt of %x: %w", tx.Hash(), err)
		}
		sorted[i] = txGasAndReward{gasUsed: receipt.GasUsed, reward: priorityFee(tx, baseFee)}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].reward.Lt(sorted[j].reward) })

	var idx int
	cumulative := sorted[0].gasUsed
	for i, p := range percentiles {
		threshold := uint64(float64(block.GasUsed()) * p / 100)
		for cumulative < threshold && idx < len(sorted)-1 {
			idx++
			cumulative += sorted[idx].gasUsed
		}
		rewards[i] = new(uint256.Int).Set(sorted[idx].reward)
	}
	return rewards, nil
}
