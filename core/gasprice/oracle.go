// Package gasprice implements the fee engine of the side ledger: EIP-1559
// base fee derivation, the priority-fee suggestion served to gas-price
// endpoints and fee-history reports over persisted blocks.
package gasprice

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/log"
	"github.com/DeFiCh/ain-sub000/params"
)

var (
	cacheHitMeter  = metrics.NewRegisteredMeter("gasprice/priorityfee/cache/hit", nil)
	cacheMissMeter = metrics.NewRegisteredMeter("gasprice/priorityfee/cache/miss", nil)
)

// ChainReader is the view of the block store the fee engine needs.
type ChainReader interface {
	BlockByNumber(number uint64) (*gethtypes.Block, error)
	BlockByHash(hash common.Hash) (*gethtypes.Block, error)
	LatestBlock() (*gethtypes.Block, error)
	Receipt(txHash common.Hash) (*types.Receipt, error)
}

// Config holds the priority-fee oracle settings.
type Config struct {
	// Blocks is the number of recent blocks sampled for the suggestion.
	Blocks int
	// Percentile is the percentile (0-100) of sampled priority fees to return.
	Percentile int
}

// DefaultConfig returns the oracle defaults.
func DefaultConfig() Config {
	return Config{
		Blocks:     params.DefaultPriorityFeeBlocks,
		Percentile: params.DefaultPriorityFeePercentile,
	}
}

// FeeEngine computes base fees, priority-fee suggestions and fee history.
type FeeEngine struct {
	config Config
	chain  ChainReader
	cache  *priorityFeeCache
	log    *log.Logger
}

// New creates a fee engine reading blocks from chain.
func New(chain ChainReader, config Config) *FeeEngine {
	if config.Blocks <= 0 {
		config.Blocks = params.DefaultPriorityFeeBlocks
	}
	return &FeeEngine{
		config: config,
		chain:  chain,
		cache:  new(priorityFeeCache),
		log:    log.Module("gasprice"),
	}
}

// priorityFeeCache remembers the last suggestion keyed by the head it was
// computed at.
type priorityFeeCache struct {
	mu    sync.Mutex
	valid bool
	head  uint64
	fee   *uint256.Int
}

func (c *priorityFeeCache) get(head uint64) (*uint256.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.head != head {
		return nil, false
	}
	return new(uint256.Int).Set(c.fee), true
}

func (c *priorityFeeCache) set(head uint64, fee *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid, c.head, c.fee = true, head, new(uint256.Int).Set(fee)
}

func (c *priorityFeeCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid, c.fee = false, nil
}

// OnNewHead drops the cached suggestion after a block became head.
func (e *FeeEngine) OnNewHead(number uint64) {
	e.cache.invalidate()
	e.log.Trace("Priority fee cache invalidated", "head", number)
}

// OnDisconnect drops the cached suggestion after a block was disconnected.
func (e *FeeEngine) OnDisconnect(number uint64) {
	e.cache.invalidate()
	e.log.Debug("Priority fee cache invalidated on disconnect", "number", number)
}

// SuggestPriorityFee returns the configured percentile of the effective
// priority fees paid over the last Blocks blocks, zero on an empty window.
func (e *FeeEngine) SuggestPriorityFee() (*uint256.Int, error) {
	head, err := e.chain.LatestBlock()
	if errors.Is(err, rawdb.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("gasprice: head block: %w", err)
	}
	if fee, ok := e.cache.get(head.NumberU64()); ok {
		cacheHitMeter.Mark(1)
		return fee, nil
	}
	cacheMissMeter.Mark(1)

	var tips []*uint256.Int
	for i := uint64(0); i < uint64(e.config.Blocks) && i <= head.NumberU64(); i++ {
		block := head
		if i > 0 {
			if block, err = e.chain.BlockByNumber(head.NumberU64() - i); err != nil {
				return nil, fmt.Errorf("gasprice: sample block %d: %w", head.NumberU64()-i, err)
			}
		}
		baseFee := headerBaseFee(block.Header())
		for _, tx := range block.Transactions() {
			tips = append(tips, priorityFee(tx, baseFee))
		}
	}

	fee := new(uint256.Int)
	if len(tips) > 0 {
		sort.Slice(tips, func(i, j int) bool { return tips[i].Lt(tips[j]) })
		pct := min(max(e.config.Percentile, 0), 100)
		fee.Set(tips[(len(tips)-1)*pct/100])
	}
	e.cache.set(head.NumberU64(), fee)
	return fee, nil
}

func priorityFee(tx *gethtypes.Transaction, baseFee *uint256.Int) *uint256.Int {
	return (&types.SignedTx{Tx: tx}).EffectivePriorityFee(baseFee)
}
