// Package core implements the block assembly pipeline of the side ledger:
// build contexts are filled with transactions, assembled into a block on top
// of the latest state and, once the host chain has fixed the ordering,
// committed to the block store.
package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/gasprice"
	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/core/txqueue"
	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/log"
)

// ChainStore is the persisted chain the engine reads from and commits to.
type ChainStore interface {
	BlockByNumber(number uint64) (*gethtypes.Block, error)
	BlockByHash(hash common.Hash) (*gethtypes.Block, error)
	LatestBlock() (*gethtypes.Block, error)
	Receipt(txHash common.Hash) (*types.Receipt, error)
	Code(addr common.Address, codeHash common.Hash) ([]byte, error)
	Logs(number uint64) ([]*gethtypes.Log, error)
	Attributes() (*types.Attributes, error)

	// CommitBlock persists receipts, logs, the block and the latest marker
	// atomically.
	CommitBlock(block *gethtypes.Block, receipts []*types.Receipt, logs []*gethtypes.Log) error
	// DisconnectBlock removes the latest block and moves the marker to its
	// parent.
	DisconnectBlock(block *gethtypes.Block) error
}

// BlockNotifier is told about every committed block.
type BlockNotifier interface {
	NotifyNewBlock(hash common.Hash, number uint64, txHashes []common.Hash) bool
}

// Config holds the engine settings.
type Config struct {
	ChainID  uint64
	Genesis  GenesisAlloc
	GasPrice gasprice.Config
}

// BlockNumber selects a block for historical queries; LatestBlockNumber
// selects the head.
type BlockNumber = gasprice.BlockNumber

const LatestBlockNumber = gasprice.LatestBlockNumber

// Engine ties the state backend, the fee engine, the build-context registry
// and the executor together.
type Engine struct {
	config      Config
	chainID     *big.Int
	store       ChainStore
	tries       *state.TrieStore
	executor    Executor
	notifier    BlockNotifier
	fees        *gasprice.FeeEngine
	queue       *txqueue.Registry
	coordinator *StateCoordinator
	log         *log.Logger
}

// New creates an engine. notifier may be nil.
func New(config Config, store ChainStore, tries *state.TrieStore, executor Executor, notifier BlockNotifier) *Engine {
	return &Engine{
		config:      config,
		chainID:     new(big.Int).SetUint64(config.ChainID),
		store:       store,
		tries:       tries,
		executor:    executor,
		notifier:    notifier,
		fees:        gasprice.New(store, config.GasPrice),
		queue:       txqueue.NewRegistry(),
		coordinator: NewStateCoordinator(),
		log:         log.Module("miner"),
	}
}

// Coordinator returns the state coordinator guarding the engine.
func (e *Engine) Coordinator() *StateCoordinator { return e.coordinator }

// Queue returns the build-context registry.
func (e *Engine) Queue() *txqueue.Registry { return e.queue }

// Fees returns the fee engine.
func (e *Engine) Fees() *gasprice.FeeEngine { return e.fees }

// ChainID returns the EVM chain id.
func (e *Engine) ChainID() *big.Int { return new(big.Int).Set(e.chainID) }

// latest returns the head block, nil on an empty chain.
func (e *Engine) latest() (*gethtypes.Block, error) {
	head, err := e.store.LatestBlock()
	if errors.Is(err, rawdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("core: latest block: %w", err)
	}
	return head, nil
}

// CreateContext opens a build context for the block after the current head.
func (e *Engine) CreateContext() (uint64, error) {
	head, err := e.latest()
	if err != nil {
		return 0, err
	}
	var (
		target uint64
		root   common.Hash
	)
	if head != nil {
		target, root = head.NumberU64()+1, head.Root()
	}
	return e.queue.Create(target, root)
}

// DiscardContext drops a build context and its pending block, releasing the
// pending block's state root from the trie store.
func (e *Engine) DiscardContext(id uint64) {
	ctx, err := e.queue.Get(id)
	if err != nil {
		return
	}
	pending := ctx.PendingBlock()
	e.queue.Discard(id)
	if pending == nil {
		return
	}
	if err := e.tries.RemoveTrie(pending.Block.Root()); err != nil {
		e.log.Warn("Failed to release discarded state", "id", id, "root", pending.Block.Root(), "err", err)
	}
}

// Push queues a system transaction identified by its native hash.
func (e *Engine) Push(id uint64, tx types.QueueTx, hash common.Hash, gasUsed uint64) error {
	return e.queue.Push(id, tx, hash, gasUsed)
}

// RemoveAbove drops hash and everything queued after it.
func (e *Engine) RemoveAbove(id uint64, hash common.Hash) ([]common.Hash, error) {
	return e.queue.RemoveAbove(id, hash)
}

// TotalGasUsed returns the gas reserved in context id.
func (e *Engine) TotalGasUsed(id uint64) (uint64, error) { return e.queue.TotalGasUsed(id) }

// TargetBlock returns the number of the block context id builds.
func (e *Engine) TargetBlock(id uint64) (uint64, error) { return e.queue.TargetBlock(id) }

// LatestStateRoot returns the state root reached by context id.
func (e *Engine) LatestStateRoot(id uint64) (common.Hash, error) { return e.queue.LatestStateRoot(id) }

// NextValidNonce returns the nonce the next transaction of addr must carry
// in context id: one past its last queued nonce, or its committed nonce.
func (e *Engine) NextValidNonce(lock *StateLock, id uint64, addr common.Address) (uint64, error) {
	if !e.coordinator.Holds(lock) {
		return 0, ErrStateLockNotHeld
	}
	nonce, ok, err := e.queue.NextValidNonce(id, addr)
	if err != nil || ok {
		return nonce, err
	}
	ctx, err := e.queue.Get(id)
	if err != nil {
		return 0, err
	}
	backend, err := state.OpenReadOnly(e.tries, ctx.InitialStateRoot(), types.Vicinity{})
	if err != nil {
		return 0, err
	}
	return backend.GetNonce(addr)
}

// ValidateResult describes a raw transaction that passed validation.
type ValidateResult struct {
	Signed  *types.SignedTx
	Prepay  *uint256.Int
	BaseFee *uint256.Int
}

// ValidateRawTx decodes a raw signed transaction and checks it against
// context id: chain id, nonce, gas limit, fee cap and the sender's ability
// to pay gasLimit*feeCap+value.
func (e *Engine) ValidateRawTx(lock *StateLock, id uint64, raw []byte) (*ValidateResult, error) {
	if !e.coordinator.Holds(lock) {
		return nil, ErrStateLockNotHeld
	}
	res, err := e.validateRawTx(lock, id, raw)
	if err != nil {
		rejectedTxsMeter.Mark(1)
	}
	return res, err
}

func (e *Engine) validateRawTx(lock *StateLock, id uint64, raw []byte) (*ValidateResult, error) {
	signed, err := types.DecodeSignedTx(raw, e.chainID)
	if err != nil {
		return nil, err
	}
	attrs, err := e.store.Attributes()
	if err != nil {
		return nil, fmt.Errorf("core: attributes: %w", err)
	}
	if signed.Gas() > attrs.BlockGasLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrGasLimitExceeded, signed.Gas(), attrs.BlockGasLimit)
	}

	ctx, err := e.queue.Get(id)
	if err != nil {
		return nil, err
	}
	var parentHash common.Hash
	if ctx.TargetBlock() > 0 {
		parent, err := e.store.BlockByNumber(ctx.TargetBlock() - 1)
		if err != nil {
			return nil, fmt.Errorf("core: parent of block %d: %w", ctx.TargetBlock(), err)
		}
		parentHash = parent.Hash()
	}
	baseFee, err := e.fees.CalculateBaseFee(parentHash, attrs.GasTargetFactor)
	if err != nil {
		return nil, err
	}
	if signed.GasFeeCap().Lt(baseFee) {
		return nil, fmt.Errorf("%w: %v < %v", ErrFeeCapTooLow, signed.GasFeeCap(), baseFee)
	}

	expected, err := e.NextValidNonce(lock, id, signed.Sender)
	if err != nil {
		return nil, err
	}
	if signed.Nonce() != expected {
		return nil, &NonceMismatchError{Hash: signed.Hash(), Sender: signed.Sender, Expected: expected, Got: signed.Nonce()}
	}

	prepay, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(signed.Gas()), signed.GasFeeCap())
	if overflow {
		return nil, fmt.Errorf("%w: prepay", gasprice.ErrFeeOverflow)
	}
	want, overflow := new(uint256.Int).AddOverflow(prepay, signed.Value())
	if overflow {
		return nil, fmt.Errorf("%w: prepay plus value", gasprice.ErrFeeOverflow)
	}
	backend, err := state.OpenReadOnly(e.tries, ctx.InitialStateRoot(), types.Vicinity{})
	if err != nil {
		return nil, err
	}
	have, err := backend.GetBalance(signed.Sender)
	if err != nil {
		return nil, err
	}
	// earlier transactions of the sender in this context draw on the same
	// balance
	total, overflow := new(uint256.Int).AddOverflow(ctx.QueuedSpend(signed.Sender), want)
	if overflow {
		return nil, fmt.Errorf("%w: queued spend", gasprice.ErrFeeOverflow)
	}
	if have.Lt(total) {
		return nil, &state.InsufficientBalanceError{Address: signed.Sender, Have: have, Want: total}
	}
	return &ValidateResult{Signed: signed, Prepay: prepay, BaseFee: baseFee}, nil
}

// PushRawTx validates a raw signed transaction and queues it in context id,
// reserving its gas limit.
func (e *Engine) PushRawTx(lock *StateLock, id uint64, raw []byte) (common.Hash, error) {
	res, err := e.ValidateRawTx(lock, id, raw)
	if err != nil {
		return common.Hash{}, err
	}
	hash := res.Signed.Hash()
	if err := e.queue.Push(id, res.Signed, hash, res.Signed.Gas()); err != nil {
		return common.Hash{}, err
	}
	e.log.Debug("Transaction queued", "id", id, "hash", hash, "sender", res.Signed.Sender, "nonce", res.Signed.Nonce())
	return hash, nil
}
