package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/gasprice"
	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/core/types"
)

// blockAt resolves number to a persisted block.
func (e *Engine) blockAt(number BlockNumber) (*gethtypes.Block, error) {
	var (
		block *gethtypes.Block
		err   error
	)
	switch {
	case number == LatestBlockNumber:
		block, err = e.store.LatestBlock()
	case number < 0:
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	default:
		block, err = e.store.BlockByNumber(uint64(number))
	}
	if errors.Is(err, rawdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}
	return block, err
}

// stateAt opens a read-only backend at the state of block number.
func (e *Engine) stateAt(lock *StateLock, number BlockNumber) (*state.Backend, *gethtypes.Block, error) {
	if !e.coordinator.Holds(lock) {
		return nil, nil, ErrStateLockNotHeld
	}
	block, err := e.blockAt(number)
	if err != nil {
		return nil, nil, err
	}
	vicinity := types.Vicinity{
		GasPrice:    new(uint256.Int),
		Beneficiary: block.Coinbase(),
		BlockNumber: block.NumberU64(),
		Timestamp:   block.Time(),
		GasLimit:    block.GasLimit(),
		BaseFee:     new(uint256.Int),
		Randomness:  block.MixDigest(),
		Difficulty:  new(uint256.Int),
		ChainID:     e.config.ChainID,
	}
	if block.BaseFee() != nil {
		vicinity.BaseFee.SetFromBig(block.BaseFee())
	}
	if block.Difficulty() != nil {
		vicinity.Difficulty.SetFromBig(block.Difficulty())
	}
	backend, err := state.OpenReadOnly(e.tries, block.Root(), vicinity)
	return backend, block, err
}

// BalanceAt returns the balance of addr at block number.
func (e *Engine) BalanceAt(lock *StateLock, addr common.Address, number BlockNumber) (*uint256.Int, error) {
	backend, _, err := e.stateAt(lock, number)
	if err != nil {
		return nil, err
	}
	return backend.GetBalance(addr)
}

// NonceAt returns the nonce of addr at block number.
func (e *Engine) NonceAt(lock *StateLock, addr common.Address, number BlockNumber) (uint64, error) {
	backend, _, err := e.stateAt(lock, number)
	if err != nil {
		return 0, err
	}
	return backend.GetNonce(addr)
}

// CodeAt returns the code of addr at block number.
func (e *Engine) CodeAt(lock *StateLock, addr common.Address, number BlockNumber) ([]byte, error) {
	backend, _, err := e.stateAt(lock, number)
	if err != nil {
		return nil, err
	}
	return backend.GetCode(addr)
}

// StorageAt returns one storage slot of addr at block number.
func (e *Engine) StorageAt(lock *StateLock, addr common.Address, key common.Hash, number BlockNumber) (common.Hash, error) {
	backend, _, err := e.stateAt(lock, number)
	if err != nil {
		return common.Hash{}, err
	}
	return backend.GetContractStorage(addr, key)
}

// Call runs a read-only message call against the state of block number.
func (e *Engine) Call(lock *StateLock, msg *CallMsg, number BlockNumber) (*CallResult, error) {
	backend, _, err := e.stateAt(lock, number)
	if err != nil {
		return nil, err
	}
	backend.UpdateVicinity(backend.Vicinity().WithOrigin(msg.From, new(uint256.Int)))
	return e.executor.Call(backend, msg)
}

// BaseFee returns the base fee of the block after the current head.
func (e *Engine) BaseFee() (*uint256.Int, error) {
	head, err := e.latest()
	if err != nil {
		return nil, err
	}
	attrs, err := e.store.Attributes()
	if err != nil {
		return nil, fmt.Errorf("core: attributes: %w", err)
	}
	var parent common.Hash
	if head != nil {
		parent = head.Hash()
	}
	return e.fees.CalculateBaseFee(parent, attrs.GasTargetFactor)
}

// SuggestPriorityFee returns the suggested priority fee per gas.
func (e *Engine) SuggestPriorityFee() (*uint256.Int, error) {
	return e.fees.SuggestPriorityFee()
}

// FeeHistory reports fee data over blockCount blocks ending at highest.
func (e *Engine) FeeHistory(blockCount uint64, highest BlockNumber, percentiles []float64) (*gasprice.FeeHistory, error) {
	if err := gasprice.ValidateFeeHistory(blockCount, percentiles); err != nil {
		return nil, err
	}
	attrs, err := e.store.Attributes()
	if err != nil {
		return nil, fmt.Errorf("core: attributes: %w", err)
	}
	return e.fees.FeeHistory(blockCount, highest, percentiles, attrs.GasTargetFactor)
}

// Receipt returns the receipt of a committed transaction.
func (e *Engine) Receipt(txHash common.Hash) (*types.Receipt, error) {
	return e.store.Receipt(txHash)
}

// BlockByNumber returns a committed block.
func (e *Engine) BlockByNumber(number BlockNumber) (*gethtypes.Block, error) {
	return e.blockAt(number)
}
