package core

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Commit persists the pending block of context id and makes it the latest
// block. Receipts, logs, the block and the latest marker go to disk in one
// batch, so a failure leaves the head unchanged and the context intact for
// a retry.
func (e *Engine) Commit(lock *StateLock, id uint64) error {
	if !e.coordinator.Holds(lock) {
		return ErrStateLockNotHeld
	}
	defer func(start time.Time) { commitTimer.UpdateSince(start) }(time.Now())

	ctx, err := e.queue.Get(id)
	if err != nil {
		return err
	}
	pending := ctx.PendingBlock()
	if pending == nil {
		return ErrNoPendingBlock
	}
	block := pending.Block

	head, err := e.latest()
	if err != nil {
		return err
	}
	if (head != nil && head.Hash() != block.ParentHash()) || (head == nil && block.NumberU64() != 0) {
		return fmt.Errorf("%w: block %d parent %x", ErrStaleContext, block.NumberU64(), block.ParentHash())
	}

	var logs []*gethtypes.Log
	for _, r := range pending.Receipts {
		logs = append(logs, r.Logs...)
	}
	if err := e.store.CommitBlock(block, pending.Receipts, logs); err != nil {
		return fmt.Errorf("core: persist block %d: %w", block.NumberU64(), err)
	}

	txHashes := make([]common.Hash, len(block.Transactions()))
	for i, tx := range block.Transactions() {
		txHashes[i] = tx.Hash()
	}
	if e.notifier != nil {
		e.notifier.NotifyNewBlock(block.Hash(), block.NumberU64(), txHashes)
	}
	e.fees.OnNewHead(block.NumberU64())
	e.queue.Remove(id)
	headGauge.Update(int64(block.NumberU64()))

	e.log.Info("Block committed", "number", block.NumberU64(), "hash", block.Hash(), "txs", len(txHashes))
	return nil
}

// DisconnectLatestBlock removes the head block, making its parent the latest
// block again, and returns the hash of the removed block. Contexts built on
// the removed block become stale.
func (e *Engine) DisconnectLatestBlock(lock *StateLock) (common.Hash, error) {
	if !e.coordinator.Holds(lock) {
		return common.Hash{}, ErrStateLockNotHeld
	}
	head, err := e.latest()
	if err != nil {
		return common.Hash{}, err
	}
	if head == nil {
		return common.Hash{}, fmt.Errorf("%w: chain is empty", ErrBlockNotFound)
	}
	if err := e.store.DisconnectBlock(head); err != nil {
		return common.Hash{}, fmt.Errorf("core: disconnect block %d: %w", head.NumberU64(), err)
	}
	e.fees.OnDisconnect(head.NumberU64())
	if head.NumberU64() > 0 {
		headGauge.Update(int64(head.NumberU64() - 1))
	}

	e.log.Info("Block disconnected", "number", head.NumberU64(), "hash", head.Hash())
	return head.Hash(), nil
}
