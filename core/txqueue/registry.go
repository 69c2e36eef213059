// Package txqueue holds the build contexts of the block assembly pipeline.
// A build context collects the transactions selected for one target block
// until the block is assembled and either committed or discarded.
//
// The registry lock guards only the id to context map; every context carries
// its own lock, so work on distinct contexts never contends.
package txqueue

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/log"
)

var ErrNoSuchContext = errors.New("txqueue: no such build context")

var (
	contextsGauge  = metrics.NewRegisteredGauge("txqueue/contexts", nil)
	pushedMeter    = metrics.NewRegisteredMeter("txqueue/pushed", nil)
	truncatedMeter = metrics.NewRegisteredMeter("txqueue/truncated", nil)
)

const maxCreateTrials = 16

// Registry maps context ids to build contexts.
type Registry struct {
	mu       sync.RWMutex
	contexts map[uint64]*Context
	log      *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contexts: make(map[uint64]*Context),
		log:      log.Module("txqueue"),
	}
}

func randomID() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("txqueue: read random id: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Create registers a fresh context for targetBlock whose execution starts
// from initialStateRoot, and returns its id. Ids are random and never zero.
func (r *Registry) Create(targetBlock uint64, initialStateRoot common.Hash) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxCreateTrials; i++ {
		id, err := randomID()
		if err != nil {
			return 0, err
		}
		if _, taken := r.contexts[id]; id == 0 || taken {
			continue
		}
		r.contexts[id] = newContext(targetBlock, initialStateRoot)
		contextsGauge.Update(int64(len(r.contexts)))
		r.log.Debug("Build context created", "id", id, "target", targetBlock, "root", initialStateRoot)
		return id, nil
	}
	return 0, errors.New("txqueue: could not allocate a context id")
}

// Get returns the context registered under id.
func (r *Registry) Get(id uint64) (*Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchContext, id)
	}
	return ctx, nil
}

// Remove unregisters id and returns its context, nil if it was unknown.
func (r *Registry) Remove(id uint64) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, ok := r.contexts[id]
	if !ok {
		return nil
	}
	delete(r.contexts, id)
	contextsGauge.Update(int64(len(r.contexts)))
	r.log.Debug("Build context removed", "id", id)
	return ctx
}

// Discard drops a context and everything queued in it.
func (r *Registry) Discard(id uint64) {
	if ctx := r.Remove(id); ctx != nil {
		ctx.clear()
	}
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}

// Push queues tx with the gas it reserves.
func (r *Registry) Push(id uint64, tx types.QueueTx, hash common.Hash, gasUsed uint64) error {
	return r.PushItem(id, &types.QueueItem{Tx: tx, TxHash: hash, GasUsed: gasUsed})
}

// PushItem queues a prepared item.
func (r *Registry) PushItem(id uint64, item *types.QueueItem) error {
	ctx, err := r.Get(id)
	if err != nil {
		return err
	}
	ctx.push(item)
	pushedMeter.Mark(1)
	return nil
}

// RemoveAbove drops the first item with hash and everything queued after
// it, returning the hashes removed in queue order.
func (r *Registry) RemoveAbove(id uint64, hash common.Hash) ([]common.Hash, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	removed := ctx.removeAbove(hash)
	if len(removed) > 0 {
		truncatedMeter.Mark(int64(len(removed)))
		r.log.Debug("Build context truncated", "id", id, "from", hash, "removed", len(removed))
	}
	return removed, nil
}

// NextValidNonce returns one past the highest nonce addr has queued in the
// context. The boolean is false when addr has nothing queued.
func (r *Registry) NextValidNonce(id uint64, addr common.Address) (uint64, bool, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return 0, false, err
	}
	nonce, ok := ctx.NextValidNonce(addr)
	return nonce, ok, nil
}

// QueuedSpend returns the balance addr's queued transactions in context id
// may consume.
func (r *Registry) QueuedSpend(id uint64, addr common.Address) (*uint256.Int, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return ctx.QueuedSpend(addr), nil
}

// TotalGasUsed returns the gas reserved by the items of context id.
func (r *Registry) TotalGasUsed(id uint64) (uint64, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return ctx.TotalGasUsed(), nil
}

// TotalFees returns the fees recorded for the items of context id.
func (r *Registry) TotalFees(id uint64) (*uint256.Int, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return ctx.TotalFees(), nil
}

// TargetBlock returns the block number context id builds.
func (r *Registry) TargetBlock(id uint64) (uint64, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return ctx.TargetBlock(), nil
}

// LatestStateRoot returns the state root after the last executed item of
// context id, or its initial root.
func (r *Registry) LatestStateRoot(id uint64) (common.Hash, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return common.Hash{}, err
	}
	return ctx.LatestStateRoot(), nil
}

// IsQueued reports whether hash is queued in context id.
func (r *Registry) IsQueued(id uint64, hash common.Hash) (bool, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return ctx.IsQueued(hash), nil
}

// Items returns copies of the items queued in context id.
func (r *Registry) Items(id uint64) ([]*types.QueueItem, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return ctx.Items(), nil
}

// SetPendingBlock stores the block assembled from context id.
func (r *Registry) SetPendingBlock(id uint64, block *types.FinalizedBlock) error {
	ctx, err := r.Get(id)
	if err != nil {
		return err
	}
	ctx.SetPendingBlock(block)
	return nil
}

// PendingBlock returns the block assembled from context id, nil before
// assembly.
func (r *Registry) PendingBlock(id uint64) (*types.FinalizedBlock, error) {
	ctx, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return ctx.PendingBlock(), nil
}
