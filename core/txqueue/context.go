package txqueue

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/types"
)

// Context is one build context. All methods are safe for concurrent use.
type Context struct {
	mu               sync.Mutex
	items            []*types.QueueItem
	totalGasUsed     uint64
	targetBlock      uint64
	initialStateRoot common.Hash
	pendingBlock     *types.FinalizedBlock
}

func newContext(targetBlock uint64, initialStateRoot common.Hash) *Context {
	return &Context{targetBlock: targetBlock, initialStateRoot: initialStateRoot}
}

func (c *Context) push(item *types.QueueItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	c.totalGasUsed += item.GasUsed
}

func (c *Context) removeAbove(hash common.Hash) []common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	cut := -1
	for i, item := range c.items {
		if item.TxHash == hash {
			cut = i
			break
		}
	}
	if cut < 0 {
		return nil
	}
	removed := make([]common.Hash, 0, len(c.items)-cut)
	for _, item := range c.items[cut:] {
		removed = append(removed, item.TxHash)
	}
	clear(c.items[cut:])
	c.items = c.items[:cut]

	c.totalGasUsed = 0
	for _, item := range c.items {
		c.totalGasUsed += item.GasUsed
	}
	return removed
}

func (c *Context) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items, c.totalGasUsed, c.pendingBlock = nil, 0, nil
}

// NextValidNonce returns one past the nonce of the last signed transaction
// addr has queued.
func (c *Context) NextValidNonce(addr common.Address) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.items) - 1; i >= 0; i-- {
		signed := types.SignedOf(c.items[i].Tx)
		if signed != nil && signed.Sender == addr {
			return signed.Nonce() + 1, true
		}
	}
	return 0, false
}

// QueuedSpend returns the most addr's queued transactions can take from its
// balance: gas limit times fee cap plus value for user transactions, value
// alone for bridge transactions, which pay no fees. The sum saturates at
// the uint256 maximum.
func (c *Context) QueuedSpend(addr common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := new(uint256.Int)
	for _, item := range c.items {
		signed := types.SignedOf(item.Tx)
		if signed == nil || signed.Sender != addr {
			continue
		}
		spend := signed.Value()
		if _, user := item.Tx.(*types.SignedTx); user {
			prepay, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(signed.Gas()), signed.GasFeeCap())
			if overflow {
				return total.SetAllOne()
			}
			if _, overflow = spend.AddOverflow(spend, prepay); overflow {
				return total.SetAllOne()
			}
		}
		if _, overflow := total.AddOverflow(total, spend); overflow {
			return total.SetAllOne()
		}
	}
	return total
}

// TotalGasUsed returns the sum of the gas of every queued item.
func (c *Context) TotalGasUsed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalGasUsed
}

// TotalFees returns the sum of the fees recorded for queued items.
func (c *Context) TotalFees() *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := new(uint256.Int)
	for _, item := range c.items {
		if item.GasFees != nil {
			total.Add(total, item.GasFees)
		}
	}
	return total
}

// TargetBlock returns the number of the block being built.
func (c *Context) TargetBlock() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetBlock
}

// InitialStateRoot returns the root execution starts from.
func (c *Context) InitialStateRoot() common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialStateRoot
}

// LatestStateRoot returns the root recorded after the last queued item, or
// the initial root when nothing has been executed yet.
func (c *Context) LatestStateRoot() common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.items) - 1; i >= 0; i-- {
		if root := c.items[i].StateRoot; root != (common.Hash{}) {
			return root
		}
	}
	return c.initialStateRoot
}

// Items returns copies of the queued items in queue order.
func (c *Context) Items() []*types.QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.QueueItem, len(c.items))
	for i, item := range c.items {
		out[i] = item.Copy()
	}
	return out
}

// Len returns the number of queued items.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// IsQueued reports whether an item with hash is queued.
func (c *Context) IsQueued(hash common.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if item.TxHash == hash {
			return true
		}
	}
	return false
}

// SetResults records the assembly results of each item, in queue order.
// Extra results are ignored.
func (c *Context) SetResults(results []*types.QueueItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < len(results) && i < len(c.items); i++ {
		r := results[i]
		item := c.items[i]
		item.GasUsed = r.GasUsed
		item.GasFees = r.GasFees
		item.StateRoot = r.StateRoot
		item.LogsBloom = r.LogsBloom
		item.Receipt = r.Receipt
	}
	c.totalGasUsed = 0
	for _, item := range c.items {
		c.totalGasUsed += item.GasUsed
	}
}

// SetPendingBlock stores the block assembled from this context.
func (c *Context) SetPendingBlock(block *types.FinalizedBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingBlock = block
}

// PendingBlock returns the assembled block, nil before assembly.
func (c *Context) PendingBlock() *types.FinalizedBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingBlock
}
