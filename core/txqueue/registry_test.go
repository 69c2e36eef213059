package txqueue

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/DeFiCh/ain-sub000/core/types"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func signedTx(sender common.Address, nonce uint64) *types.SignedTx {
	to := common.HexToAddress("0x01")
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{Nonce: nonce, To: &to, Gas: 21000, GasPrice: big.NewInt(1), Value: new(big.Int)})
	return &types.SignedTx{Tx: tx, Sender: sender}
}

func hash(b byte) common.Hash { return common.Hash{b} }

func TestCreateDistinctIDs(t *testing.T) {
	r := NewRegistry()
	seen := make(map[uint64]bool)
	for i := 0; i < 64; i++ {
		id, err := r.Create(1, common.Hash{})
		require.NoError(t, err)
		require.NotZero(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
	require.Equal(t, 64, r.Len())
}

func TestUnknownContext(t *testing.T) {
	r := NewRegistry()
	require.ErrorIs(t, r.Push(42, signedTx(alice, 0), hash(1), 21000), ErrNoSuchContext)
	_, err := r.RemoveAbove(42, hash(1))
	require.ErrorIs(t, err, ErrNoSuchContext)
	_, _, err = r.NextValidNonce(42, alice)
	require.ErrorIs(t, err, ErrNoSuchContext)
	_, err = r.TotalGasUsed(42)
	require.ErrorIs(t, err, ErrNoSuchContext)
	require.Nil(t, r.Remove(42))
	r.Discard(42)
}

func TestRemoveAbove(t *testing.T) {
	r := NewRegistry()
	id, err := r.Create(7, common.Hash{0xee})
	require.NoError(t, err)

	for i, gas := range []uint64{10, 20, 30, 40} {
		require.NoError(t, r.Push(id, signedTx(alice, uint64(i)), hash(byte('A'+i)), gas))
	}
	total, err := r.TotalGasUsed(id)
	require.NoError(t, err)
	require.Equal(t, uint64(100), total)

	removed, err := r.RemoveAbove(id, hash('B'))
	require.NoError(t, err)
	require.Equal(t, []common.Hash{hash('B'), hash('C'), hash('D')}, removed)

	items, err := r.Items(id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, hash('A'), items[0].TxHash)

	total, err = r.TotalGasUsed(id)
	require.NoError(t, err)
	require.Equal(t, uint64(10), total)

	// unknown hash leaves the queue alone
	removed, err = r.RemoveAbove(id, hash('Z'))
	require.NoError(t, err)
	require.Empty(t, removed)
	queued, err := r.IsQueued(id, hash('A'))
	require.NoError(t, err)
	require.True(t, queued)
}

func TestNextValidNonce(t *testing.T) {
	r := NewRegistry()
	id, err := r.Create(1, common.Hash{})
	require.NoError(t, err)

	_, ok, err := r.NextValidNonce(id, alice)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Push(id, signedTx(alice, 4), hash(1), 21000))
	require.NoError(t, r.Push(id, signedTx(bob, 9), hash(2), 21000))
	require.NoError(t, r.Push(id, signedTx(alice, 5), hash(3), 21000))
	require.NoError(t, r.Push(id, &types.DeployContractTx{Name: "T", Symbol: "T", TokenID: 1}, hash(4), 0))

	next, ok, err := r.NextValidNonce(id, alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(6), next)

	next, ok, err = r.NextValidNonce(id, bob)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), next)
}

func TestNextValidNonceFollowsLastQueued(t *testing.T) {
	r := NewRegistry()
	id, err := r.Create(1, common.Hash{})
	require.NoError(t, err)

	require.NoError(t, r.Push(id, signedTx(alice, 7), hash(1), 21000))
	require.NoError(t, r.Push(id, signedTx(bob, 1), hash(2), 21000))
	require.NoError(t, r.Push(id, signedTx(alice, 3), hash(3), 21000))

	next, ok, err := r.NextValidNonce(id, alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4), next)

	_, err = r.RemoveAbove(id, hash(3))
	require.NoError(t, err)
	next, _, err = r.NextValidNonce(id, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(8), next)
}

func TestQueuedSpend(t *testing.T) {
	r := NewRegistry()
	id, err := r.Create(1, common.Hash{})
	require.NoError(t, err)

	spend, err := r.QueuedSpend(id, alice)
	require.NoError(t, err)
	require.True(t, spend.IsZero())

	to := common.HexToAddress("0x01")
	user := &types.SignedTx{Sender: alice, Tx: gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce: 0, To: &to, Gas: 21000, GasPrice: big.NewInt(10), Value: big.NewInt(500),
	})}
	bridged := &types.SignedTx{Sender: alice, Tx: gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce: 1, To: &to, Gas: 50000, GasPrice: big.NewInt(10), Value: big.NewInt(40),
	})}
	require.NoError(t, r.Push(id, user, hash(1), 21000))
	require.NoError(t, r.Push(id, &types.TransferDomainTx{Signed: bridged, Direction: types.EvmOut}, hash(2), 50000))
	require.NoError(t, r.Push(id, signedTx(bob, 0), hash(3), 21000))

	// 21000*10 + 500 for the user transaction, value only for the bridge
	spend, err = r.QueuedSpend(id, alice)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(210_000+500+40), spend)

	spend, err = r.QueuedSpend(id, bob)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(21000), spend)

	_, err = r.QueuedSpend(42, alice)
	require.ErrorIs(t, err, ErrNoSuchContext)
}

func TestContextResults(t *testing.T) {
	r := NewRegistry()
	initial := common.Hash{0x01}
	id, err := r.Create(3, initial)
	require.NoError(t, err)

	target, err := r.TargetBlock(id)
	require.NoError(t, err)
	require.Equal(t, uint64(3), target)

	root, err := r.LatestStateRoot(id)
	require.NoError(t, err)
	require.Equal(t, initial, root)

	require.NoError(t, r.Push(id, signedTx(alice, 0), hash(1), 50000))
	require.NoError(t, r.Push(id, signedTx(alice, 1), hash(2), 50000))

	ctx, err := r.Get(id)
	require.NoError(t, err)
	ctx.SetResults([]*types.QueueItem{
		{GasUsed: 21000, GasFees: uint256.NewInt(210), StateRoot: common.Hash{0x02}},
		{GasUsed: 30000, GasFees: uint256.NewInt(300), StateRoot: common.Hash{0x03}},
	})

	total, err := r.TotalGasUsed(id)
	require.NoError(t, err)
	require.Equal(t, uint64(51000), total)
	fees, err := r.TotalFees(id)
	require.NoError(t, err)
	require.Equal(t, uint64(510), fees.Uint64())
	root, err = r.LatestStateRoot(id)
	require.NoError(t, err)
	require.Equal(t, common.Hash{0x03}, root)

	// copies do not alias the queue
	items := ctx.Items()
	items[0].GasFees.SetUint64(1)
	fees, err = r.TotalFees(id)
	require.NoError(t, err)
	require.Equal(t, uint64(510), fees.Uint64())
}

func TestPendingBlockAndDiscard(t *testing.T) {
	r := NewRegistry()
	id, err := r.Create(1, common.Hash{})
	require.NoError(t, err)

	pending, err := r.PendingBlock(id)
	require.NoError(t, err)
	require.Nil(t, pending)

	block := &types.FinalizedBlock{}
	require.NoError(t, r.SetPendingBlock(id, block))
	pending, err = r.PendingBlock(id)
	require.NoError(t, err)
	require.Same(t, block, pending)

	r.Discard(id)
	_, err = r.PendingBlock(id)
	require.ErrorIs(t, err, ErrNoSuchContext)
	require.Zero(t, r.Len())
}

func TestConcurrentContexts(t *testing.T) {
	r := NewRegistry()
	const workers = 8
	ids := make([]uint64, workers)
	for i := range ids {
		id, err := r.Create(1, common.Hash{})
		require.NoError(t, err)
		ids[i] = id
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(sender common.Address, id uint64) {
			defer wg.Done()
			for n := uint64(0); n < 100; n++ {
				_ = r.Push(id, signedTx(sender, n), common.BigToHash(new(big.Int).SetUint64(n+1)), 1)
			}
		}(common.BigToAddress(big.NewInt(int64(i+1))), id)
	}
	wg.Wait()

	for _, id := range ids {
		total, err := r.TotalGasUsed(id)
		require.NoError(t, err)
		require.Equal(t, uint64(100), total)
	}
}
