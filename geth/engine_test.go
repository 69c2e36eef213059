package geth

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethrawdb "github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/DeFiCh/ain-sub000/core"
	"github.com/DeFiCh/ain-sub000/core/contracts"
	"github.com/DeFiCh/ain-sub000/core/gasprice"
	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/params"
)

// TestEngineOnEVM drives the assembly pipeline with the real EVM: genesis,
// a bridged deposit through the transfer-domain contract and a user
// transfer paying EIP-1559 fees.
func TestEngineOnEVM(t *testing.T) {
	db := gethrawdb.NewMemoryDatabase()
	store, err := rawdb.NewStore(db, 16)
	require.NoError(t, err)
	tries := state.NewTrieStore(db)
	seed := newTestBackend(t)
	alice := newAccount(t, seed, nil)
	bridge := newAccount(t, seed, nil)

	config, err := ChainConfig(testChainID, DefaultFork)
	require.NoError(t, err)
	engine := core.New(core.Config{
		ChainID:  testChainID,
		Genesis:  core.GenesisAlloc{alice.addr: {Balance: ether}},
		GasPrice: gasprice.DefaultConfig(),
	}, store, tries, NewExecutor(config, store), nil)

	miner := common.HexToAddress("0x3117")
	mine := func(native uint64, push func(lock *core.StateLock, id uint64)) *core.AssembleResult {
		lock := engine.Coordinator().Acquire()
		defer lock.Release()
		id, err := engine.CreateContext()
		require.NoError(t, err)
		if push != nil {
			push(lock, id)
		}
		res, err := engine.Assemble(lock, id, 0, miner, 1_700_000_000+native, native)
		require.NoError(t, err)
		require.NoError(t, engine.Commit(lock, id))
		return res
	}

	mine(10, nil)

	amount := uint256.NewInt(7_000_000)
	call := &contracts.TransferDomainCall{From: bridge.addr, To: bob, Amount: amount}
	deposit := bridge.sign(t, 0, &params.TransferDomainAddress, nil, call.Encode())
	res := mine(11, func(_ *core.StateLock, id uint64) {
		tx := &types.TransferDomainTx{Signed: deposit, Direction: types.EvmIn}
		require.NoError(t, engine.Push(id, tx, common.HexToHash("0x0a"), deposit.Gas()))
	})
	require.Empty(t, res.FailedTxs)
	require.True(t, res.BurntFee.IsZero())
	require.NotZero(t, res.GasUsed)

	transfer := alice.sign(t, 0, &bob, big.NewInt(1000), nil)
	raw, err := transfer.Tx.MarshalBinary()
	require.NoError(t, err)
	res = mine(12, func(lock *core.StateLock, id uint64) {
		_, err := engine.PushRawTx(lock, id, raw)
		require.NoError(t, err)
	})
	require.Empty(t, res.FailedTxs)
	require.Equal(t, params.TxGas, res.GasUsed)
	require.Equal(t, new(uint256.Int).Mul(uint256.NewInt(params.TxGas), uint256.NewInt(params.GWei)), res.PriorityFee)

	lock := engine.Coordinator().Acquire()
	defer lock.Release()
	balance, err := engine.BalanceAt(lock, bob, core.LatestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).AddUint64(amount, 1000), balance)
	tip, err := engine.BalanceAt(lock, miner, core.LatestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, res.PriorityFee, tip)

	receipt, err := engine.Receipt(transfer.Hash())
	require.NoError(t, err)
	require.Equal(t, gethtypes.ReceiptStatusSuccessful, receipt.Status)
	require.Equal(t, uint64(2), receipt.BlockNumber.Uint64())

	height, err := engine.StorageAt(lock, params.IntrinsicsAddress, contracts.NativeHeightSlot, core.LatestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, uint64(12), new(uint256.Int).SetBytes32(height[:]).Uint64())

	out, err := engine.Call(lock, &core.CallMsg{
		From: bob,
		To:   &params.IntrinsicsAddress,
		Data: contracts.EVMHeightSlot.Bytes(),
	}, core.LatestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, uint64(2), new(uint256.Int).SetBytes(out.Data).Uint64())
}
