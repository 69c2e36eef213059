package node

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/require"

	"github.com/DeFiCh/ain-sub000/core"
)

const oneEther = 1_000_000_000_000_000_000

func memoryConfig() *Config {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	cfg.DBEngine = DBMemory
	return &cfg
}

func TestOpenDatabase(t *testing.T) {
	for _, engine := range []string{DBMemory, DBLevelDB, DBPebble} {
		t.Run(engine, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.DBEngine = engine
			cfg.DBCache = 16
			cfg.DBHandles = 16

			db, err := OpenDatabase(&cfg, false)
			require.NoError(t, err)
			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			v, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), v)
			require.NoError(t, db.Close())
		})
	}
}

func TestNodeGenesis(t *testing.T) {
	cfg := memoryConfig()
	funded := common.HexToAddress("0xf00d")
	cfg.Genesis = []GenesisEntry{{
		Address: funded,
		Balance: (*math.HexOrDecimal256)(new(big.Int).SetUint64(oneEther)),
		Nonce:   2,
	}}
	n, err := New(cfg)
	require.NoError(t, err)
	defer n.Close()

	block, err := n.InitGenesis(1_700_000_000)
	require.NoError(t, err)
	require.Zero(t, block.NumberU64())

	again, err := n.InitGenesis(1_800_000_000)
	require.NoError(t, err)
	require.Equal(t, block.Hash(), again.Hash())

	err = n.Engine().Coordinator().WithLock(func(lock *core.StateLock) error {
		balance, err := n.Engine().BalanceAt(lock, funded, core.LatestBlockNumber)
		require.NoError(t, err)
		require.Equal(t, uint64(oneEther), balance.Uint64())
		nonce, err := n.Engine().NonceAt(lock, funded, core.LatestBlockNumber)
		require.NoError(t, err)
		require.Equal(t, uint64(2), nonce)
		return nil
	})
	require.NoError(t, err)

	attrs, err := n.Store().Attributes()
	require.NoError(t, err)
	require.Equal(t, *cfg.Attributes(), *attrs)
}

func TestNodeKeepsStoredAttributes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.DBEngine = DBLevelDB
	cfg.DBCache = 16
	cfg.DBHandles = 16

	n, err := New(&cfg)
	require.NoError(t, err)
	_, err = n.InitGenesis(1_700_000_000)
	require.NoError(t, err)
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	changed := cfg
	changed.Chain.BlockGasLimit = 2 * cfg.Chain.BlockGasLimit
	n, err = New(&changed)
	require.NoError(t, err)
	defer n.Close()

	attrs, err := n.Store().Attributes()
	require.NoError(t, err)
	require.Equal(t, cfg.Chain.BlockGasLimit, attrs.BlockGasLimit)

	head, err := n.Store().LatestBlock()
	require.NoError(t, err)
	require.Zero(t, head.NumberU64())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Chain.Fork = "Frontier"
	_, err := New(cfg)
	require.ErrorContains(t, err, "invalid config")
}
