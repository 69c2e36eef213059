// Package node wires the side-ledger execution core together: it opens the
// key-value store, the trie store and the block store, builds the EVM
// executor and the assembly engine and exposes them to the host.
package node

import (
	"errors"
	"fmt"
	"math/big"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/DeFiCh/ain-sub000/core"
	"github.com/DeFiCh/ain-sub000/core/gasprice"
	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/geth"
	"github.com/DeFiCh/ain-sub000/log"
	"github.com/DeFiCh/ain-sub000/params"
)

// Supported key-value engines.
const (
	DBMemory  = "memory"
	DBLevelDB = "leveldb"
	DBPebble  = "pebble"
)

// Config holds all configuration for a ledger node.
type Config struct {
	// DataDir is the root directory for all data storage.
	DataDir string

	// DBEngine selects the key-value engine: memory, leveldb or pebble.
	DBEngine string

	// DBCache is the database cache size in megabytes.
	DBCache int

	// DBHandles is the number of open files the database may use.
	DBHandles int

	// BlockCacheSize is the number of blocks and receipts kept in memory.
	BlockCacheSize int

	// LogLevel controls log verbosity (trace, debug, info, warn, error).
	LogLevel string

	// LogJSON switches the log output to one JSON object per line.
	LogJSON bool

	// Metrics enables metrics collection.
	Metrics bool

	Chain   ChainConfig
	GPO     gasprice.Config
	Genesis []GenesisEntry
}

// ChainConfig holds the chain-wide parameters.
type ChainConfig struct {
	ChainID         uint64
	Fork            string
	BlockGasLimit   uint64
	GasTargetFactor uint64
	FinalityCount   uint64
}

// GenesisEntry pre-funds one account at genesis.
type GenesisEntry struct {
	Address common.Address
	Balance *math.HexOrDecimal256
	Nonce   uint64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:        "evmledger-data",
		DBEngine:       DBPebble,
		DBCache:        512,
		DBHandles:      256,
		BlockCacheSize: 256,
		LogLevel:       "info",
		Chain: ChainConfig{
			ChainID:         1130,
			Fork:            geth.DefaultFork,
			BlockGasLimit:   params.DefaultBlockGasLimit,
			GasTargetFactor: params.DefaultGasTargetFactor,
			FinalityCount:   params.DefaultFinalityCount,
		},
		GPO: gasprice.DefaultConfig(),
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" && c.DBEngine != DBMemory {
		return errors.New("config: datadir must not be empty")
	}
	switch c.DBEngine {
	case DBMemory, DBLevelDB, DBPebble:
	default:
		return fmt.Errorf("config: unknown database engine %q", c.DBEngine)
	}
	if c.DBCache < 0 || c.DBHandles < 0 {
		return fmt.Errorf("config: invalid database cache %d or handles %d", c.DBCache, c.DBHandles)
	}
	if c.BlockCacheSize <= 0 {
		return fmt.Errorf("config: invalid block cache size: %d", c.BlockCacheSize)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Chain.ChainID == 0 {
		return errors.New("config: chain id must be greater than 0")
	}
	if !geth.ForkSupported(c.Chain.Fork) {
		return fmt.Errorf("config: unsupported fork %q", c.Chain.Fork)
	}
	if c.Chain.BlockGasLimit < params.TxGas {
		return fmt.Errorf("config: block gas limit %d below %d", c.Chain.BlockGasLimit, params.TxGas)
	}
	if c.Chain.GasTargetFactor == 0 || c.Chain.BlockGasLimit/c.Chain.GasTargetFactor == 0 {
		return fmt.Errorf("config: invalid gas target factor: %d", c.Chain.GasTargetFactor)
	}
	if c.GPO.Blocks <= 0 {
		return fmt.Errorf("config: invalid priority fee window: %d", c.GPO.Blocks)
	}
	if c.GPO.Percentile < 0 || c.GPO.Percentile > 100 {
		return fmt.Errorf("config: invalid priority fee percentile: %d", c.GPO.Percentile)
	}
	seen := make(map[common.Address]bool, len(c.Genesis))
	for _, g := range c.Genesis {
		if seen[g.Address] {
			return fmt.Errorf("config: duplicate genesis account %s", g.Address.Hex())
		}
		seen[g.Address] = true
	}
	return nil
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// Attributes returns the chain attributes the configuration describes.
func (c *Config) Attributes() *types.Attributes {
	return &types.Attributes{
		BlockGasLimit:   c.Chain.BlockGasLimit,
		GasTargetFactor: c.Chain.GasTargetFactor,
		FinalityCount:   c.Chain.FinalityCount,
	}
}

// EngineConfig returns the subset of the configuration the engine uses.
func (c *Config) EngineConfig() core.Config {
	alloc := make(core.GenesisAlloc, len(c.Genesis))
	for _, g := range c.Genesis {
		balance := new(big.Int)
		if g.Balance != nil {
			balance.Set((*big.Int)(g.Balance))
		}
		alloc[g.Address] = core.GenesisAccount{Balance: balance, Nonce: g.Nonce}
	}
	return core.Config{ChainID: c.Chain.ChainID, Genesis: alloc, GasPrice: c.GPO}
}
