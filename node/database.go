package node

import (
	"fmt"

	gethrawdb "github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/pebble"
)

// dbNamespace prefixes the database metrics.
const dbNamespace = "evmledger/db/chaindata/"

// OpenDatabase opens the key-value store selected by cfg.DBEngine under
// <datadir>/chaindata.
func OpenDatabase(cfg *Config, readonly bool) (ethdb.Database, error) {
	if cfg.DBEngine == DBMemory {
		return gethrawdb.NewMemoryDatabase(), nil
	}
	file := cfg.ResolvePath("chaindata")
	var (
		kv  ethdb.KeyValueStore
		err error
	)
	switch cfg.DBEngine {
	case DBLevelDB:
		kv, err = leveldb.New(file, cfg.DBCache, cfg.DBHandles, dbNamespace, readonly)
	case DBPebble:
		kv, err = pebble.New(file, cfg.DBCache, cfg.DBHandles, dbNamespace, readonly)
	default:
		return nil, fmt.Errorf("node: unknown database engine %q", cfg.DBEngine)
	}
	if err != nil {
		return nil, fmt.Errorf("node: open %s database at %s: %w", cfg.DBEngine, file, err)
	}
	return gethrawdb.NewDatabase(kv), nil
}
