package node

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/DeFiCh/ain-sub000/core"
	"github.com/DeFiCh/ain-sub000/core/filters"
	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/geth"
	"github.com/DeFiCh/ain-sub000/log"
)

// Node owns the databases and the components built on top of them.
type Node struct {
	config *Config
	db     ethdb.Database
	store  *rawdb.Store
	tries  *state.TrieStore
	hub    *filters.Hub
	engine *core.Engine
	log    *log.Logger

	mu     sync.Mutex
	closed bool
}

// SetupLogging installs the default logger described by cfg and enables
// metrics collection when requested.
func SetupLogging(cfg *Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.LogJSON {
		log.SetDefault(log.NewJSON(os.Stderr, level))
	} else {
		log.SetDefault(log.NewTerminal(os.Stderr, level, false))
	}
	if cfg.Metrics {
		metrics.Enable()
	}
	return nil
}

// New opens the databases and wires the engine. A nil config selects the
// defaults.
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	chainConfig, err := geth.ChainConfig(config.Chain.ChainID, config.Chain.Fork)
	if err != nil {
		return nil, err
	}

	db, err := OpenDatabase(config, false)
	if err != nil {
		return nil, err
	}
	store, err := rawdb.NewStore(db, config.BlockCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	n := &Node{
		config: config,
		db:     db,
		store:  store,
		tries:  state.NewTrieStore(db),
		hub:    filters.NewHub(),
		log:    log.Module("node"),
	}
	if err := n.initAttributes(); err != nil {
		db.Close()
		return nil, err
	}
	executor := geth.NewExecutor(chainConfig, store)
	n.engine = core.New(config.EngineConfig(), store, n.tries, executor, n.hub)

	fields := []any{"chainid", config.Chain.ChainID, "fork", config.Chain.Fork, "db", config.DBEngine}
	if head, err := store.LatestBlock(); err == nil {
		fields = append(fields, "head", head.NumberU64(), "hash", head.Hash())
	}
	n.log.Info("Ledger initialised", fields...)
	return n, nil
}

// initAttributes persists the configured chain attributes on a fresh
// database. Attributes already on disk win over the configuration.
func (n *Node) initAttributes() error {
	want := n.config.Attributes()
	have, err := rawdb.ReadAttributes(n.db)
	if errors.Is(err, rawdb.ErrNotFound) {
		return n.store.PutAttributes(want)
	}
	if err != nil {
		return fmt.Errorf("node: read attributes: %w", err)
	}
	if *have != *want {
		n.log.Warn("Configured chain attributes differ from stored ones, keeping stored",
			"gaslimit", have.BlockGasLimit, "factor", have.GasTargetFactor, "finality", have.FinalityCount)
	}
	return nil
}

// InitGenesis assembles and commits block 0 from the configured allocation.
// On an initialised database it returns the existing genesis block.
func (n *Node) InitGenesis(timestamp uint64) (*gethtypes.Block, error) {
	if block, err := n.store.BlockByNumber(0); err == nil {
		return block, nil
	} else if !errors.Is(err, rawdb.ErrNotFound) {
		return nil, err
	}
	err := n.engine.Coordinator().WithLock(func(lock *core.StateLock) error {
		id, err := n.engine.CreateContext()
		if err != nil {
			return err
		}
		defer n.engine.DiscardContext(id)
		if _, err := n.engine.Assemble(lock, id, 0, common.Address{}, timestamp, 0); err != nil {
			return err
		}
		return n.engine.Commit(lock, id)
	})
	if err != nil {
		return nil, fmt.Errorf("node: genesis: %w", err)
	}
	block, err := n.store.BlockByNumber(0)
	if err != nil {
		return nil, err
	}
	n.log.Info("Wrote genesis block", "hash", block.Hash(), "root", block.Root(), "accounts", len(n.config.Genesis))
	return block, nil
}

// Config returns the node configuration.
func (n *Node) Config() *Config { return n.config }

// Engine returns the assembly engine.
func (n *Node) Engine() *core.Engine { return n.engine }

// Store returns the block store.
func (n *Node) Store() *rawdb.Store { return n.store }

// Hub returns the new-block notification hub.
func (n *Node) Hub() *filters.Hub { return n.hub }

// Close shuts the hub and the database down. It is safe to call twice.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	n.hub.Close()
	if err := n.db.Close(); err != nil {
		return fmt.Errorf("node: close database: %w", err)
	}
	n.log.Info("Ledger closed")
	return nil
}
