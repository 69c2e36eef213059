package rawdb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/log"
)

const DefaultCacheSize = 256

// Store is the block, receipt, log and code store of the ledger. Blocks
// enter and leave it whole: CommitBlock and DisconnectBlock each write one
// batch.
type Store struct {
	db       ethdb.Database
	blocks   *lru.Cache[uint64, *gethtypes.Block]
	receipts *lru.Cache[common.Hash, *types.Receipt]
	log      *log.Logger
}

// NewStore wraps db. cacheSize bounds both the block and receipt caches.
func NewStore(db ethdb.Database, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	blocks, err := lru.New[uint64, *gethtypes.Block](cacheSize)
	if err != nil {
		return nil, err
	}
	receipts, err := lru.New[common.Hash, *types.Receipt](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:       db,
		blocks:   blocks,
		receipts: receipts,
		log:      log.Module("rawdb"),
	}, nil
}

// Database exposes the underlying key-value store, shared with the trie
// database.
func (s *Store) Database() ethdb.Database { return s.db }

// BlockByNumber returns the persisted block at number.
func (s *Store) BlockByNumber(number uint64) (*gethtypes.Block, error) {
	if b, ok := s.blocks.Get(number); ok {
		return b, nil
	}
	b, err := ReadBlock(s.db, number)
	if err != nil {
		return nil, err
	}
	s.blocks.Add(number, b)
	return b, nil
}

// BlockByHash returns the persisted block with hash.
func (s *Store) BlockByHash(hash common.Hash) (*gethtypes.Block, error) {
	number, err := ReadBlockNumber(s.db, hash)
	if err != nil {
		return nil, err
	}
	return s.BlockByNumber(number)
}

// LatestBlock returns the block the latest marker points at, or ErrNotFound
// on an empty chain.
func (s *Store) LatestBlock() (*gethtypes.Block, error) {
	number, err := ReadLatestBlockNumber(s.db)
	if err != nil {
		return nil, err
	}
	return s.BlockByNumber(number)
}

// Receipt returns the receipt of a transaction.
func (s *Store) Receipt(txHash common.Hash) (*types.Receipt, error) {
	if r, ok := s.receipts.Get(txHash); ok {
		return r, nil
	}
	r, err := ReadReceipt(s.db, txHash)
	if err != nil {
		return nil, err
	}
	s.receipts.Add(txHash, r)
	return r, nil
}

// Transaction returns a transaction and where it was included.
func (s *Store) Transaction(txHash common.Hash) (*gethtypes.Transaction, *TxLookup, error) {
	return ReadTransaction(s.db, txHash)
}

// Logs returns every log of block number ordered by log index.
func (s *Store) Logs(number uint64) ([]*gethtypes.Log, error) {
	byAddr, err := ReadBlockLogs(s.db, number)
	if err != nil {
		return nil, err
	}
	var logs []*gethtypes.Log
	for _, l := range byAddr {
		logs = append(logs, l...)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Index < logs[j].Index })
	return logs, nil
}

// LogsByAddress returns the logs emitted by addr in block number.
func (s *Store) LogsByAddress(number uint64, addr common.Address) ([]*gethtypes.Log, error) {
	logs, err := ReadLogs(s.db, number, addr)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return logs, err
}

// Code returns the bytecode deployed at addr with codeHash.
func (s *Store) Code(addr common.Address, codeHash common.Hash) ([]byte, error) {
	return ReadCode(s.db, addr, codeHash)
}

// Attributes returns the persisted chain attributes, falling back to the
// defaults on a fresh database.
func (s *Store) Attributes() (*types.Attributes, error) {
	attrs, err := ReadAttributes(s.db)
	if errors.Is(err, ErrNotFound) {
		return types.DefaultAttributes(), nil
	}
	return attrs, err
}

// PutAttributes persists the chain attributes.
func (s *Store) PutAttributes(attrs *types.Attributes) error {
	return WriteAttributes(s.db, attrs)
}

// PutCode persists contract bytecode.
func (s *Store) PutCode(addr common.Address, codeHash common.Hash, code []byte) error {
	return WriteCode(s.db, addr, codeHash, code)
}

// CommitBlock writes the receipts, the logs, the block with its lookups and
// finally the latest marker in one batch. Nothing is visible, on disk or in
// the caches, unless the whole batch was written.
func (s *Store) CommitBlock(block *gethtypes.Block, receipts []*types.Receipt, logs []*gethtypes.Log) error {
	batch := s.db.NewBatch()
	if err := writeReceipts(batch, receipts); err != nil {
		return err
	}
	if err := writeBlockLogs(batch, block.NumberU64(), logs); err != nil {
		return err
	}
	if err := writeBlockAndLookups(batch, block); err != nil {
		return err
	}
	if err := WriteLatestBlockNumber(batch, block.NumberU64()); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("rawdb: commit block %d: %w", block.NumberU64(), err)
	}
	s.blocks.Add(block.NumberU64(), block)
	s.cacheReceipts(receipts)
	s.log.Debug("Latest block updated", "number", block.NumberU64(), "hash", block.Hash())
	return nil
}

// DisconnectBlock removes block, which must be the latest block, together
// with its receipts, lookups and logs, and moves the latest marker to its
// parent. Disconnecting block 0 leaves an empty chain. Contract code and
// trie nodes stay, they are content-addressed.
func (s *Store) DisconnectBlock(block *gethtypes.Block) error {
	number := block.NumberU64()
	latest, err := ReadLatestBlockNumber(s.db)
	if err != nil {
		return err
	}
	if latest != number {
		return fmt.Errorf("rawdb: disconnect block %d: latest is %d", number, latest)
	}

	batch := s.db.NewBatch()
	for _, tx := range block.Transactions() {
		if err := batch.Delete(txLookupKey(tx.Hash())); err != nil {
			return err
		}
		if err := batch.Delete(receiptKey(tx.Hash())); err != nil {
			return err
		}
	}
	it := s.db.NewIterator(logsPrefix(number), nil)
	for it.Next() {
		if err := batch.Delete(common.CopyBytes(it.Key())); err != nil {
			it.Release()
			return err
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("rawdb: logs of block %d: %w", number, err)
	}
	if err := DeleteBlock(batch, number, block.Hash()); err != nil {
		return err
	}
	if number > 0 {
		err = WriteLatestBlockNumber(batch, number-1)
	} else {
		err = DeleteLatestBlockNumber(batch)
	}
	if err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("rawdb: disconnect block %d: %w", number, err)
	}

	s.blocks.Remove(number)
	for _, tx := range block.Transactions() {
		s.receipts.Remove(tx.Hash())
	}
	s.log.Debug("Block disconnected", "number", number, "hash", block.Hash())
	return nil
}

func (s *Store) cacheReceipts(receipts []*types.Receipt) {
	for _, r := range receipts {
		s.receipts.Add(r.TxHash, r)
	}
}

func writeReceipts(w ethdb.KeyValueWriter, receipts []*types.Receipt) error {
	for _, r := range receipts {
		if err := WriteReceipt(w, r); err != nil {
			return err
		}
	}
	return nil
}

func writeBlockLogs(w ethdb.KeyValueWriter, number uint64, logs []*gethtypes.Log) error {
	byAddr := make(map[common.Address][]*gethtypes.Log)
	for _, l := range logs {
		byAddr[l.Address] = append(byAddr[l.Address], l)
	}
	for addr, list := range byAddr {
		if err := WriteLogs(w, number, addr, list); err != nil {
			return err
		}
	}
	return nil
}

func writeBlockAndLookups(w ethdb.KeyValueWriter, block *gethtypes.Block) error {
	if err := WriteBlock(w, block); err != nil {
		return err
	}
	for i, tx := range block.Transactions() {
		lookup := TxLookup{BlockNumber: block.NumberU64(), BlockHash: block.Hash(), Index: uint64(i)}
		if err := WriteTransaction(w, tx, lookup); err != nil {
			return err
		}
	}
	return nil
}
