package state

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/crypto"
)

// TrieStore is the versioned trie store shared by every backend handle: one
// hash-scheme node database holding the account trie, the per-contract
// storage tries and, next to it, the code store.
//
// Every commit is flushed to disk immediately, so any root a backend reports
// can be reopened by another handle.
type TrieStore struct {
	diskdb ethdb.Database
	triedb *triedb.Database
}

// NewTrieStore opens a trie store over db.
func NewTrieStore(db ethdb.Database) *TrieStore {
	return &TrieStore{
		diskdb: db,
		triedb: triedb.NewDatabase(db, triedb.HashDefaults),
	}
}

// TrieDB returns the node database, shared with the EVM executor.
func (s *TrieStore) TrieDB() *triedb.Database { return s.triedb }

// DiskDB returns the key-value store backing the node database.
func (s *TrieStore) DiskDB() ethdb.Database { return s.diskdb }

// OpenAccountTrie restores the account trie at root. The zero hash and the
// empty root both open an empty trie.
func (s *TrieStore) OpenAccountTrie(root common.Hash) (*trie.StateTrie, error) {
	t, err := trie.NewStateTrie(trie.StateTrieID(root), s.triedb)
	if err != nil {
		return nil, fmt.Errorf("%w: account trie %x: %v", ErrTrieRestoreFailed, root, err)
	}
	return t, nil
}

// CreateStorageTrie creates an empty storage trie for addr.
func (s *TrieStore) CreateStorageTrie(stateRoot common.Hash, addr common.Address) (*trie.StateTrie, error) {
	id := trie.StorageTrieID(stateRoot, crypto.Keccak256Hash(addr.Bytes()), gethtypes.EmptyRootHash)
	t, err := trie.NewStateTrie(id, s.triedb)
	if err != nil {
		return nil, fmt.Errorf("%w: storage trie of %s: %v", ErrTrieCreationFailed, addr.Hex(), err)
	}
	return t, nil
}

// RestoreStorageTrie restores the storage trie of addr at root.
func (s *TrieStore) RestoreStorageTrie(stateRoot common.Hash, addr common.Address, root common.Hash) (*trie.StateTrie, error) {
	if root == gethtypes.EmptyRootHash || root == (common.Hash{}) {
		return s.CreateStorageTrie(stateRoot, addr)
	}
	id := trie.StorageTrieID(stateRoot, crypto.Keccak256Hash(addr.Bytes()), root)
	t, err := trie.NewStateTrie(id, s.triedb)
	if err != nil {
		return nil, fmt.Errorf("%w: storage trie of %s at %x: %v", ErrTrieRestoreFailed, addr.Hex(), root, err)
	}
	return t, nil
}

// CommitTrie collects the dirty nodes of t into the node database and
// flushes them to disk. t must not be used afterwards.
func (s *TrieStore) CommitTrie(t *trie.StateTrie, parent common.Hash, block uint64) (common.Hash, error) {
	defer func(start time.Time) { trieCommitTimer.UpdateSince(start) }(time.Now())

	root, nodes := t.Commit(false)
	if nodes != nil {
		merged := trienode.NewWithNodeSet(nodes)
		if err := s.triedb.Update(root, parent, block, merged, triedb.NewStateSet()); err != nil {
			return common.Hash{}, fmt.Errorf("%w: update %x: %v", ErrTrieError, root, err)
		}
	}
	if err := s.triedb.Commit(root, false); err != nil {
		return common.Hash{}, fmt.Errorf("%w: commit %x: %v", ErrTrieError, root, err)
	}
	return root, nil
}

// RemoveTrie drops a root from the node cache. Roots already on disk are
// unaffected.
func (s *TrieStore) RemoveTrie(root common.Hash) error {
	if err := s.triedb.Dereference(root); err != nil {
		return fmt.Errorf("%w: dereference %x: %v", ErrTrieError, root, err)
	}
	return nil
}

// WriteCode persists bytecode for addr and returns its hash.
func (s *TrieStore) WriteCode(addr common.Address, code []byte) (common.Hash, error) {
	hash := crypto.Keccak256Hash(code)
	if err := rawdb.WriteCode(s.diskdb, addr, hash, code); err != nil {
		return common.Hash{}, fmt.Errorf("%w: write code of %s: %v", ErrTrieError, addr.Hex(), err)
	}
	codeWriteMeter.Mark(1)
	return hash, nil
}

// ReadCode returns the bytecode with hash, nil for the empty code hash.
func (s *TrieStore) ReadCode(hash common.Hash) ([]byte, error) {
	if hash == gethtypes.EmptyCodeHash || hash == (common.Hash{}) {
		return nil, nil
	}
	code, err := rawdb.ReadCodeByHash(s.diskdb, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: code %x: %v", ErrTrieError, hash, err)
	}
	return code, nil
}
