// Package state implements the account trie backend of the side ledger: a
// handle over one version of the account trie, the per-contract storage
// tries and the code store, with apply/commit at state-root granularity.
//
// A Backend has no internal locking. Handles opened at different roots may
// be used concurrently; handles whose commits could conflict must be
// serialized by the caller.
package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/log"
)

// Account is the record stored in the account trie. Using go-ethereum's
// layout keeps the trie readable by the EVM executor.
type Account = gethtypes.StateAccount

// Basic carries the nonce and balance half of an account update.
type Basic struct {
	Nonce   uint64
	Balance *uint256.Int
}

// StorageDiff is one slot write. A zero value deletes the slot.
type StorageDiff struct {
	Key   common.Hash
	Value common.Hash
}

// IsEmpty reports whether acc has zero nonce, zero balance and no code.
func IsEmpty(acc *Account) bool {
	if acc == nil {
		return true
	}
	noCode := acc.CodeHash == nil || common.BytesToHash(acc.CodeHash) == gethtypes.EmptyCodeHash ||
		common.BytesToHash(acc.CodeHash) == (common.Hash{})
	return acc.Nonce == 0 && (acc.Balance == nil || acc.Balance.IsZero()) && noCode
}

// Backend is a handle over one version of the state.
type Backend struct {
	store    *TrieStore
	trie     *trie.StateTrie
	root     common.Hash
	vicinity types.Vicinity
	readOnly bool
	log      *log.Logger
}

// Open opens a mutable handle at root. It fails with ErrTrieRestoreFailed if
// root is not in the store.
func Open(store *TrieStore, root common.Hash, vicinity types.Vicinity) (*Backend, error) {
	t, err := store.OpenAccountTrie(root)
	if err != nil {
		return nil, err
	}
	return &Backend{
		store:    store,
		trie:     t,
		root:     root,
		vicinity: vicinity,
		log:      log.Module("state"),
	}, nil
}

// OpenReadOnly opens a handle for point-in-time queries.
func OpenReadOnly(store *TrieStore, root common.Hash, vicinity types.Vicinity) (*Backend, error) {
	b, err := Open(store, root, vicinity)
	if err != nil {
		return nil, err
	}
	b.readOnly = true
	return b, nil
}

// Store returns the trie store the handle was opened on.
func (b *Backend) Store() *TrieStore { return b.store }

// Root returns the root of the last commit.
func (b *Backend) Root() common.Hash { return b.root }

// Vicinity returns the block context of the handle.
func (b *Backend) Vicinity() types.Vicinity { return b.vicinity }

// UpdateVicinity replaces the block context.
func (b *Backend) UpdateVicinity(v types.Vicinity) { b.vicinity = v }

// Reopen repositions the handle on root, typically one produced by the EVM
// executor committing into the same node database.
func (b *Backend) Reopen(root common.Hash) error {
	t, err := b.store.OpenAccountTrie(root)
	if err != nil {
		return err
	}
	b.trie, b.root = t, root
	return nil
}

// GetAccount returns the account at addr, or nil if absent.
func (b *Backend) GetAccount(addr common.Address) (*Account, error) {
	accountReadMeter.Mark(1)
	acc, err := b.trie.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: read account %s: %v", ErrTrieError, addr.Hex(), err)
	}
	return acc, nil
}

// GetBalance returns the balance of addr, zero for an absent account.
func (b *Backend) GetBalance(addr common.Address) (*uint256.Int, error) {
	acc, err := b.GetAccount(addr)
	if err != nil || acc == nil {
		return new(uint256.Int), err
	}
	return new(uint256.Int).Set(acc.Balance), nil
}

// GetNonce returns the nonce of addr, zero for an absent account.
func (b *Backend) GetNonce(addr common.Address) (uint64, error) {
	acc, err := b.GetAccount(addr)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// GetCodeHash returns the code hash of addr, the empty code hash for an
// absent account.
func (b *Backend) GetCodeHash(addr common.Address) (common.Hash, error) {
	acc, err := b.GetAccount(addr)
	if err != nil || acc == nil {
		return gethtypes.EmptyCodeHash, err
	}
	return common.BytesToHash(acc.CodeHash), nil
}

// GetCode returns the bytecode deployed at addr.
func (b *Backend) GetCode(addr common.Address) ([]byte, error) {
	hash, err := b.GetCodeHash(addr)
	if err != nil {
		return nil, err
	}
	return b.store.ReadCode(hash)
}

// GetContractStorage reads one storage slot of addr. Absent accounts and
// slots read as zero.
func (b *Backend) GetContractStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	acc, err := b.GetAccount(addr)
	if err != nil || acc == nil {
		return common.Hash{}, err
	}
	st, err := b.store.RestoreStorageTrie(b.root, addr, acc.Root)
	if err != nil {
		return common.Hash{}, err
	}
	val, err := st.GetStorage(addr, key.Bytes())
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: read slot %x of %s: %v", ErrTrieError, key, addr.Hex(), err)
	}
	return common.BytesToHash(val), nil
}

// Apply writes one account. Storage starts from a fresh trie when reset is
// set or the account is empty, otherwise from the account's storage root;
// diffs are inserted and the storage trie committed. Code, when non-nil,
// replaces the code hash. Nonce and balance come from basic when set. The
// account trie is committed before returning the new account.
func (b *Backend) Apply(addr common.Address, basic *Basic, code []byte, diffs []StorageDiff, reset bool) (*Account, error) {
	if b.readOnly {
		return nil, ErrReadOnly
	}
	prev, err := b.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	acc := gethtypes.NewEmptyStateAccount()
	if prev != nil {
		acc.Nonce = prev.Nonce
		acc.Balance = new(uint256.Int).Set(prev.Balance)
		acc.Root = prev.Root
		acc.CodeHash = common.CopyBytes(prev.CodeHash)
	}

	if reset || IsEmpty(prev) {
		acc.Root = gethtypes.EmptyRootHash
	}
	if len(diffs) > 0 {
		if acc.Root, err = b.applyStorage(addr, acc.Root, diffs); err != nil {
			return nil, err
		}
	}
	if code != nil {
		hash, err := b.store.WriteCode(addr, code)
		if err != nil {
			return nil, err
		}
		acc.CodeHash = hash.Bytes()
	}
	if basic != nil {
		acc.Nonce = basic.Nonce
		acc.Balance = new(uint256.Int)
		if basic.Balance != nil {
			acc.Balance.Set(basic.Balance)
		}
	}

	if IsEmpty(acc) && acc.Root == gethtypes.EmptyRootHash {
		if err := b.trie.DeleteAccount(addr); err != nil {
			return nil, fmt.Errorf("%w: delete account %s: %v", ErrTrieError, addr.Hex(), err)
		}
		accountDeleteMeter.Mark(1)
	} else {
		if err := b.trie.UpdateAccount(addr, acc, len(code)); err != nil {
			return nil, fmt.Errorf("%w: update account %s: %v", ErrTrieError, addr.Hex(), err)
		}
		accountUpdateMeter.Mark(1)
	}
	if _, err := b.Commit(); err != nil {
		return nil, err
	}
	return acc, nil
}

func (b *Backend) applyStorage(addr common.Address, root common.Hash, diffs []StorageDiff) (common.Hash, error) {
	st, err := b.store.RestoreStorageTrie(b.root, addr, root)
	if err != nil {
		return common.Hash{}, err
	}
	for _, d := range diffs {
		if d.Value == (common.Hash{}) {
			err = st.DeleteStorage(addr, d.Key.Bytes())
		} else {
			err = st.UpdateStorage(addr, d.Key.Bytes(), common.TrimLeftZeroes(d.Value.Bytes()))
		}
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: write slot %x of %s: %v", ErrTrieError, d.Key, addr.Hex(), err)
		}
		storageUpdateMeter.Mark(1)
	}
	return b.store.CommitTrie(st, b.root, b.vicinity.BlockNumber)
}

// Commit flushes the account trie and returns the new root. Committing an
// unchanged trie returns the current root.
func (b *Backend) Commit() (common.Hash, error) {
	if b.readOnly {
		return b.root, nil
	}
	root, err := b.store.CommitTrie(b.trie, b.root, b.vicinity.BlockNumber)
	if err != nil {
		return common.Hash{}, err
	}
	if err := b.Reopen(root); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}

// AddBalance credits amount to addr.
func (b *Backend) AddBalance(addr common.Address, amount *uint256.Int) (*Account, error) {
	acc, err := b.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	basic := &Basic{Balance: new(uint256.Int)}
	if acc != nil {
		basic.Nonce = acc.Nonce
		basic.Balance.Set(acc.Balance)
	}
	if _, overflow := basic.Balance.AddOverflow(basic.Balance, amount); overflow {
		return nil, fmt.Errorf("state: balance overflow for %s", addr.Hex())
	}
	return b.Apply(addr, basic, nil, nil, false)
}

// SubBalance debits amount from addr. It fails with
// *InsufficientBalanceError, leaving state untouched, when the balance is
// too low.
func (b *Backend) SubBalance(addr common.Address, amount *uint256.Int) (*Account, error) {
	acc, err := b.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	have := new(uint256.Int)
	var nonce uint64
	if acc != nil {
		have.Set(acc.Balance)
		nonce = acc.Nonce
	}
	if have.Lt(amount) {
		return nil, &InsufficientBalanceError{Address: addr, Have: have, Want: new(uint256.Int).Set(amount)}
	}
	return b.Apply(addr, &Basic{Nonce: nonce, Balance: new(uint256.Int).Sub(have, amount)}, nil, nil, false)
}

// DeductPrepay debits the up-front gas payment of a transaction.
func (b *Backend) DeductPrepay(addr common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	_, err := b.SubBalance(addr, amount)
	return err
}

// RefundUnused returns the unspent part of a prepay.
func (b *Backend) RefundUnused(addr common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	_, err := b.AddBalance(addr, amount)
	return err
}
