package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Trie failures mean state corruption or a wrong root reference; they are
// always surfaced to the caller.
var (
	ErrTrieCreationFailed = errors.New("state: trie creation failed")
	ErrTrieRestoreFailed  = errors.New("state: trie restore failed")
	ErrTrieError          = errors.New("state: trie error")
	ErrReadOnly           = errors.New("state: backend is read-only")
)

// InsufficientBalanceError is returned by SubBalance when the account cannot
// cover the debit.
type InsufficientBalanceError struct {
	Address common.Address
	Have    *uint256.Int
	Want    *uint256.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("state: insufficient balance for %s: have %s, want %s", e.Address.Hex(), e.Have.Dec(), e.Want.Dec())
}
