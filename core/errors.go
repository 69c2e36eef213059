package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrStateLockNotHeld  = errors.New("core: state lock not held")
	ErrNoPendingBlock    = errors.New("no constructed block in this context")
	ErrAlreadyAssembled  = errors.New("core: context already assembled")
	ErrStaleContext      = errors.New("core: context does not extend the latest block")
	ErrGasLimitExceeded  = errors.New("core: gas limit exceeds block gas limit")
	ErrFeeCapTooLow      = errors.New("core: max fee per gas below base fee")
	ErrUnknownQueueTx    = errors.New("core: unknown queued transaction type")
	ErrBlockNotFound     = errors.New("core: block not found")
)

// NonceMismatchError reports a transaction whose nonce is not the next one
// expected for its sender. During assembly it invalidates the whole block.
type NonceMismatchError struct {
	Hash     common.Hash
	Sender   common.Address
	Expected uint64
	Got      uint64
}

func (e *NonceMismatchError) Error() string {
	return fmt.Sprintf("core: nonce mismatch for tx %x from %s: expected %d, got %d",
		e.Hash, e.Sender.Hex(), e.Expected, e.Got)
}
