package core

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/core/types"
)

// CallMsg is a read-only message call.
type CallMsg struct {
	From       common.Address
	To         *common.Address
	Value      *uint256.Int
	Data       []byte
	GasLimit   uint64
	AccessList gethtypes.AccessList
}

// CallResult is the outcome of a message call.
type CallResult struct {
	Failed     bool
	ExitReason string
	Data       []byte
	UsedGas    uint64
	Logs       []*gethtypes.Log
}

// ExecInput is a transaction to apply together with the price it pays per
// unit of gas. The executor deducts GasLimit*GasPrice up front and refunds
// the unused part.
type ExecInput struct {
	Tx       *types.SignedTx
	GasPrice *uint256.Int
	TxIndex  int
}

// TxResponse is the outcome of applying a transaction. Fee is the part of
// the prepay that was kept.
type TxResponse struct {
	Failed          bool
	ExitReason      string
	Data            []byte
	UsedGas         uint64
	Logs            []*gethtypes.Log
	ContractAddress *common.Address
	Fee             *uint256.Int
}

// Executor runs EVM semantics on top of a state backend. Exec commits its
// effects into the backend; Call leaves it untouched. A returned error means
// the transaction could not be applied at all, for instance because the
// sender cannot cover the prepay; EVM-level failures are reported through
// Failed.
type Executor interface {
	Call(backend *state.Backend, msg *CallMsg) (*CallResult, error)
	Exec(backend *state.Backend, in *ExecInput) (*TxResponse, error)
}
