// Package types defines the side ledger's queue transaction model, the
// per-block execution vicinity and the receipt/block wrappers persisted by
// the engine. Consensus-level block, header, log and bloom types come from
// go-ethereum.
package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidTx        = errors.New("types: malformed transaction envelope")
	ErrChainIDMismatch  = errors.New("types: transaction chain id mismatch")
	ErrInvalidSignature = errors.New("types: invalid transaction signature")
)

// Direction tells which way a cross-domain movement goes.
type Direction uint8

const (
	// EvmIn moves value from the native ledger into the EVM.
	EvmIn Direction = iota
	// EvmOut moves value from the EVM back to the native ledger.
	EvmOut
)

func (d Direction) String() string {
	switch d {
	case EvmIn:
		return "evm-in"
	case EvmOut:
		return "evm-out"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// QueueTx is any transaction a build context can hold: a user SignedTx or
// one of the system variants below.
type QueueTx interface {
	queueTx()
}

// SignedTx is a decoded, sender-recovered EVM transaction.
type SignedTx struct {
	Tx     *gethtypes.Transaction
	Sender common.Address
}

// TransferDomainTx bridges native coin between the ledgers. Signed is the
// EVM-side call into the transfer-domain contract.
type TransferDomainTx struct {
	Signed    *SignedTx
	Direction Direction
}

// DST20BridgeTx bridges a native token into or out of its DST20 contract.
type DST20BridgeTx struct {
	Signed    *SignedTx
	Contract  common.Address
	Direction Direction
}

// DeployContractTx deploys the DST20 contract mirroring a native token. It
// has no native counterpart transaction.
type DeployContractTx struct {
	Name    string
	Symbol  string
	TokenID uint64
	Address common.Address
}

func (*SignedTx) queueTx() {}
func (*TransferDomainTx) queueTx() {}
func (*DST20BridgeTx) queueTx() {}
func (*DeployContractTx) queueTx() {}

// NewSignedTx wraps tx after recovering its sender against chainID.
func NewSignedTx(tx *gethtypes.Transaction, chainID *big.Int) (*SignedTx, error) {
	if tx.Protected() && tx.ChainId().Cmp(chainID) != 0 {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrChainIDMismatch, tx.ChainId(), chainID)
	}
	sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &SignedTx{Tx: tx, Sender: sender}, nil
}

// DecodeSignedTx decodes a binary transaction envelope (legacy RLP or typed
// EIP-2718) and recovers its sender.
func DecodeSignedTx(raw []byte, chainID *big.Int) (*SignedTx, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidTx
	}
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	return NewSignedTx(tx, chainID)
}

// DecodeSignedTxHex is DecodeSignedTx over a hex envelope, with or without
// the 0x prefix.
func DecodeSignedTxHex(s string, chainID *big.Int) (*SignedTx, error) {
	return DecodeSignedTx(common.FromHex(s), chainID)
}

func (s *SignedTx) Hash() common.Hash { return s.Tx.Hash() }
func (s *SignedTx) Nonce() uint64 { return s.Tx.Nonce() }
func (s *SignedTx) Gas() uint64 { return s.Tx.Gas() }
func (s *SignedTx) To() *common.Address { return s.Tx.To() }
func (s *SignedTx) Data() []byte { return s.Tx.Data() }
func (s *SignedTx) Value() *uint256.Int { return bigToU256(s.Tx.Value()) }
func (s *SignedTx) GasFeeCap() *uint256.Int { return bigToU256(s.Tx.GasFeeCap()) }
func (s *SignedTx) GasTipCap() *uint256.Int { return bigToU256(s.Tx.GasTipCap()) }

// EffectiveGasPrice is the per-gas price actually charged under baseFee:
// min(tipCap + baseFee, feeCap). Legacy transactions have tipCap == feeCap.
func (s *SignedTx) EffectiveGasPrice(baseFee *uint256.Int) *uint256.Int {
	feeCap := s.GasFeeCap()
	if baseFee == nil {
		return feeCap
	}
	price, overflow := new(uint256.Int).AddOverflow(s.GasTipCap(), baseFee)
	if overflow || price.Gt(feeCap) {
		return feeCap
	}
	return price
}

// EffectivePriorityFee is the part of the effective gas price above baseFee,
// saturating at zero.
func (s *SignedTx) EffectivePriorityFee(baseFee *uint256.Int) *uint256.Int {
	price := s.EffectiveGasPrice(baseFee)
	if baseFee == nil {
		return price
	}
	if price.Lt(baseFee) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(price, baseFee)
}

// SignedOf returns the EVM transaction carried by a queued transaction, if
// any. DeployContractTx carries none.
func SignedOf(tx QueueTx) *SignedTx {
	switch tx := tx.(type) {
	case *SignedTx:
		return tx
	case *TransferDomainTx:
		return tx.Signed
	case *DST20BridgeTx:
		return tx.Signed
	}
	return nil
}

func bigToU256(b *big.Int) *uint256.Int {
	if b == nil || b.Sign() <= 0 {
		return new(uint256.Int)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return u
}
