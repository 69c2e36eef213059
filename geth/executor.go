package geth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	gethstate "github.com/ethereum/go-ethereum/core/state"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core"
	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/log"
)

var (
	execTimer    = metrics.NewRegisteredTimer("executor/exec", nil)
	callTimer    = metrics.NewRegisteredTimer("executor/call", nil)
	revertMeter  = metrics.NewRegisteredMeter("executor/reverted", nil)
	execGasMeter = metrics.NewRegisteredMeter("executor/gas", nil)
)

// blockHashWindow is how far back BLOCKHASH can see.
const blockHashWindow = 256

// BlockReader resolves committed blocks for the BLOCKHASH opcode.
type BlockReader interface {
	BlockByNumber(number uint64) (*gethtypes.Block, error)
}

// Executor implements core.Executor on go-ethereum's EVM.
type Executor struct {
	config *params.ChainConfig
	chain  BlockReader
	log    *log.Logger
}

var _ core.Executor = (*Executor)(nil)

// NewExecutor creates an executor. chain may be nil, in which case
// BLOCKHASH yields zero.
func NewExecutor(config *params.ChainConfig, chain BlockReader) *Executor {
	return &Executor{config: config, chain: chain, log: log.Module("executor")}
}

func (x *Executor) getHash(current uint64) gethvm.GetHashFunc {
	return func(n uint64) common.Hash {
		if x.chain == nil || n >= current || current-n > blockHashWindow {
			return common.Hash{}
		}
		block, err := x.chain.BlockByNumber(n)
		if err != nil {
			return common.Hash{}
		}
		return block.Hash()
	}
}

// newEVM opens a StateDB at the backend's root and an EVM over it.
func (x *Executor) newEVM(backend *state.Backend) (*gethvm.EVM, *gethstate.StateDB, error) {
	sdb, err := gethstate.New(backend.Root(), gethstate.NewDatabase(backend.Store().TrieDB(), nil))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open evm state at %x: %v", state.ErrTrieRestoreFailed, backend.Root(), err)
	}
	v := backend.Vicinity()
	// fees are settled on the backend; the EVM runs every message at price zero
	evm := gethvm.NewEVM(blockContext(v, x.getHash(v.BlockNumber)), sdb, x.config, gethvm.Config{NoBaseFee: true})
	return evm, sdb, nil
}

// Exec deducts GasLimit*GasPrice from the sender, runs the transaction,
// commits the EVM state into the backend and refunds the unused gas.
func (x *Executor) Exec(backend *state.Backend, in *core.ExecInput) (*core.TxResponse, error) {
	defer func(start time.Time) { execTimer.UpdateSince(start) }(time.Now())

	tx := in.Tx
	price := in.GasPrice
	if price == nil {
		price = new(uint256.Int)
	}
	prepay, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(tx.Gas()), price)
	if overflow {
		return nil, fmt.Errorf("geth: prepay overflow for %x", tx.Hash())
	}
	if err := backend.DeductPrepay(tx.Sender, prepay); err != nil {
		return nil, err
	}

	evm, sdb, err := x.newEVM(backend)
	if err != nil {
		return nil, err
	}
	sdb.SetTxContext(tx.Hash(), in.TxIndex)
	msg := message(tx.Sender, tx.To(), tx.Nonce(), tx.Tx.Value(), tx.Gas(), tx.Data())
	msg.AccessList = tx.Tx.AccessList()

	result, err := gethcore.ApplyMessage(evm, msg, new(gethcore.GasPool).AddGas(tx.Gas()))
	if err != nil {
		if errors.Is(err, gethcore.ErrInsufficientFunds) || errors.Is(err, gethcore.ErrInsufficientFundsForTransfer) {
			balance, _ := backend.GetBalance(tx.Sender)
			return nil, &state.InsufficientBalanceError{Address: tx.Sender, Have: balance, Want: tx.Value()}
		}
		return nil, fmt.Errorf("geth: apply %x: %w", tx.Hash(), err)
	}

	v := backend.Vicinity()
	logs := sdb.GetLogs(tx.Hash(), v.BlockNumber, common.Hash{}, v.Timestamp)
	if err := x.commit(backend, sdb, v.BlockNumber); err != nil {
		return nil, err
	}

	used := uint256.NewInt(result.UsedGas)
	refund := new(uint256.Int).Mul(uint256.NewInt(tx.Gas()-result.UsedGas), price)
	if err := backend.RefundUnused(tx.Sender, refund); err != nil {
		return nil, err
	}
	execGasMeter.Mark(int64(result.UsedGas))

	resp := &core.TxResponse{
		Failed:  result.Failed(),
		Data:    result.Return(),
		UsedGas: result.UsedGas,
		Logs:    logs,
		Fee:     used.Mul(used, price),
	}
	if result.Failed() {
		revertMeter.Mark(1)
		resp.Data = result.Revert()
		resp.ExitReason = exitReason(result)
	} else if tx.To() == nil {
		addr := gethcrypto.CreateAddress(tx.Sender, tx.Nonce())
		resp.ContractAddress = &addr
	}
	x.log.Trace("Transaction executed", "hash", tx.Hash(), "gas", result.UsedGas, "failed", resp.Failed)
	return resp, nil
}

// commit writes the StateDB into the shared trie database and moves the
// backend onto the new root.
func (x *Executor) commit(backend *state.Backend, sdb *gethstate.StateDB, number uint64) error {
	root, err := sdb.Commit(number, true, false)
	if err != nil {
		return fmt.Errorf("%w: commit evm state: %v", state.ErrTrieError, err)
	}
	if err := backend.Store().TrieDB().Commit(root, false); err != nil {
		return fmt.Errorf("%w: flush evm state %x: %v", state.ErrTrieError, root, err)
	}
	return backend.Reopen(root)
}

// Call runs msg against the backend's state without committing anything.
// A zero gas limit means the block gas limit.
func (x *Executor) Call(backend *state.Backend, msg *core.CallMsg) (*core.CallResult, error) {
	defer func(start time.Time) { callTimer.UpdateSince(start) }(time.Now())

	evm, sdb, err := x.newEVM(backend)
	if err != nil {
		return nil, err
	}
	gas := msg.GasLimit
	if gas == 0 {
		gas = backend.Vicinity().GasLimit
	}
	m := message(msg.From, msg.To, sdb.GetNonce(msg.From), ToBig(msg.Value), gas, msg.Data)
	m.AccessList = msg.AccessList

	sdb.SetTxContext(common.Hash{}, 0)
	result, err := gethcore.ApplyMessage(evm, m, new(gethcore.GasPool).AddGas(gas))
	if err != nil {
		return nil, fmt.Errorf("geth: call: %w", err)
	}
	res := &core.CallResult{
		Failed:  result.Failed(),
		Data:    result.ReturnData,
		UsedGas: result.UsedGas,
		Logs:    sdb.GetLogs(common.Hash{}, backend.Vicinity().BlockNumber, common.Hash{}, backend.Vicinity().Timestamp),
	}
	if result.Failed() {
		res.ExitReason = exitReason(result)
	}
	return res, nil
}

// exitReason renders a failed execution, decoding Error(string) reverts.
func exitReason(result *gethcore.ExecutionResult) string {
	if errors.Is(result.Err, gethvm.ErrExecutionReverted) {
		if reason, err := abi.UnpackRevert(result.Revert()); err == nil {
			return fmt.Sprintf("%v: %s", result.Err, reason)
		}
	}
	return result.Err.Error()
}
