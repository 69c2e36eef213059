package core

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/contracts"
	"github.com/DeFiCh/ain-sub000/core/gasprice"
	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/params"
)

// AssembleResult summarizes an assembled block.
type AssembleResult struct {
	BlockHash   common.Hash
	BlockNumber uint64
	FailedTxs   []common.Hash
	BurntFee    *uint256.Int
	PriorityFee *uint256.Int
	GasUsed     uint64
}

// assembler carries the running totals of one Assemble call.
type assembler struct {
	e       *Engine
	backend *state.Backend
	baseFee *uint256.Int
	attrs   *types.Attributes

	txs      []*gethtypes.Transaction
	receipts []*types.Receipt
	results  []*types.QueueItem
	failed   []common.Hash

	blockGas uint64 // gas of every included transaction
	feeGas   uint64 // gas of fee-paying transactions
	fees     *uint256.Int
	logIndex uint
}

// Assemble executes the items of context id on top of the latest block and
// stores the resulting block as the context's pending block. A structural
// problem such as a nonce mismatch aborts the assembly and leaves the
// context untouched; EVM-level failures are listed in FailedTxs.
func (e *Engine) Assemble(lock *StateLock, id uint64, difficulty uint64, beneficiary common.Address, timestamp uint64, nativeBlockNumber uint64) (*AssembleResult, error) {
	if !e.coordinator.Holds(lock) {
		return nil, ErrStateLockNotHeld
	}
	defer func(start time.Time) { assembleTimer.UpdateSince(start) }(time.Now())

	ctx, err := e.queue.Get(id)
	if err != nil {
		return nil, err
	}
	if ctx.PendingBlock() != nil {
		return nil, ErrAlreadyAssembled
	}
	parent, err := e.latest()
	if err != nil {
		return nil, err
	}
	var (
		number     uint64
		parentHash common.Hash
		parentRoot common.Hash
	)
	if parent != nil {
		number, parentHash, parentRoot = parent.NumberU64()+1, parent.Hash(), parent.Root()
	}
	if number != ctx.TargetBlock() {
		return nil, fmt.Errorf("%w: context targets %d, next block is %d", ErrStaleContext, ctx.TargetBlock(), number)
	}

	attrs, err := e.store.Attributes()
	if err != nil {
		return nil, fmt.Errorf("core: attributes: %w", err)
	}
	baseFee, err := e.fees.CalculateBaseFee(parentHash, attrs.GasTargetFactor)
	if err != nil {
		return nil, err
	}
	vicinity := types.Vicinity{
		GasPrice:    new(uint256.Int),
		Beneficiary: beneficiary,
		BlockNumber: number,
		Timestamp:   timestamp,
		GasLimit:    attrs.BlockGasLimit,
		BaseFee:     baseFee,
		Randomness:  parentHash,
		Difficulty:  uint256.NewInt(difficulty),
		ChainID:     e.config.ChainID,
	}
	backend, err := state.Open(e.tries, parentRoot, vicinity)
	if err != nil {
		return nil, err
	}

	a := &assembler{e: e, backend: backend, baseFee: baseFee, attrs: attrs, fees: new(uint256.Int)}
	items := ctx.Items()
	a.results = make([]*types.QueueItem, len(items))

	order := make([]int, 0, len(items))
	if number == 0 {
		if err := a.genesis(); err != nil {
			return nil, err
		}
		// token deployments run as migrations ahead of everything else
		for i, item := range items {
			if _, ok := item.Tx.(*types.DeployContractTx); ok {
				order = append(order, i)
			}
		}
		for i, item := range items {
			if _, ok := item.Tx.(*types.DeployContractTx); !ok {
				order = append(order, i)
			}
		}
	} else {
		if err := a.updateIntrinsics(number, nativeBlockNumber); err != nil {
			return nil, err
		}
		for i := range items {
			order = append(order, i)
		}
	}

	for _, i := range order {
		res, err := a.dispatch(items[i])
		if err != nil {
			return nil, err
		}
		a.results[i] = res
	}

	burnt, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a.feeGas), baseFee)
	if overflow {
		return nil, fmt.Errorf("%w: burnt fee", gasprice.ErrFeeOverflow)
	}
	priority, underflow := new(uint256.Int).SubOverflow(a.fees, burnt)
	if underflow {
		return nil, fmt.Errorf("%w: priority fee", gasprice.ErrFeeUnderflow)
	}
	if !priority.IsZero() {
		if _, err := backend.AddBalance(beneficiary, priority); err != nil {
			return nil, err
		}
	}
	root, err := backend.Commit()
	if err != nil {
		return nil, err
	}

	header := &gethtypes.Header{
		ParentHash: parentHash,
		Coinbase:   beneficiary,
		Root:       root,
		Difficulty: new(big.Int).SetUint64(difficulty),
		Number:     new(big.Int).SetUint64(number),
		GasLimit:   attrs.BlockGasLimit,
		GasUsed:    a.blockGas,
		Time:       timestamp,
		Extra:      types.NativeBlockExtra(nativeBlockNumber),
		MixDigest:  vicinity.Randomness,
		BaseFee:    baseFee.ToBig(),
	}
	gethReceipts := make([]*gethtypes.Receipt, len(a.receipts))
	for i, r := range a.receipts {
		gethReceipts[i] = r.Receipt
	}
	block := gethtypes.NewBlock(header, &gethtypes.Body{Transactions: a.txs}, gethReceipts, trie.NewStackTrie(nil))
	for i, r := range a.receipts {
		r.BlockHash = block.Hash()
		r.BlockNumber = new(big.Int).SetUint64(number)
		r.TransactionIndex = uint(i)
		for _, l := range r.Logs {
			l.BlockHash = block.Hash()
			l.BlockNumber = number
			l.TxIndex = uint(i)
		}
	}

	ctx.SetResults(a.results)
	ctx.SetPendingBlock(&types.FinalizedBlock{Block: block, Receipts: a.receipts})

	blockTxsMeter.Mark(int64(len(a.txs)))
	failedTxsMeter.Mark(int64(len(a.failed)))
	e.log.Info("Block assembled", "number", number, "hash", block.Hash(), "txs", len(a.txs),
		"failed", len(a.failed), "gas", a.blockGas, "basefee", baseFee, "root", root)

	return &AssembleResult{
		BlockHash:   block.Hash(),
		BlockNumber: number,
		FailedTxs:   a.failed,
		BurntFee:    burnt,
		PriorityFee: priority,
		GasUsed:     a.blockGas,
	}, nil
}

// genesis installs the system contracts and the configured allocation.
func (a *assembler) genesis() error {
	if err := a.e.config.Genesis.apply(a.backend); err != nil {
		return fmt.Errorf("core: genesis alloc: %w", err)
	}
	for _, c := range []contracts.Contract{contracts.Intrinsics, contracts.TransferDomain} {
		if _, err := a.backend.Apply(c.Address, nil, c.Code, nil, false); err != nil {
			return fmt.Errorf("core: deploy %s: %w", c.Name, err)
		}
	}
	if _, err := a.backend.Commit(); err != nil {
		return err
	}
	addr := contracts.TransferDomain.Address
	a.include(contracts.TransferDomain.DeployTx(0), common.Address{}, nil, &addr, 0, nil, false, new(uint256.Int))
	return nil
}

// updateIntrinsics records the block counter and both chain heights in the
// intrinsics contract.
func (a *assembler) updateIntrinsics(number, nativeHeight uint64) error {
	counter, err := a.backend.GetContractStorage(params.IntrinsicsAddress, contracts.CounterSlot)
	if err != nil {
		return err
	}
	next := new(uint256.Int).SetBytes32(counter[:]).Uint64() + 1
	diffs := contracts.IntrinsicsDiffs(next, nativeHeight, number)
	if _, err := a.backend.Apply(params.IntrinsicsAddress, nil, nil, diffs, false); err != nil {
		return fmt.Errorf("core: update intrinsics: %w", err)
	}
	_, err = a.backend.Commit()
	return err
}

// include appends a transaction and its receipt to the block.
func (a *assembler) include(tx *gethtypes.Transaction, from common.Address, to, created *common.Address, gasUsed uint64, logs []*gethtypes.Log, failed bool, price *uint256.Int) *types.Receipt {
	a.blockGas += gasUsed
	for _, l := range logs {
		l.TxHash = tx.Hash()
		l.Index = a.logIndex
		a.logIndex++
	}
	if logs == nil {
		logs = []*gethtypes.Log{}
	}
	status := gethtypes.ReceiptStatusSuccessful
	if failed {
		status = gethtypes.ReceiptStatusFailed
	}
	r := &types.Receipt{
		Receipt: &gethtypes.Receipt{
			Type:              tx.Type(),
			Status:            status,
			CumulativeGasUsed: a.blockGas,
			Bloom:             types.LogsBloom(logs),
			Logs:              logs,
			TxHash:            tx.Hash(),
			GasUsed:           gasUsed,
			EffectiveGasPrice: price.ToBig(),
			TransactionIndex:  uint(len(a.txs)),
		},
		From: from,
		To:   to,
	}
	if created != nil {
		r.ContractAddress = *created
	}
	a.txs = append(a.txs, tx)
	a.receipts = append(a.receipts, r)
	return r
}

// result records the per-item outcome after the item was applied.
func (a *assembler) result(item *types.QueueItem, r *types.Receipt, fee *uint256.Int) *types.QueueItem {
	res := &types.QueueItem{
		Tx:        item.Tx,
		TxHash:    item.TxHash,
		GasFees:   fee,
		StateRoot: a.backend.Root(),
		Receipt:   r,
	}
	if r != nil {
		res.GasUsed = r.GasUsed
		res.LogsBloom = r.Bloom
	}
	return res
}

func (a *assembler) fail(hash common.Hash, reason string) {
	a.failed = append(a.failed, hash)
	a.e.log.Debug("Queued transaction failed", "hash", hash, "reason", reason)
}

func (a *assembler) dispatch(item *types.QueueItem) (*types.QueueItem, error) {
	switch tx := item.Tx.(type) {
	case *types.SignedTx:
		return a.applySigned(item, tx)
	case *types.TransferDomainTx:
		if tx.Direction == types.EvmIn {
			return a.transferDomainIn(item, tx)
		}
		return a.transferDomainOut(item, tx)
	case *types.DST20BridgeTx:
		if tx.Direction == types.EvmIn {
			return a.dst20In(item, tx)
		}
		return a.dst20Out(item, tx)
	case *types.DeployContractTx:
		return a.deployContract(item, tx)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownQueueTx, item.Tx)
}

// exec checks the nonce and block gas, then runs tx at price.
func (a *assembler) exec(tx *types.SignedTx, price *uint256.Int) (*TxResponse, error) {
	nonce, err := a.backend.GetNonce(tx.Sender)
	if err != nil {
		return nil, err
	}
	if nonce != tx.Nonce() {
		return nil, &NonceMismatchError{Hash: tx.Hash(), Sender: tx.Sender, Expected: nonce, Got: tx.Nonce()}
	}
	if a.blockGas+tx.Gas() > a.attrs.BlockGasLimit {
		return nil, fmt.Errorf("%w: tx %x", ErrGasLimitExceeded, tx.Hash())
	}
	vicinity := a.backend.Vicinity().WithOrigin(tx.Sender, price)
	a.backend.UpdateVicinity(vicinity)
	resp, err := a.e.executor.Exec(a.backend, &ExecInput{Tx: tx, GasPrice: price, TxIndex: len(a.txs)})
	if err != nil {
		return nil, fmt.Errorf("core: execute %x: %w", tx.Hash(), err)
	}
	return resp, nil
}

// includeResponse appends an executed transaction to the block.
func (a *assembler) includeResponse(item *types.QueueItem, tx *types.SignedTx, resp *TxResponse, price *uint256.Int) *types.QueueItem {
	fee := resp.Fee
	if fee == nil {
		fee = new(uint256.Int)
	}
	r := a.include(tx.Tx, tx.Sender, tx.To(), resp.ContractAddress, resp.UsedGas, resp.Logs, resp.Failed, price)
	return a.result(item, r, fee)
}

func (a *assembler) applySigned(item *types.QueueItem, tx *types.SignedTx) (*types.QueueItem, error) {
	// a price below the base fee would burn more than the sender paid
	if tx.GasFeeCap().Lt(a.baseFee) {
		return nil, fmt.Errorf("%w: tx %v cap %v < %v", ErrFeeCapTooLow, item.TxHash, tx.GasFeeCap(), a.baseFee)
	}
	price := tx.EffectiveGasPrice(a.baseFee)
	resp, err := a.exec(tx, price)
	if err != nil {
		return nil, err
	}
	res := a.includeResponse(item, tx, resp, price)
	a.feeGas += resp.UsedGas
	a.fees.Add(a.fees, res.GasFees)
	if resp.Failed {
		a.fail(item.TxHash, resp.ExitReason)
	}
	return res, nil
}

// systemPrice is the gas price of bridge transactions; they pay no fees.
var systemPrice = new(uint256.Int)

func (a *assembler) codeHashMatches(addr common.Address, want common.Hash) (bool, error) {
	have, err := a.backend.GetCodeHash(addr)
	if err != nil {
		return false, err
	}
	return have == want, nil
}

func (a *assembler) transferDomainIn(item *types.QueueItem, tx *types.TransferDomainTx) (*types.QueueItem, error) {
	ok, err := a.codeHashMatches(params.TransferDomainAddress, contracts.TransferDomain.CodeHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.fail(item.TxHash, "transfer domain code hash mismatch")
		return a.result(item, nil, nil), nil
	}
	call, err := contracts.DecodeTransferDomainCall(tx.Signed.Data())
	if err != nil {
		a.fail(item.TxHash, err.Error())
		return a.result(item, nil, nil), nil
	}
	if _, err := a.backend.AddBalance(params.TransferDomainAddress, call.Amount); err != nil {
		return nil, err
	}
	if _, err := a.backend.Commit(); err != nil {
		return nil, err
	}
	resp, err := a.exec(tx.Signed, systemPrice)
	if err != nil {
		return nil, err
	}
	if resp.Failed {
		a.fail(item.TxHash, resp.ExitReason)
	}
	return a.includeResponse(item, tx.Signed, resp, systemPrice), nil
}

func (a *assembler) transferDomainOut(item *types.QueueItem, tx *types.TransferDomainTx) (*types.QueueItem, error) {
	call, err := contracts.DecodeTransferDomainCall(tx.Signed.Data())
	if err != nil {
		a.fail(item.TxHash, err.Error())
		return a.result(item, nil, nil), nil
	}
	resp, err := a.exec(tx.Signed, systemPrice)
	if err != nil {
		return nil, err
	}
	res := a.includeResponse(item, tx.Signed, resp, systemPrice)
	if resp.Failed {
		a.fail(item.TxHash, resp.ExitReason)
		return res, nil
	}
	// The call already ran; a failed debit is recorded, not rolled back.
	if err := a.debit(tx.Signed.Sender, call.Amount); err != nil {
		if !isInsufficientBalance(err) {
			return nil, err
		}
		a.fail(item.TxHash, err.Error())
	}
	res.StateRoot = a.backend.Root()
	return res, nil
}

func (a *assembler) debit(addr common.Address, amount *uint256.Int) error {
	if _, err := a.backend.SubBalance(addr, amount); err != nil {
		return err
	}
	_, err := a.backend.Commit()
	return err
}

func isInsufficientBalance(err error) bool {
	var ib *state.InsufficientBalanceError
	return errors.As(err, &ib)
}

// tokenWord reads one word of token storage.
func (a *assembler) tokenWord(contract common.Address, slot common.Hash) (*uint256.Int, error) {
	word, err := a.backend.GetContractStorage(contract, slot)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes32(word[:]), nil
}

// adjustToken moves holder's balance and the total supply of contract by
// amount, minting when mint is set and burning otherwise.
func (a *assembler) adjustToken(contract, holder common.Address, amount *uint256.Int, mint bool) error {
	balanceSlot := contracts.BalanceSlot(holder)
	balance, err := a.tokenWord(contract, balanceSlot)
	if err != nil {
		return err
	}
	supply, err := a.tokenWord(contract, contracts.TotalSupplyKey)
	if err != nil {
		return err
	}
	if mint {
		var overflow bool
		if _, overflow = balance.AddOverflow(balance, amount); !overflow {
			_, overflow = supply.AddOverflow(supply, amount)
		}
		if overflow {
			return fmt.Errorf("core: token supply overflow on %s", contract.Hex())
		}
	} else {
		if balance.Lt(amount) {
			return &state.InsufficientBalanceError{Address: holder, Have: balance, Want: new(uint256.Int).Set(amount)}
		}
		balance.Sub(balance, amount)
		if supply.Lt(amount) {
			supply.Clear()
		} else {
			supply.Sub(supply, amount)
		}
	}
	diffs := []state.StorageDiff{
		{Key: balanceSlot, Value: balance.Bytes32()},
		{Key: contracts.TotalSupplyKey, Value: supply.Bytes32()},
	}
	if _, err := a.backend.Apply(contract, nil, nil, diffs, false); err != nil {
		return err
	}
	_, err = a.backend.Commit()
	return err
}

func (a *assembler) dst20In(item *types.QueueItem, tx *types.DST20BridgeTx) (*types.QueueItem, error) {
	ok, err := a.codeHashMatches(tx.Contract, contracts.DST20CodeHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.fail(item.TxHash, "token code hash mismatch")
		return a.result(item, nil, nil), nil
	}
	_, amount, err := contracts.DecodeTransfer(tx.Signed.Data())
	if err != nil {
		a.fail(item.TxHash, err.Error())
		return a.result(item, nil, nil), nil
	}
	if err := a.adjustToken(tx.Contract, tx.Signed.Sender, amount, true); err != nil {
		return nil, err
	}
	resp, err := a.exec(tx.Signed, systemPrice)
	if err != nil {
		return nil, err
	}
	if resp.Failed {
		a.fail(item.TxHash, resp.ExitReason)
	}
	return a.includeResponse(item, tx.Signed, resp, systemPrice), nil
}

func (a *assembler) dst20Out(item *types.QueueItem, tx *types.DST20BridgeTx) (*types.QueueItem, error) {
	to, amount, err := contracts.DecodeTransfer(tx.Signed.Data())
	if err == nil && to != params.TransferDomainAddress {
		err = fmt.Errorf("token transfer to %s instead of the bridge", to.Hex())
	}
	if err != nil {
		a.fail(item.TxHash, err.Error())
		return a.result(item, nil, nil), nil
	}
	resp, err := a.exec(tx.Signed, systemPrice)
	if err != nil {
		return nil, err
	}
	res := a.includeResponse(item, tx.Signed, resp, systemPrice)
	if resp.Failed {
		a.fail(item.TxHash, resp.ExitReason)
		return res, nil
	}
	if err := a.adjustToken(tx.Contract, params.TransferDomainAddress, amount, false); err != nil {
		if !isInsufficientBalance(err) {
			return nil, err
		}
		a.fail(item.TxHash, err.Error())
	}
	res.StateRoot = a.backend.Root()
	return res, nil
}

func (a *assembler) deployContract(item *types.QueueItem, tx *types.DeployContractTx) (*types.QueueItem, error) {
	token := contracts.DST20(tx.TokenID)
	addr := tx.Address
	if addr == (common.Address{}) {
		addr = token.Address
	}
	if _, err := a.backend.Apply(addr, nil, token.Code, contracts.DeployDiffs(tx.Name, tx.Symbol), true); err != nil {
		return nil, fmt.Errorf("core: deploy token %d: %w", tx.TokenID, err)
	}
	if _, err := a.backend.Commit(); err != nil {
		return nil, err
	}
	r := a.include(token.DeployTx(tx.TokenID), common.Address{}, nil, &addr, 0, nil, false, new(uint256.Int))
	return a.result(item, r, new(uint256.Int)), nil
}
