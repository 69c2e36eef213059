package gasprice

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/DeFiCh/ain-sub000/core/rawdb"
	"github.com/DeFiCh/ain-sub000/core/types"
	"github.com/DeFiCh/ain-sub000/params"
)

// testChain is an in-memory ChainReader that counts block reads.
type testChain struct {
	blocks   []*gethtypes.Block
	receipts map[common.Hash]*types.Receipt
	reads    int
}

func newTestChain() *testChain {
	return &testChain{receipts: make(map[common.Hash]*types.Receipt)}
}

func (c *testChain) BlockByNumber(number uint64) (*gethtypes.Block, error) {
	c.reads++
	if number >= uint64(len(c.blocks)) {
		return nil, rawdb.ErrNotFound
	}
	return c.blocks[number], nil
}

func (c *testChain) BlockByHash(hash common.Hash) (*gethtypes.Block, error) {
	c.reads++
	for _, b := range c.blocks {
		if b.Hash() == hash {
			return b, nil
		}
	}
	return nil, rawdb.ErrNotFound
}

func (c *testChain) LatestBlock() (*gethtypes.Block, error) {
	c.reads++
	if len(c.blocks) == 0 {
		return nil, rawdb.ErrNotFound
	}
	return c.blocks[len(c.blocks)-1], nil
}

func (c *testChain) Receipt(txHash common.Hash) (*types.Receipt, error) {
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, rawdb.ErrNotFound
	}
	return r, nil
}

type testTx struct {
	tip     uint64 // gwei
	gasUsed uint64
}

// addBlock appends a block whose transactions pay the given tips.
func (c *testChain) addBlock(baseFeeGwei uint64, txs ...testTx) *gethtypes.Block {
	number := uint64(len(c.blocks))
	var (
		list []*gethtypes.Transaction
		used uint64
	)
	for i, tx := range txs {
		to := common.HexToAddress("0x01")
		signed := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:   big.NewInt(1),
			Nonce:     number*100 + uint64(i),
			GasTipCap: new(big.Int).SetUint64(tx.tip * params.GWei),
			GasFeeCap: new(big.Int).SetUint64(1000 * params.GWei),
			Gas:       tx.gasUsed,
			To:        &to,
			Value:     new(big.Int),
		})
		list = append(list, signed)
		used += tx.gasUsed
		c.receipts[signed.Hash()] = &types.Receipt{Receipt: &gethtypes.Receipt{
			Status:  gethtypes.ReceiptStatusSuccessful,
			TxHash:  signed.Hash(),
			GasUsed: tx.gasUsed,
		}}
	}
	header := &gethtypes.Header{
		Number:   new(big.Int).SetUint64(number),
		GasLimit: params.DefaultBlockGasLimit,
		GasUsed:  used,
		Time:     number,
		BaseFee:  new(big.Int).SetUint64(baseFeeGwei * params.GWei),
	}
	if number > 0 {
		header.ParentHash = c.blocks[number-1].Hash()
	}
	block := gethtypes.NewBlock(header, &gethtypes.Body{Transactions: list}, nil, trie.NewStackTrie(nil))
	c.blocks = append(c.blocks, block)
	return block
}

func gwei(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(params.GWei))
}

func TestCalcBaseFee(t *testing.T) {
	const limit = params.DefaultBlockGasLimit
	const target = limit / params.DefaultGasTargetFactor

	tests := []struct {
		name   string
		used   uint64
		parent *uint256.Int
		want   *uint256.Int
	}{
		{"at target", target, gwei(16), gwei(16)},
		{"full block", limit, gwei(16), gwei(18)},
		{"empty block", 0, gwei(16), gwei(14)},
		{"ceiling", limit, params.MaxBaseFee, params.MaxBaseFee},
		{"floor", 0, params.InitialBaseFee, params.InitialBaseFee},
		{"nil parent", target, nil, params.InitialBaseFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalcBaseFee(limit, tt.used, tt.parent, params.DefaultGasTargetFactor)
			require.NoError(t, err)
			require.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestCalcBaseFeeMinimumIncrease(t *testing.T) {
	// delta rounds down to zero but an over-target block must still raise
	// the fee.
	got, err := CalcBaseFee(params.DefaultBlockGasLimit, params.DefaultBlockGasLimit/2+1, uint256.NewInt(1), 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), got.Uint64())
}

func TestCalcBaseFeeErrors(t *testing.T) {
	_, err := CalcBaseFee(params.DefaultBlockGasLimit, 0, gwei(10), 0)
	require.ErrorIs(t, err, ErrFeeDivisionByZero)

	_, err = CalcBaseFee(1, 0, gwei(10), 2)
	require.ErrorIs(t, err, ErrFeeDivisionByZero)

	huge := new(uint256.Int).SetAllOne()
	_, err = CalcBaseFee(params.DefaultBlockGasLimit, params.DefaultBlockGasLimit, huge, 2)
	require.ErrorIs(t, err, ErrFeeOverflow)
}

func TestCalculateBaseFee(t *testing.T) {
	chain := newTestChain()
	engine := New(chain, DefaultConfig())

	fee, err := engine.CalculateBaseFee(common.Hash{}, params.DefaultGasTargetFactor)
	require.NoError(t, err)
	require.Equal(t, params.InitialBaseFee.String(), fee.String())

	parent := chain.addBlock(16, testTx{tip: 1, gasUsed: params.DefaultBlockGasLimit})
	fee, err = engine.CalculateBaseFee(parent.Hash(), params.DefaultGasTargetFactor)
	require.NoError(t, err)
	require.Equal(t, gwei(18).String(), fee.String())

	_, err = engine.CalculateBaseFee(common.HexToHash("0xdead"), params.DefaultGasTargetFactor)
	require.ErrorIs(t, err, rawdb.ErrNotFound)
}

func TestSuggestPriorityFeeEmptyChain(t *testing.T) {
	engine := New(newTestChain(), DefaultConfig())
	fee, err := engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.True(t, fee.IsZero())
}

func TestSuggestPriorityFee(t *testing.T) {
	chain := newTestChain()
	chain.addBlock(10, testTx{tip: 1, gasUsed: 21000}, testTx{tip: 5, gasUsed: 21000})
	chain.addBlock(10, testTx{tip: 3, gasUsed: 21000})
	chain.addBlock(10)

	engine := New(chain, Config{Blocks: 20, Percentile: 60})
	fee, err := engine.SuggestPriorityFee()
	require.NoError(t, err)
	// sorted tips [1 3 5], index (3-1)*60/100 = 1
	require.Equal(t, gwei(3).String(), fee.String())

	engine = New(chain, Config{Blocks: 2, Percentile: 100})
	fee, err = engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, gwei(3).String(), fee.String())
}

func TestSuggestPriorityFeeCache(t *testing.T) {
	chain := newTestChain()
	chain.addBlock(10, testTx{tip: 2, gasUsed: 21000})
	chain.addBlock(10, testTx{tip: 4, gasUsed: 21000})
	engine := New(chain, Config{Blocks: 5, Percentile: 0})

	fee, err := engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, gwei(2).String(), fee.String())
	cold := chain.reads

	// a cached answer only reads the head
	chain.reads = 0
	_, err = engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, 1, chain.reads)
	require.Greater(t, cold, chain.reads)

	engine.OnNewHead(1)
	chain.reads = 0
	_, err = engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, cold, chain.reads)

	// a new head misses the cache even without a notification
	chain.addBlock(10, testTx{tip: 1, gasUsed: 21000})
	fee, err = engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, gwei(1).String(), fee.String())
}

func TestSuggestPriorityFeeDisconnect(t *testing.T) {
	chain := newTestChain()
	chain.addBlock(10, testTx{tip: 2, gasUsed: 21000})
	chain.addBlock(10, testTx{tip: 4, gasUsed: 21000})
	engine := New(chain, Config{Blocks: 5, Percentile: 100})

	fee, err := engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, gwei(4).String(), fee.String())

	// block 1 is replaced by another block at the same height
	chain.blocks = chain.blocks[:1]
	chain.addBlock(10, testTx{tip: 9, gasUsed: 21000})
	fee, err = engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, gwei(4).String(), fee.String())

	engine.OnDisconnect(1)
	fee, err = engine.SuggestPriorityFee()
	require.NoError(t, err)
	require.Equal(t, gwei(9).String(), fee.String())
}

func TestFeeHistory(t *testing.T) {
	chain := newTestChain()
	chain.addBlock(10)
	chain.addBlock(11, testTx{tip: 3, gasUsed: 42000}, testTx{tip: 1, gasUsed: 21000})
	chain.addBlock(12)
	engine := New(chain, DefaultConfig())

	history, err := engine.FeeHistory(2, BlockNumber(1), []float64{0, 50, 100}, params.DefaultGasTargetFactor)
	require.NoError(t, err)
	require.Equal(t, uint64(0), history.OldestBlock)
	require.Len(t, history.BaseFee, 3)
	require.Equal(t, gwei(10).String(), history.BaseFee[0].String())
	require.Equal(t, gwei(11).String(), history.BaseFee[1].String())
	// the persisted child supplies the trailing entry
	require.Equal(t, gwei(12).String(), history.BaseFee[2].String())

	require.Len(t, history.GasUsedRatio, 2)
	require.Zero(t, history.GasUsedRatio[0])
	require.InDelta(t, 63000.0/params.DefaultBlockGasLimit, history.GasUsedRatio[1], 1e-12)

	require.Len(t, history.Reward, 2)
	for _, r := range history.Reward[0] {
		require.True(t, r.IsZero())
	}
	require.Equal(t, gwei(1).String(), history.Reward[1][0].String())
	require.Equal(t, gwei(3).String(), history.Reward[1][1].String())
	require.Equal(t, gwei(3).String(), history.Reward[1][2].String())
}

func TestFeeHistoryLatest(t *testing.T) {
	chain := newTestChain()
	chain.addBlock(16)
	chain.addBlock(16, testTx{tip: 1, gasUsed: params.DefaultBlockGasLimit})
	engine := New(chain, DefaultConfig())

	history, err := engine.FeeHistory(10, LatestBlockNumber, nil, params.DefaultGasTargetFactor)
	require.NoError(t, err)
	require.Equal(t, uint64(0), history.OldestBlock)
	require.Len(t, history.GasUsedRatio, 2)
	require.Nil(t, history.Reward)
	// projected from the full head block
	require.Equal(t, gwei(18).String(), history.BaseFee[2].String())
}

func TestFeeHistoryValidation(t *testing.T) {
	chain := newTestChain()
	chain.addBlock(10)
	engine := New(chain, DefaultConfig())

	tooMany := make([]float64, params.MaxFeeHistoryPercentiles+1)
	tests := []struct {
		name        string
		count       uint64
		percentiles []float64
		want        error
	}{
		{"zero blocks", 0, nil, ErrInvalidBlockCount},
		{"too many blocks", params.MaxFeeHistoryBlocks + 1, nil, ErrInvalidBlockCount},
		{"too many percentiles", 1, tooMany, ErrTooManyPercentiles},
		{"negative percentile", 1, []float64{-1}, ErrInvalidPercentile},
		{"percentile above 100", 1, []float64{100.5}, ErrInvalidPercentile},
		{"unsorted", 1, []float64{50, 10}, ErrUnsortedPercentiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain.reads = 0
			_, err := engine.FeeHistory(tt.count, LatestBlockNumber, tt.percentiles, 2)
			require.ErrorIs(t, err, tt.want)
			require.Zero(t, chain.reads)
		})
	}

	_, err := engine.FeeHistory(1, BlockNumber(5), nil, 2)
	require.ErrorIs(t, err, ErrFutureBlock)
}
