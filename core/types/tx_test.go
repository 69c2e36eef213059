package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var testChainID = big.NewInt(1130)

func signDynamic(t *testing.T, nonce uint64, tip, feeCap int64) (*gethtypes.Transaction, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x1000")
	tx := gethtypes.MustSignNewTx(key, gethtypes.LatestSignerForChainID(testChainID), &gethtypes.DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(feeCap),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(5),
	})
	return tx, crypto.PubkeyToAddress(key.PublicKey)
}

func TestDecodeSignedTx(t *testing.T) {
	tx, sender := signDynamic(t, 3, 2, 100)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	stx, err := DecodeSignedTx(raw, testChainID)
	require.NoError(t, err)
	require.Equal(t, sender, stx.Sender)
	require.Equal(t, tx.Hash(), stx.Hash())
	require.Equal(t, uint64(3), stx.Nonce())
	require.Equal(t, uint64(5), stx.Value().Uint64())

	hexed, err := DecodeSignedTxHex(common.Bytes2Hex(raw), testChainID)
	require.NoError(t, err)
	require.Equal(t, sender, hexed.Sender)
}

func TestDecodeSignedTxErrors(t *testing.T) {
	_, err := DecodeSignedTx(nil, testChainID)
	require.ErrorIs(t, err, ErrInvalidTx)

	_, err = DecodeSignedTx([]byte{0x02, 0xc0}, testChainID)
	require.ErrorIs(t, err, ErrInvalidTx)

	tx, _ := signDynamic(t, 0, 1, 1)
	raw, _ := tx.MarshalBinary()
	_, err = DecodeSignedTx(raw, big.NewInt(1))
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestEffectiveFees(t *testing.T) {
	tx, sender := signDynamic(t, 0, 2, 100)
	stx := &SignedTx{Tx: tx, Sender: sender}

	// tip fits under the cap
	require.Equal(t, uint64(12), stx.EffectiveGasPrice(uint256.NewInt(10)).Uint64())
	require.Equal(t, uint64(2), stx.EffectivePriorityFee(uint256.NewInt(10)).Uint64())

	// capped by the fee cap
	require.Equal(t, uint64(100), stx.EffectiveGasPrice(uint256.NewInt(99)).Uint64())
	require.Equal(t, uint64(1), stx.EffectivePriorityFee(uint256.NewInt(99)).Uint64())

	// base fee above the cap saturates at zero
	require.True(t, stx.EffectivePriorityFee(uint256.NewInt(500)).IsZero())
}

func TestSignedOf(t *testing.T) {
	stx := &SignedTx{}
	require.Same(t, stx, SignedOf(stx))
	require.Same(t, stx, SignedOf(&TransferDomainTx{Signed: stx}))
	require.Same(t, stx, SignedOf(&DST20BridgeTx{Signed: stx}))
	require.Nil(t, SignedOf(&DeployContractTx{}))

	item := &QueueItem{Tx: &DeployContractTx{}}
	_, ok := item.Sender()
	require.False(t, ok)
}

func TestNativeBlockExtra(t *testing.T) {
	n, ok := ParseNativeBlockExtra(NativeBlockExtra(123456))
	require.True(t, ok)
	require.Equal(t, uint64(123456), n)

	_, ok = ParseNativeBlockExtra([]byte("garbage"))
	require.False(t, ok)
}

func TestLogsBloom(t *testing.T) {
	topic := common.HexToHash("0xabcdef")
	addr := common.HexToAddress("0x1234")
	bloom := LogsBloom([]*gethtypes.Log{{Address: addr, Topics: []common.Hash{topic}}})
	require.True(t, gethtypes.BloomLookup(bloom, topic))
	require.True(t, gethtypes.BloomLookup(bloom, addr))

	var merged gethtypes.Bloom
	MergeBloom(&merged, bloom)
	require.Equal(t, bloom, merged)
}
