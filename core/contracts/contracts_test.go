package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/DeFiCh/ain-sub000/crypto"
	"github.com/DeFiCh/ain-sub000/params"
)

func TestSelectors(t *testing.T) {
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, TransferSelector)
	require.Equal(t, [4]byte{0x70, 0xa0, 0x82, 0x31}, BalanceOfSelector)
	require.Equal(t, common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"), TransferTopic)

	// the event topic is embedded in the token code
	require.Contains(t, string(dst20Code), string(TransferTopic.Bytes()))
}

func TestSystemContracts(t *testing.T) {
	require.Equal(t, params.IntrinsicsAddress, Intrinsics.Address)
	require.Equal(t, crypto.Keccak256Hash(Intrinsics.Code), Intrinsics.CodeHash)
	require.Len(t, Intrinsics.Code, 12)
	require.Len(t, TransferDomain.Code, 49)
	require.Len(t, dst20Code, 167)

	a, b := DST20(1), DST20(2)
	require.NotEqual(t, a.Address, b.Address)
	require.Equal(t, DST20CodeHash, a.CodeHash)
	require.Equal(t, a.CodeHash, b.CodeHash)

	require.True(t, IsSystemAddress(params.TransferDomainAddress))
	require.True(t, IsSystemAddress(a.Address))
	require.False(t, IsSystemAddress(common.HexToAddress("0xff00000000000000000000010000000000000001")))
	require.False(t, IsSystemAddress(common.HexToAddress("0x1234")))
}

func TestDeployTxHashes(t *testing.T) {
	td := TransferDomain.DeployTx(0)
	require.Nil(t, td.To())
	require.Equal(t, TransferDomain.Code, td.Data())
	require.NotEqual(t, td.Hash(), DST20(0).DeployTx(0).Hash())
	require.NotEqual(t, DST20(1).DeployTx(1).Hash(), DST20(2).DeployTx(2).Hash())
}

func TestTransferDomainCall(t *testing.T) {
	call := &TransferDomainCall{
		From:   common.HexToAddress("0xa11ce"),
		To:     common.HexToAddress("0xb0b"),
		Amount: uint256.NewInt(1_000_000),
	}
	data := call.Encode()
	require.Len(t, data, 100)

	// the amount word sits where the contract reads it
	require.Equal(t, uint64(1_000_000), new(uint256.Int).SetBytes(data[0x44:0x64]).Uint64())
	require.Equal(t, call.To, common.BytesToAddress(data[0x24:0x44]))

	got, err := DecodeTransferDomainCall(data)
	require.NoError(t, err)
	require.Equal(t, call.From, got.From)
	require.Equal(t, call.To, got.To)
	require.Equal(t, call.Amount.Uint64(), got.Amount.Uint64())

	_, err = DecodeTransferDomainCall(data[:99])
	require.ErrorIs(t, err, ErrInvalidCallData)
}

func TestTransferCall(t *testing.T) {
	to := common.HexToAddress("0xb0b")
	data := EncodeTransfer(to, uint256.NewInt(77))
	gotTo, amount, err := DecodeTransfer(data)
	require.NoError(t, err)
	require.Equal(t, to, gotTo)
	require.Equal(t, uint64(77), amount.Uint64())

	bad := append([]byte{}, data...)
	bad[0] ^= 0xff
	_, _, err = DecodeTransfer(bad)
	require.ErrorIs(t, err, ErrInvalidCallData)

	_, _, err = DecodeTransfer(EncodeBalanceOf(to))
	require.ErrorIs(t, err, ErrInvalidCallData)
}

func TestStringDiffs(t *testing.T) {
	short := StringDiffs(NameSlot, "Bitcoin")
	require.Len(t, short, 1)
	require.Equal(t, common.BigToHash(common.Big3), short[0].Key)
	require.Equal(t, []byte("Bitcoin"), short[0].Value[:7])
	require.Equal(t, byte(14), short[0].Value[31])

	long := StringDiffs(SymbolSlot, "a token name that is forty bytes long!!!")
	require.Len(t, long, 3)
	require.Equal(t, uint64(81), new(uint256.Int).SetBytes(long[0].Value[:]).Uint64())
	base := crypto.Keccak256Hash(common.BigToHash(uint256.NewInt(SymbolSlot).ToBig()).Bytes())
	require.Equal(t, base, long[1].Key)
	require.Equal(t, []byte("a token name that is forty bytes"), long[1].Value[:])

	require.Len(t, DeployDiffs("Bitcoin", "BTC"), 2)
}

func TestIntrinsicsDiffs(t *testing.T) {
	diffs := IntrinsicsDiffs(5, 1200, 6)
	require.Len(t, diffs, 3)
	require.Equal(t, EVMHeightSlot, diffs[2].Key)
	require.Equal(t, uint64(6), new(uint256.Int).SetBytes(diffs[2].Value[:]).Uint64())
	require.Equal(t, BalanceSlot(common.HexToAddress("0x01")), crypto.MappingSlot(common.HexToAddress("0x01"), 0))
}
