package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestKeccak256EmptyString(t *testing.T) {
	got := hex.EncodeToString(Keccak256([]byte{}))
	require.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", got)
}

func TestKeccak256MultipleInputs(t *testing.T) {
	require.Equal(t, Keccak256([]byte("helloworld")), Keccak256([]byte("hello"), []byte("world")))
}

func TestEventTopicTransfer(t *testing.T) {
	want := common.HexToHash("ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	require.Equal(t, want, EventTopic("Transfer(address,address,uint256)"))
}

func TestSelector(t *testing.T) {
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, Selector("transfer(address,uint256)"))
	require.Equal(t, [4]byte{0x70, 0xa0, 0x82, 0x31}, Selector("balanceOf(address)"))
}

func TestMappingSlot(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	var buf [64]byte
	buf[31] = 1
	require.Equal(t, Keccak256Hash(buf[:]), MappingSlot(addr, 0))
	require.NotEqual(t, MappingSlot(addr, 0), MappingSlot(addr, 1))
}
