// Package contracts holds the system contracts of the side ledger: their
// runtime bytecode, reserved addresses, storage layout and the call-data
// codecs the assembly pipeline uses to interpret bridge transactions.
package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/state"
	"github.com/DeFiCh/ain-sub000/crypto"
	"github.com/DeFiCh/ain-sub000/params"
)

// Contract is a system contract's runtime code and where it lives.
type Contract struct {
	Name     string
	Address  common.Address
	Code     []byte
	CodeHash common.Hash
}

func newContract(name string, addr common.Address, code []byte) Contract {
	return Contract{Name: name, Address: addr, Code: code, CodeHash: crypto.Keccak256Hash(code)}
}

// Runtime code of the system contracts.
var (
	// intrinsicsCode returns SLOAD(calldata[0:32]).
	intrinsicsCode = common.FromHex("0x6000355460005260206000f3")

	// transferDomainCode decodes (from, to, amount) after the selector. It
	// forwards amount to `to` unless `to` is the contract itself, reverts if
	// that call fails, and logs the three words.
	transferDomainCode = common.FromHex("0x604435602435803014601c57600060006000600085855af115602c575b50506060600460003760606000a0005b600080fd")

	// dst20Code implements balanceOf(address) and transfer(address,uint256)
	// over a balances mapping at slot 0 and emits the ERC-20 Transfer event.
	dst20Code = common.FromHex("0x60003560e01c8063a9059cbb146037576370a0823114601d57600080fd5b600435600052600060205260406000205460005260206000f35b503360005260006020526040600020805460243580821060a257808203835591505060043580600052604060002080548301905581600052337fddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef60206000a350600160005260206000f35b600080fd")
)

var (
	Intrinsics     = newContract("intrinsics", params.IntrinsicsAddress, intrinsicsCode)
	TransferDomain = newContract("transferdomain", params.TransferDomainAddress, transferDomainCode)
)

// DST20 returns the token contract mirroring native token tokenID.
func DST20(tokenID uint64) Contract {
	return newContract("dst20", params.DST20Address(tokenID), dst20Code)
}

// DST20CodeHash is the code hash shared by every token contract.
var DST20CodeHash = crypto.Keccak256Hash(dst20Code)

// Intrinsics storage slots.
var (
	CounterSlot      = common.BigToHash(common.Big0)
	NativeHeightSlot = common.BigToHash(common.Big1)
	EVMHeightSlot    = common.BigToHash(common.Big2)
)

// IntrinsicsDiffs returns the storage writes made at the start of every
// non-genesis block.
func IntrinsicsDiffs(counter, nativeHeight, evmHeight uint64) []state.StorageDiff {
	return []state.StorageDiff{
		{Key: CounterSlot, Value: uint64Word(counter)},
		{Key: NativeHeightSlot, Value: uint64Word(nativeHeight)},
		{Key: EVMHeightSlot, Value: uint64Word(evmHeight)},
	}
}

func uint64Word(v uint64) common.Hash {
	return uint256.NewInt(v).Bytes32()
}

// IsSystemAddress reports whether addr is reserved for a system contract.
func IsSystemAddress(addr common.Address) bool {
	return addr == params.IntrinsicsAddress || addr == params.TransferDomainAddress ||
		addr[0] == params.DST20AddressPrefix && common.BytesToAddress(addr[1:12]) == (common.Address{})
}

// DeployTx returns the synthetic, unsigned creation transaction recorded in
// the block that installs c. nonce distinguishes deployments of the same
// code.
func (c Contract) DeployTx(nonce uint64) *gethtypes.Transaction {
	return gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int),
		Value:    new(big.Int),
		Data:     common.CopyBytes(c.Code),
	})
}
