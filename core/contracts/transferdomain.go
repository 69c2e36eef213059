package contracts

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/crypto"
)

var ErrInvalidCallData = errors.New("contracts: malformed call data")

// TransferDomainSelector prefixes transfer-domain call data. The contract
// does not dispatch on it.
var TransferDomainSelector = crypto.Selector("transfer(address,address,uint256)")

// TransferDomainCall is the decoded call data of a transfer-domain
// transaction.
type TransferDomainCall struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Encode builds the call data.
func (c *TransferDomainCall) Encode() []byte {
	data := make([]byte, 4+96)
	copy(data, TransferDomainSelector[:])
	copy(data[4+12:36], c.From.Bytes())
	copy(data[36+12:68], c.To.Bytes())
	c.Amount.WriteToSlice(data[68:100])
	return data
}

// DecodeTransferDomainCall parses transfer-domain call data.
func DecodeTransferDomainCall(data []byte) (*TransferDomainCall, error) {
	if len(data) < 4+96 {
		return nil, ErrInvalidCallData
	}
	return &TransferDomainCall{
		From:   common.BytesToAddress(data[4:36]),
		To:     common.BytesToAddress(data[36:68]),
		Amount: new(uint256.Int).SetBytes(data[68:100]),
	}, nil
}
