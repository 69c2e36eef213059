package core

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/DeFiCh/ain-sub000/core/state"
)

// GenesisAccount is an account preallocated in the genesis block.
type GenesisAccount struct {
	Balance *big.Int
	Code    []byte
	Nonce   uint64
	Storage map[common.Hash]common.Hash
}

// GenesisAlloc maps preallocated addresses to their accounts.
type GenesisAlloc map[common.Address]GenesisAccount

// apply writes the allocation into b in address order.
func (ga GenesisAlloc) apply(b *state.Backend) error {
	addrs := make([]common.Address, 0, len(ga))
	for addr := range ga {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })

	for _, addr := range addrs {
		account := ga[addr]
		basic := &state.Basic{Nonce: account.Nonce, Balance: new(uint256.Int)}
		if account.Balance != nil {
			basic.Balance.SetFromBig(account.Balance)
		}
		diffs := make([]state.StorageDiff, 0, len(account.Storage))
		for k, v := range account.Storage {
			diffs = append(diffs, state.StorageDiff{Key: k, Value: v})
		}
		sort.Slice(diffs, func(i, j int) bool { return diffs[i].Key.Cmp(diffs[j].Key) < 0 })
		if _, err := b.Apply(addr, basic, account.Code, diffs, true); err != nil {
			return err
		}
	}
	return nil
}
