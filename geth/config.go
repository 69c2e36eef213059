package geth

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// DefaultFork is the rule set the ledger runs under unless configured
// otherwise.
const DefaultFork = "Shanghai"

// forkLevel maps fork names to their position in the activation order.
// London is the floor: the fee engine relies on EIP-1559 headers.
var forkLevel = map[string]int{
	"london":   0,
	"merge":    1,
	"paris":    1,
	"shanghai": 2,
}

// ForkSupported reports whether fork names a rule set ChainConfig accepts.
func ForkSupported(fork string) bool {
	_, ok := forkLevel[strings.ToLower(fork)]
	return ok
}

// ChainConfig returns the go-ethereum chain configuration for chainID with
// every fork up to and including fork active from genesis.
func ChainConfig(chainID uint64, fork string) (*params.ChainConfig, error) {
	level, ok := forkLevel[strings.ToLower(fork)]
	if !ok {
		return nil, fmt.Errorf("geth: unsupported fork %q", fork)
	}
	zero := big.NewInt(0)
	c := &params.ChainConfig{
		ChainID:             new(big.Int).SetUint64(chainID),
		HomesteadBlock:      zero,
		EIP150Block:         zero,
		EIP155Block:         zero,
		EIP158Block:         zero,
		ByzantiumBlock:      zero,
		ConstantinopleBlock: zero,
		PetersburgBlock:     zero,
		IstanbulBlock:       zero,
		MuirGlacierBlock:    zero,
		BerlinBlock:         zero,
		LondonBlock:         zero,
		ArrowGlacierBlock:   zero,
		GrayGlacierBlock:    zero,
	}
	if level >= 1 {
		c.MergeNetsplitBlock = zero
		c.TerminalTotalDifficulty = zero
	}
	if level >= 2 {
		ts := uint64(0)
		c.ShanghaiTime = &ts
	}
	return c, nil
}
