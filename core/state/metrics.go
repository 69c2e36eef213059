package state

import "github.com/ethereum/go-ethereum/metrics"

var (
	accountReadMeter   = metrics.NewRegisteredMeter("state/account/reads", nil)
	accountUpdateMeter = metrics.NewRegisteredMeter("state/account/updates", nil)
	accountDeleteMeter = metrics.NewRegisteredMeter("state/account/deletes", nil)
	storageUpdateMeter = metrics.NewRegisteredMeter("state/storage/updates", nil)
	codeWriteMeter     = metrics.NewRegisteredMeter("state/code/writes", nil)
	trieCommitTimer    = metrics.NewRegisteredTimer("state/trie/commit", nil)
)
