package core

import "github.com/ethereum/go-ethereum/metrics"

var (
	assembleTimer    = metrics.NewRegisteredTimer("core/assemble", nil)
	commitTimer      = metrics.NewRegisteredTimer("core/commit", nil)
	blockTxsMeter    = metrics.NewRegisteredMeter("core/block/txs", nil)
	failedTxsMeter   = metrics.NewRegisteredMeter("core/block/failed", nil)
	rejectedTxsMeter = metrics.NewRegisteredMeter("core/txs/rejected", nil)
	headGauge        = metrics.NewRegisteredGauge("core/head", nil)
)
