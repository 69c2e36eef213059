// Package filters fans out chain events to filter subscribers.
package filters

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/DeFiCh/ain-sub000/log"
)

// pendingEvents bounds the events waiting for slow subscribers.
const pendingEvents = 64

var droppedEventsMeter = metrics.NewRegisteredMeter("filters/blocks/dropped", nil)

// NewBlockEvent is posted after a block became the latest block.
type NewBlockEvent struct {
	Hash     common.Hash
	Number   uint64
	TxHashes []common.Hash
}

// Hub delivers new-block events to subscribers. Events are queued and sent
// from the hub's own goroutine, so a stalled subscriber delays delivery but
// never the notifier. Once the queue is full further events are dropped.
type Hub struct {
	blockFeed event.Feed
	scope     event.SubscriptionScope
	events    chan NewBlockEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	log       *log.Logger
}

// NewHub creates a hub without subscribers and starts its delivery loop.
func NewHub() *Hub {
	h := &Hub{
		events: make(chan NewBlockEvent, pendingEvents),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		log:    log.Module("filters"),
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case ev := <-h.events:
			n := h.blockFeed.Send(ev)
			h.log.Trace("New block delivered", "number", ev.Number, "hash", ev.Hash, "subscribers", n)
		case <-h.quit:
			return
		}
	}
}

// SubscribeNewBlocks registers ch for new-block events.
func (h *Hub) SubscribeNewBlocks(ch chan<- NewBlockEvent) event.Subscription {
	return h.scope.Track(h.blockFeed.Subscribe(ch))
}

// NotifyNewBlock queues a new-block event without blocking. It reports
// false when the event was dropped because the hub is closed or full.
func (h *Hub) NotifyNewBlock(hash common.Hash, number uint64, txHashes []common.Hash) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	select {
	case h.events <- NewBlockEvent{Hash: hash, Number: number, TxHashes: txHashes}:
		return true
	default:
		droppedEventsMeter.Mark(1)
		h.log.Warn("New block event dropped", "number", number, "hash", hash)
		return false
	}
}

// Close unsubscribes every subscriber and stops the delivery loop. It is
// safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.quit)
		// unblocks a Send stuck on a stalled subscriber
		h.scope.Close()
		<-h.done
	})
}
