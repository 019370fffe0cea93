package interp

import (
	"log"

	"github.com/procflow/procflow/ir"
)

// A QueueManager owns the queue of every channel in one network. Queues are
// created when the interpreter is built and live for its whole lifetime.
type QueueManager struct {
	byID  map[int64]Queue
	order []Queue
}

func newQueueManager() *QueueManager {
	return &QueueManager{byID: make(map[int64]Queue)}
}

func (m *QueueManager) add(q Queue) {
	m.byID[q.Channel().ID()] = q
	m.order = append(m.order, q)
}

// GetQueue returns the queue bound to the channel.
func (m *QueueManager) GetQueue(ch *ir.Channel) Queue {
	q, found := m.byID[ch.ID()]
	if !found {
		log.Panicf("no queue for channel %q", ch.Name())
	}

	return q
}

// Queues returns all queues in channel declaration order.
func (m *QueueManager) Queues() []Queue {
	qs := make([]Queue, len(m.order))
	copy(qs, m.order)
	return qs
}
