package interp

import (
	"github.com/pkg/errors"

	"github.com/procflow/procflow/ir"
)

// HookPosQueueEnqueue marks when a value is enqueued onto a queue.
var HookPosQueueEnqueue = &HookPos{Name: "Queue Enqueue"}

// HookPosQueueDequeue marks when a value is dequeued from a queue.
var HookPosQueueDequeue = &HookPos{Name: "Queue Dequeue"}

// A Queue stores the pending values of one channel in FIFO order. No
// operation blocks internally; a caller that cannot complete an operation
// observes a typed error and decides what suspension means.
type Queue interface {
	Hookable

	// Name returns the name of the bound channel.
	Name() string

	// Channel returns the bound channel.
	Channel() *ir.Channel

	// Enqueue appends a value at the back.
	Enqueue(v ir.Value) error

	// Dequeue removes and returns the front value.
	Dequeue() (ir.Value, error)

	// Peek returns the front value without removing it.
	Peek() (ir.Value, error)

	// Size returns the number of held values.
	Size() int

	// IsEmpty reports whether no value is held.
	IsEmpty() bool

	// Capacity returns the maximum size, or 0 for unbounded queues.
	Capacity() int
}

// NewChannelQueue creates a FIFO queue for the given channel. A capacity of
// 0 means unbounded.
func NewChannelQueue(ch *ir.Channel, capacity int) Queue {
	return &channelQueue{
		channel:  ch,
		capacity: capacity,
	}
}

type channelQueue struct {
	HookableBase

	channel  *ir.Channel
	capacity int
	values   []ir.Value
}

func (q *channelQueue) Name() string {
	return q.channel.Name()
}

func (q *channelQueue) Channel() *ir.Channel {
	return q.channel
}

func (q *channelQueue) Enqueue(v ir.Value) error {
	if q.capacity > 0 && len(q.values) >= q.capacity {
		return errors.Wrapf(ErrFull, "channel %q", q.channel.Name())
	}

	q.values = append(q.values, v.Clone())

	if q.NumHooks() > 0 {
		q.InvokeHook(HookCtx{
			Domain: q,
			Pos:    HookPosQueueEnqueue,
			Item:   v,
		})
	}

	return nil
}

func (q *channelQueue) Dequeue() (ir.Value, error) {
	if len(q.values) == 0 {
		return ir.Value{}, errors.Wrapf(ErrEmpty, "channel %q",
			q.channel.Name())
	}

	v := q.values[0]
	q.values = q.values[1:]

	if q.NumHooks() > 0 {
		q.InvokeHook(HookCtx{
			Domain: q,
			Pos:    HookPosQueueDequeue,
			Item:   v,
		})
	}

	return v, nil
}

func (q *channelQueue) Peek() (ir.Value, error) {
	if len(q.values) == 0 {
		return ir.Value{}, errors.Wrapf(ErrEmpty, "channel %q",
			q.channel.Name())
	}

	return q.values[0], nil
}

func (q *channelQueue) Size() int {
	return len(q.values)
}

func (q *channelQueue) IsEmpty() bool {
	return len(q.values) == 0
}

func (q *channelQueue) Capacity() int {
	return q.capacity
}
