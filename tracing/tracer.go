// Package tracing captures per-channel stimulus/response activity into a
// trace database, one row per enqueue or dequeue.
package tracing

import (
	"github.com/procflow/procflow/datarecording"
	"github.com/procflow/procflow/interp"
	"github.com/procflow/procflow/ir"
)

// A ChannelEvent is one recorded queue operation.
type ChannelEvent struct {
	Tick      uint64
	Channel   string
	Direction string
	Value     string
}

// A ChannelTracer records every queue operation it observes. Attach it to
// queues with AcceptHook, or to a whole interpreter with Attach.
type ChannelTracer struct {
	recorder   datarecording.DataRecorder
	tickTeller interp.TickTeller
}

// NewChannelTracer creates a tracer writing channel_trace rows through the
// recorder.
func NewChannelTracer(
	recorder datarecording.DataRecorder,
	tickTeller interp.TickTeller,
) *ChannelTracer {
	recorder.CreateTable("channel_trace", ChannelEvent{})

	return &ChannelTracer{
		recorder:   recorder,
		tickTeller: tickTeller,
	}
}

// Func records one queue operation.
func (t *ChannelTracer) Func(ctx interp.HookCtx) {
	direction := "enqueue"
	if ctx.Pos == interp.HookPosQueueDequeue {
		direction = "dequeue"
	}

	queue := ctx.Domain.(interp.Queue)
	value := ctx.Item.(ir.Value)

	t.recorder.InsertData("channel_trace", ChannelEvent{
		Tick:      t.tickTeller.TickCount(),
		Channel:   queue.Name(),
		Direction: direction,
		Value:     value.String(),
	})
}

// Attach hooks the tracer onto every queue of the interpreter.
func (t *ChannelTracer) Attach(it *interp.Interpreter) {
	for _, q := range it.QueueManager().Queues() {
		q.AcceptHook(t)
	}
}
