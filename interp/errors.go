package interp

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrEmpty reports a dequeue from a queue that currently holds no value.
// Transient: more values may arrive in a later sweep or tick.
var ErrEmpty = errors.New("channel queue is empty")

// ErrExhausted reports a dequeue from an input source whose sequence has
// been fully consumed. Permanent: the condition never resolves.
var ErrExhausted = errors.New("input source is exhausted")

// ErrFull reports an enqueue onto a bounded queue that is at capacity.
var ErrFull = errors.New("channel queue is full")

// ErrReadOnly reports an enqueue onto an input source.
var ErrReadOnly = errors.New("input source is read-only")

// isBlocking reports whether a queue error suspends the proc for the rest
// of the tick. Exhaustion blocks like emptiness; it surfaces as deadlock
// once nothing else can progress.
func isBlocking(err error) bool {
	switch errors.Cause(err) {
	case ErrEmpty, ErrExhausted, ErrFull:
		return true
	default:
		return false
	}
}

// A DeadlockError is returned by Tick when a full sweep over the pending
// procs completes none of them. It names every channel some pending proc is
// blocked on, sorted for determinism.
type DeadlockError struct {
	// Channels holds the blocked channel names in sorted order.
	Channels []string
}

func (e *DeadlockError) Error() string {
	return "proc network is deadlocked, blocked channels: " +
		strings.Join(e.Channels, ", ")
}
