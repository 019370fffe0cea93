package interp

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/procflow/procflow/ir"
)

// An Interpreter advances a whole proc network cycle by cycle. It owns one
// queue per channel and one evaluator per proc; a single Tick call sweeps
// the procs to a fixed point, so concurrency is simulated by re-evaluation,
// not by real parallelism. A proc that stays blocked keeps its partial
// cycle in its evaluator's effect cache and finishes it during a later
// call, once upstream procs have produced the data it waits for.
type Interpreter struct {
	pkg    *ir.Package
	queues *QueueManager

	evaluators []*ProcEvaluator
	sweepOrder []int

	tickCount uint64
}

// A Builder configures and creates an Interpreter.
type Builder struct {
	pkg             *ir.Package
	sources         []Queue
	defaultCapacity int
	sweepOrder      []int
}

// MakeBuilder creates a Builder with default options: unbounded internal
// queues and package proc order for sweeps.
func MakeBuilder() Builder {
	return Builder{}
}

// WithPackage sets the package to interpret.
func (b Builder) WithPackage(pkg *ir.Package) Builder {
	b.pkg = pkg
	return b
}

// WithInputSource binds an external input source to its receive-only
// channel. May be called once per channel.
func (b Builder) WithInputSource(src Queue) Builder {
	b.sources = append(b.sources, src)
	return b
}

// WithDefaultCapacity bounds every internal and send-only queue. Zero means
// unbounded.
func (b Builder) WithDefaultCapacity(capacity int) Builder {
	b.defaultCapacity = capacity
	return b
}

// WithSweepOrder overrides the order procs are visited within a sweep. The
// order must be a permutation of the proc indices. Final queue contents and
// states do not depend on it; tests use this to prove that.
func (b Builder) WithSweepOrder(order []int) Builder {
	b.sweepOrder = append([]int(nil), order...)
	return b
}

// Build validates the configuration and creates the interpreter.
func (b Builder) Build() (*Interpreter, error) {
	if b.pkg == nil {
		return nil, errors.New("interpreter needs a package")
	}

	if err := validateChannelEndpoints(b.pkg); err != nil {
		return nil, err
	}

	queues, err := b.buildQueues()
	if err != nil {
		return nil, err
	}

	it := &Interpreter{
		pkg:    b.pkg,
		queues: queues,
	}

	for _, proc := range b.pkg.Procs() {
		it.evaluators = append(it.evaluators, NewProcEvaluator(proc, queues))
	}

	it.sweepOrder, err = b.resolveSweepOrder(len(it.evaluators))
	if err != nil {
		return nil, err
	}

	return it, nil
}

// Create builds an interpreter for the package with the given input
// sources, one per receive-only channel.
func Create(pkg *ir.Package, sources []Queue) (*Interpreter, error) {
	b := MakeBuilder().WithPackage(pkg)
	for _, src := range sources {
		b = b.WithInputSource(src)
	}

	return b.Build()
}

func (b Builder) buildQueues() (*QueueManager, error) {
	bound := make(map[int64]Queue)
	for _, src := range b.sources {
		ch := src.Channel()
		if ch == nil {
			return nil, errors.New("input source is not bound to a channel")
		}
		if ch.Kind() != ir.ReceiveOnly {
			return nil, errors.Errorf(
				"input source bound to %s channel %q, want receive-only",
				ch.Kind(), ch.Name())
		}
		if _, dup := bound[ch.ID()]; dup {
			return nil, errors.Errorf(
				"channel %q has more than one input source", ch.Name())
		}
		bound[ch.ID()] = src
	}

	queues := newQueueManager()

	for _, ch := range b.pkg.Channels() {
		if ch.Kind() == ir.ReceiveOnly {
			src, ok := bound[ch.ID()]
			if !ok {
				return nil, errors.Errorf(
					"receive-only channel %q has no input source", ch.Name())
			}
			queues.add(src)
			delete(bound, ch.ID())
			continue
		}

		queues.add(NewChannelQueue(ch, b.defaultCapacity))
	}

	for _, src := range bound {
		return nil, errors.Errorf(
			"input source channel %q is not part of the package",
			src.Channel().Name())
	}

	return queues, nil
}

func (b Builder) resolveSweepOrder(numProcs int) ([]int, error) {
	if b.sweepOrder == nil {
		order := make([]int, numProcs)
		for i := range order {
			order[i] = i
		}
		return order, nil
	}

	if len(b.sweepOrder) != numProcs {
		return nil, errors.Errorf(
			"sweep order has %d entries for %d procs",
			len(b.sweepOrder), numProcs)
	}

	seen := make(map[int]bool)
	for _, i := range b.sweepOrder {
		if i < 0 || i >= numProcs || seen[i] {
			return nil, errors.Errorf("sweep order is not a permutation")
		}
		seen[i] = true
	}

	return b.sweepOrder, nil
}

// validateChannelEndpoints enforces the single-producer/single-consumer
// structure all ordering guarantees rest on.
func validateChannelEndpoints(pkg *ir.Package) error {
	senders := make(map[int64]map[string]bool)
	receivers := make(map[int64]map[string]bool)

	record := func(m map[int64]map[string]bool, ch *ir.Channel, proc string) {
		if m[ch.ID()] == nil {
			m[ch.ID()] = make(map[string]bool)
		}
		m[ch.ID()][proc] = true
	}

	for _, proc := range pkg.Procs() {
		for _, n := range proc.Nodes() {
			switch n.Op() {
			case ir.OpSend, ir.OpSendIf:
				record(senders, n.Channel(), proc.Name())
			case ir.OpReceive, ir.OpReceiveIf:
				record(receivers, n.Channel(), proc.Name())
			}
		}
	}

	for _, ch := range pkg.Channels() {
		if len(senders[ch.ID()]) > 1 {
			return errors.Errorf("channel %q has %d sending procs, want 1",
				ch.Name(), len(senders[ch.ID()]))
		}
		if len(receivers[ch.ID()]) > 1 {
			return errors.Errorf("channel %q has %d receiving procs, want 1",
				ch.Name(), len(receivers[ch.ID()]))
		}

		if ch.Kind() == ir.SendReceive {
			if len(senders[ch.ID()]) != 1 || len(receivers[ch.ID()]) != 1 {
				return errors.Errorf(
					"internal channel %q needs exactly one sender and one receiver",
					ch.Name())
			}
		}
	}

	return nil
}

// Package returns the interpreted package.
func (it *Interpreter) Package() *ir.Package {
	return it.pkg
}

// QueueManager returns the network's queues.
func (it *Interpreter) QueueManager() *QueueManager {
	return it.queues
}

// Queue returns the queue bound to a channel.
func (it *Interpreter) Queue(ch *ir.Channel) Queue {
	return it.queues.GetQueue(ch)
}

// ProcState returns a proc's current state value.
func (it *Interpreter) ProcState(name string) (ir.Value, bool) {
	for _, e := range it.evaluators {
		if e.Proc().Name() == name {
			return e.State(), true
		}
	}

	return ir.Value{}, false
}

// TickCount returns the number of cycles the network has been advanced.
func (it *Interpreter) TickCount() uint64 {
	return it.tickCount
}

// Tick advances the network by one cycle, or reports deadlock. Procs are
// swept repeatedly; each sweep evaluates the procs that have not completed
// a cycle during this call and removes the ones that do. A blocked proc
// that performed a new queue effect counts as progress too, since that
// effect may unblock another proc on the next sweep.
//
// A proc that stays blocked keeps its partial work in its effect cache and
// finishes that cycle during a later call, once data arrives, so a Tick
// that made progress returns nil even with procs left blocked. Only a call
// during which nothing progresses at all returns *DeadlockError; the
// queues then stay exactly as the last completed operation left them, and
// a retry can succeed only if the environment intervened (for example by
// binding a generator-backed source that yields more data).
func (it *Interpreter) Tick() error {
	pending := make([]*ProcEvaluator, 0, len(it.evaluators))
	for _, i := range it.sweepOrder {
		pending = append(pending, it.evaluators[i])
	}

	progressed := false

	for len(pending) > 0 {
		stillPending := pending[:0]
		blocked := make(map[string]bool)
		sweepProgressed := false

		for _, ev := range pending {
			res := ev.Evaluate()

			if res.Progressed {
				sweepProgressed = true
			}

			if res.Status == Completed {
				ev.CommitState(res.NextState)
				continue
			}

			blocked[res.BlockedOn.Name()] = true
			stillPending = append(stillPending, ev)
		}

		pending = stillPending

		if !sweepProgressed {
			if !progressed {
				return it.deadlock(blocked)
			}
			break
		}

		progressed = true
	}

	it.tickCount++

	return nil
}

func (it *Interpreter) deadlock(blocked map[string]bool) error {
	names := make([]string, 0, len(blocked))
	for name := range blocked {
		names = append(names, name)
	}
	sort.Strings(names)

	return &DeadlockError{Channels: names}
}
