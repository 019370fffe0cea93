package interp

import (
	"log"

	"github.com/procflow/procflow/ir"
)

// Status is a proc's per-tick evaluation outcome.
type Status int

const (
	// Completed means the whole operation sequence executed and a next
	// state is available.
	Completed Status = iota

	// Blocked means a send or receive could not complete; the proc must be
	// re-evaluated once new data may satisfy it.
	Blocked
)

// A Result reports one evaluation attempt.
type Result struct {
	Status Status

	// NextState holds the state for the following tick. Valid when
	// Status is Completed.
	NextState ir.Value

	// BlockedOn names the channel whose queue operation could not
	// complete. Valid when Status is Blocked.
	BlockedOn *ir.Channel

	// Progressed reports whether this attempt performed any new queue
	// effect. A blocked proc that still enqueued or dequeued something
	// may have unblocked another proc, so the interpreter must keep
	// sweeping.
	Progressed bool
}

// A ProcEvaluator executes one proc's operation sequence for the current
// tick. A blocked proc is re-run from the top of its sequence on the next
// sweep: pure operations are simply recomputed, while queue operations that
// already happened this tick are replayed from a per-tick effect cache so
// they are never performed twice.
type ProcEvaluator struct {
	proc   *ir.Proc
	queues *QueueManager

	state   ir.Value
	effects map[int]ir.Value
}

// NewProcEvaluator creates an evaluator with the proc's declared initial
// state.
func NewProcEvaluator(proc *ir.Proc, queues *QueueManager) *ProcEvaluator {
	return &ProcEvaluator{
		proc:    proc,
		queues:  queues,
		state:   proc.InitValue(),
		effects: make(map[int]ir.Value),
	}
}

// Proc returns the proc being evaluated.
func (e *ProcEvaluator) Proc() *ir.Proc {
	return e.proc
}

// State returns the proc's state as of the start of the current tick.
func (e *ProcEvaluator) State() ir.Value {
	return e.state.Clone()
}

// CommitState atomically replaces the proc state. Called by the interpreter
// once the proc's cycle completes, never while it is blocked mid-cycle.
func (e *ProcEvaluator) CommitState(next ir.Value) {
	e.state = next.Clone()
}

// Evaluate runs the operation sequence once, from the top, stopping at the
// first queue operation that cannot complete.
func (e *ProcEvaluator) Evaluate() Result {
	effectsBefore := len(e.effects)
	values := make([]ir.Value, e.proc.NumNodes())

	for _, n := range e.proc.Nodes() {
		v, blockedOn := e.evalNode(n, values)
		if blockedOn != nil {
			return Result{
				Status:     Blocked,
				BlockedOn:  blockedOn,
				Progressed: len(e.effects) > effectsBefore,
			}
		}

		values[n.ID()] = v
	}

	next := values[e.proc.NextState().ID()].Clone()

	// The tick is done for this proc; the next attempt belongs to a new
	// tick with a fresh effect cache. The token result is discarded, it
	// only ordered the queue operations above.
	e.effects = make(map[int]ir.Value)

	return Result{Status: Completed, NextState: next, Progressed: true}
}

// evalNode computes one node. A non-nil channel return means the node
// blocked and the attempt must be abandoned.
func (e *ProcEvaluator) evalNode(
	n *ir.Node,
	values []ir.Value,
) (ir.Value, *ir.Channel) {
	operands := n.Operands()
	operand := func(i int) ir.Value {
		return values[operands[i].ID()]
	}

	switch n.Op() {
	case ir.OpTokenParam:
		return ir.TokenValue(), nil
	case ir.OpStateParam:
		return e.state.Clone(), nil
	case ir.OpLiteral:
		return n.LiteralValue(), nil
	case ir.OpAdd:
		return ir.BitsValue(operand(0).Bits().Add(operand(1).Bits())), nil
	case ir.OpSub:
		return ir.BitsValue(operand(0).Bits().Sub(operand(1).Bits())), nil
	case ir.OpAnd:
		return ir.BitsValue(operand(0).Bits().And(operand(1).Bits())), nil
	case ir.OpOr:
		return ir.BitsValue(operand(0).Bits().Or(operand(1).Bits())), nil
	case ir.OpXor:
		return ir.BitsValue(operand(0).Bits().Xor(operand(1).Bits())), nil
	case ir.OpNot:
		return ir.BitsValue(operand(0).Bits().Not()), nil
	case ir.OpEq:
		return ir.BitsValue(operand(0).Bits().Eq(operand(1).Bits())), nil
	case ir.OpNe:
		return ir.BitsValue(operand(0).Bits().Ne(operand(1).Bits())), nil
	case ir.OpULt:
		return ir.BitsValue(operand(0).Bits().ULt(operand(1).Bits())), nil
	case ir.OpUGt:
		return ir.BitsValue(operand(0).Bits().UGt(operand(1).Bits())), nil
	case ir.OpBitSlice:
		start, width := n.SliceBounds()
		return ir.BitsValue(operand(0).Bits().Slice(start, width)), nil
	case ir.OpTuple:
		return ir.TupleValue(e.operandValues(n, values, 0)...), nil
	case ir.OpArray:
		return ir.ArrayValue(e.operandValues(n, values, 0)...), nil
	case ir.OpTupleIndex:
		return operand(0).Element(n.TupleIndex()), nil
	case ir.OpArrayIndex:
		return arrayIndex(operand(0), operand(1)), nil
	case ir.OpSelect:
		return selectCase(operand(0), e.operandValues(n, values, 1)), nil
	case ir.OpSend:
		return e.evalSend(n, values, false)
	case ir.OpSendIf:
		return e.evalSend(n, values, true)
	case ir.OpReceive:
		return e.evalReceive(n, values, false)
	case ir.OpReceiveIf:
		return e.evalReceive(n, values, true)
	}

	log.Panicf("proc %q: unknown op %s", e.proc.Name(), n.Op())
	return ir.Value{}, nil
}

func (e *ProcEvaluator) operandValues(
	n *ir.Node,
	values []ir.Value,
	from int,
) []ir.Value {
	operands := n.Operands()
	vs := make([]ir.Value, 0, len(operands)-from)
	for _, op := range operands[from:] {
		vs = append(vs, values[op.ID()])
	}

	return vs
}

// arrayIndex clamps an out-of-range index to the last element. The clamp
// compares in uint64 space; converting first would wrap indices past 2^63.
func arrayIndex(array, index ir.Value) ir.Value {
	u := index.Bits().Uint64()
	if u >= uint64(array.Len()) {
		return array.Element(array.Len() - 1)
	}

	return array.Element(int(u))
}

// selectCase clamps an out-of-range selector to the last case. Same uint64
// comparison as arrayIndex.
func selectCase(selector ir.Value, cases []ir.Value) ir.Value {
	u := selector.Bits().Uint64()
	if u >= uint64(len(cases)) {
		return cases[len(cases)-1]
	}

	return cases[int(u)]
}

// evalSend performs a send or send-if. The enqueue happens at most once per
// tick: a re-run after a later block point finds the effect cached.
func (e *ProcEvaluator) evalSend(
	n *ir.Node,
	values []ir.Value,
	conditional bool,
) (ir.Value, *ir.Channel) {
	if v, done := e.effects[n.ID()]; done {
		return v, nil
	}

	dataFrom := 1
	if conditional {
		dataFrom = 2

		pred := values[n.Operands()[1].ID()]
		if pred.Bits().IsZero() {
			e.effects[n.ID()] = ir.TokenValue()
			return ir.TokenValue(), nil
		}
	}

	payload := ir.TupleValue(e.operandValues(n, values, dataFrom)...)

	queue := e.queues.GetQueue(n.Channel())
	if err := queue.Enqueue(payload); err != nil {
		if isBlocking(err) {
			return ir.Value{}, n.Channel()
		}
		log.Panicf("proc %q: send on %q: %v",
			e.proc.Name(), n.Channel().Name(), err)
	}

	e.effects[n.ID()] = ir.TokenValue()

	return ir.TokenValue(), nil
}

// evalReceive performs a receive or receive-if. The result is a tuple of
// the advanced token followed by the payload fields. A dequeue happens at
// most once per tick.
func (e *ProcEvaluator) evalReceive(
	n *ir.Node,
	values []ir.Value,
	conditional bool,
) (ir.Value, *ir.Channel) {
	if v, done := e.effects[n.ID()]; done {
		return v, nil
	}

	if conditional {
		pred := values[n.Operands()[1].ID()]
		if pred.Bits().IsZero() {
			// No dequeue; the payload is zero-valued. Pure, so no
			// caching is needed either.
			elems := []ir.Value{ir.TokenValue()}
			for _, f := range n.Channel().Fields() {
				elems = append(elems, f.Type.ZeroValue())
			}
			return ir.TupleValue(elems...), nil
		}
	}

	queue := e.queues.GetQueue(n.Channel())

	payload, err := queue.Dequeue()
	if err != nil {
		if isBlocking(err) {
			return ir.Value{}, n.Channel()
		}
		log.Panicf("proc %q: receive on %q: %v",
			e.proc.Name(), n.Channel().Name(), err)
	}

	elems := append([]ir.Value{ir.TokenValue()}, payload.Elements()...)
	result := ir.TupleValue(elems...)

	e.effects[n.ID()] = result

	return result, nil
}
