package ir

import (
	"github.com/pkg/errors"
)

// BValue is a handle to a node under construction. Builder methods accept
// and return BValues so networks read like straight-line dataflow code.
type BValue struct {
	node *Node
}

// Node returns the underlying node.
func (v BValue) Node() *Node {
	return v.node
}

// A ProcBuilder assembles one proc's operation sequence. Operands must be
// created before the operations that consume them, which keeps the node list
// in evaluation order for free. Errors are accumulated and reported once at
// Build; after the first error all further operations are no-ops.
type ProcBuilder struct {
	pkg  *Package
	proc *Proc
	err  error

	tokenParam BValue
	stateParam BValue
}

// NewProcBuilder starts building a proc with the given name and initial
// state value.
func NewProcBuilder(name string, initValue Value, pkg *Package) *ProcBuilder {
	b := &ProcBuilder{
		pkg: pkg,
		proc: &Proc{
			name:      name,
			initValue: initValue.Clone(),
		},
	}

	b.tokenParam = b.addNode(&Node{op: OpTokenParam})
	b.stateParam = b.addNode(&Node{op: OpStateParam})

	return b
}

func (b *ProcBuilder) addNode(n *Node) BValue {
	if b.err != nil {
		return BValue{}
	}

	n.id = len(b.proc.nodes)
	b.proc.nodes = append(b.proc.nodes, n)

	return BValue{node: n}
}

func (b *ProcBuilder) setErr(err error) BValue {
	if b.err == nil {
		b.err = errors.Wrapf(err, "proc %q", b.proc.name)
	}

	return BValue{}
}

// GetTokenParam returns the proc's token parameter.
func (b *ProcBuilder) GetTokenParam() BValue {
	return b.tokenParam
}

// GetStateParam returns the proc's state parameter.
func (b *ProcBuilder) GetStateParam() BValue {
	return b.stateParam
}

// Literal adds a constant.
func (b *ProcBuilder) Literal(v Value) BValue {
	return b.addNode(&Node{op: OpLiteral, value: v.Clone()})
}

func (b *ProcBuilder) binaryOp(op Op, x, y BValue) BValue {
	if b.err != nil {
		return BValue{}
	}
	if x.node == nil || y.node == nil {
		return b.setErr(errors.Errorf("%s operand is missing", op))
	}

	return b.addNode(&Node{op: op, operands: []*Node{x.node, y.node}})
}

// Add adds a modular addition of two same-width bit-vectors.
func (b *ProcBuilder) Add(x, y BValue) BValue {
	return b.binaryOp(OpAdd, x, y)
}

// Subtract adds a modular subtraction of two same-width bit-vectors.
func (b *ProcBuilder) Subtract(x, y BValue) BValue {
	return b.binaryOp(OpSub, x, y)
}

// And adds a bitwise AND.
func (b *ProcBuilder) And(x, y BValue) BValue {
	return b.binaryOp(OpAnd, x, y)
}

// Or adds a bitwise OR.
func (b *ProcBuilder) Or(x, y BValue) BValue {
	return b.binaryOp(OpOr, x, y)
}

// Xor adds a bitwise XOR.
func (b *ProcBuilder) Xor(x, y BValue) BValue {
	return b.binaryOp(OpXor, x, y)
}

// Eq adds a 1-bit equality comparison.
func (b *ProcBuilder) Eq(x, y BValue) BValue {
	return b.binaryOp(OpEq, x, y)
}

// Ne adds a 1-bit inequality comparison.
func (b *ProcBuilder) Ne(x, y BValue) BValue {
	return b.binaryOp(OpNe, x, y)
}

// ULt adds a 1-bit unsigned less-than comparison.
func (b *ProcBuilder) ULt(x, y BValue) BValue {
	return b.binaryOp(OpULt, x, y)
}

// UGt adds a 1-bit unsigned greater-than comparison.
func (b *ProcBuilder) UGt(x, y BValue) BValue {
	return b.binaryOp(OpUGt, x, y)
}

// Not adds a bitwise complement.
func (b *ProcBuilder) Not(x BValue) BValue {
	if b.err != nil {
		return BValue{}
	}
	if x.node == nil {
		return b.setErr(errors.New("not operand is missing"))
	}

	return b.addNode(&Node{op: OpNot, operands: []*Node{x.node}})
}

// BitSlice adds an extraction of width bits starting at the given
// least-significant position.
func (b *ProcBuilder) BitSlice(x BValue, start, width int) BValue {
	if b.err != nil {
		return BValue{}
	}
	if x.node == nil {
		return b.setErr(errors.New("bit_slice operand is missing"))
	}

	return b.addNode(&Node{
		op:       OpBitSlice,
		operands: []*Node{x.node},
		start:    start,
		width:    width,
	})
}

// Tuple adds a tuple construction.
func (b *ProcBuilder) Tuple(elems ...BValue) BValue {
	if b.err != nil {
		return BValue{}
	}

	nodes := make([]*Node, len(elems))
	for i, e := range elems {
		if e.node == nil {
			return b.setErr(errors.Errorf("tuple element %d is missing", i))
		}
		nodes[i] = e.node
	}

	return b.addNode(&Node{op: OpTuple, operands: nodes})
}

// TupleIndex adds an access to element i of a tuple.
func (b *ProcBuilder) TupleIndex(t BValue, i int) BValue {
	if b.err != nil {
		return BValue{}
	}
	if t.node == nil {
		return b.setErr(errors.New("tuple_index operand is missing"))
	}
	if i < 0 {
		return b.setErr(errors.Errorf("tuple index %d is negative", i))
	}

	return b.addNode(&Node{op: OpTupleIndex, operands: []*Node{t.node}, index: i})
}

// Array adds an array construction.
func (b *ProcBuilder) Array(elems ...BValue) BValue {
	if b.err != nil {
		return BValue{}
	}

	nodes := make([]*Node, len(elems))
	for i, e := range elems {
		if e.node == nil {
			return b.setErr(errors.Errorf("array element %d is missing", i))
		}
		nodes[i] = e.node
	}

	return b.addNode(&Node{op: OpArray, operands: nodes})
}

// ArrayIndex adds an access to the element of an array selected by a
// bit-vector index.
func (b *ProcBuilder) ArrayIndex(a, idx BValue) BValue {
	return b.binaryOp(OpArrayIndex, a, idx)
}

// Select adds a multiplexer: the selector bit-vector picks one of the cases.
func (b *ProcBuilder) Select(selector BValue, cases []BValue) BValue {
	if b.err != nil {
		return BValue{}
	}
	if selector.node == nil {
		return b.setErr(errors.New("select selector is missing"))
	}
	if len(cases) == 0 {
		return b.setErr(errors.New("select needs at least one case"))
	}

	nodes := make([]*Node, 0, len(cases)+1)
	nodes = append(nodes, selector.node)
	for i, c := range cases {
		if c.node == nil {
			return b.setErr(errors.Errorf("select case %d is missing", i))
		}
		nodes = append(nodes, c.node)
	}

	return b.addNode(&Node{op: OpSelect, operands: nodes})
}

func (b *ProcBuilder) sendOp(
	op Op,
	ch *Channel,
	operands []*Node,
	nData int,
) BValue {
	if ch == nil {
		return b.setErr(errors.New("send channel is missing"))
	}
	if ch.Kind() == ReceiveOnly {
		return b.setErr(errors.Errorf(
			"cannot send on receive-only channel %q", ch.Name()))
	}
	if nData != len(ch.fields) {
		return b.setErr(errors.Errorf(
			"channel %q carries %d fields, send provides %d",
			ch.Name(), len(ch.fields), nData))
	}

	return b.addNode(&Node{op: op, channel: ch, operands: operands})
}

// Send adds an unconditional send of one payload tuple. The data operands
// map one-to-one onto the channel's fields. Result is the advanced token.
func (b *ProcBuilder) Send(ch *Channel, token BValue, data ...BValue) BValue {
	if b.err != nil {
		return BValue{}
	}
	if token.node == nil {
		return b.setErr(errors.New("send token is missing"))
	}

	operands := []*Node{token.node}
	for i, d := range data {
		if d.node == nil {
			return b.setErr(errors.Errorf("send data operand %d is missing", i))
		}
		operands = append(operands, d.node)
	}

	return b.sendOp(OpSend, ch, operands, len(data))
}

// SendIf adds a conditional send: with a false predicate no enqueue happens
// and execution proceeds. Result is the advanced token.
func (b *ProcBuilder) SendIf(
	ch *Channel,
	token, pred BValue,
	data ...BValue,
) BValue {
	if b.err != nil {
		return BValue{}
	}
	if token.node == nil {
		return b.setErr(errors.New("send_if token is missing"))
	}
	if pred.node == nil {
		return b.setErr(errors.New("send_if predicate is missing"))
	}

	operands := []*Node{token.node, pred.node}
	for i, d := range data {
		if d.node == nil {
			return b.setErr(errors.Errorf(
				"send_if data operand %d is missing", i))
		}
		operands = append(operands, d.node)
	}

	return b.sendOp(OpSendIf, ch, operands, len(data))
}

func (b *ProcBuilder) receiveOp(op Op, ch *Channel, operands []*Node) BValue {
	if ch == nil {
		return b.setErr(errors.New("receive channel is missing"))
	}
	if ch.Kind() == SendOnly {
		return b.setErr(errors.Errorf(
			"cannot receive on send-only channel %q", ch.Name()))
	}

	return b.addNode(&Node{op: op, channel: ch, operands: operands})
}

// Receive adds an unconditional receive. The result is a tuple of the
// advanced token followed by one element per channel field.
func (b *ProcBuilder) Receive(ch *Channel, token BValue) BValue {
	if b.err != nil {
		return BValue{}
	}
	if token.node == nil {
		return b.setErr(errors.New("receive token is missing"))
	}

	return b.receiveOp(OpReceive, ch, []*Node{token.node})
}

// ReceiveIf adds a conditional receive: with a false predicate no dequeue
// happens and the payload elements are zero-valued. The result shape matches
// Receive.
func (b *ProcBuilder) ReceiveIf(ch *Channel, token, pred BValue) BValue {
	if b.err != nil {
		return BValue{}
	}
	if token.node == nil {
		return b.setErr(errors.New("receive_if token is missing"))
	}
	if pred.node == nil {
		return b.setErr(errors.New("receive_if predicate is missing"))
	}

	return b.receiveOp(OpReceiveIf, ch, []*Node{token.node, pred.node})
}

// Build finalizes the proc with the given token and next-state results and
// registers it in the package.
func (b *ProcBuilder) Build(nextToken, nextState BValue) (*Proc, error) {
	if b.err != nil {
		return nil, b.err
	}
	if nextToken.node == nil {
		return nil, errors.Errorf("proc %q: next token result is missing",
			b.proc.name)
	}
	if nextState.node == nil {
		return nil, errors.Errorf("proc %q: next state result is missing",
			b.proc.name)
	}

	b.proc.tokenParam = b.tokenParam.node
	b.proc.stateParam = b.stateParam.node
	b.proc.nextToken = nextToken.node
	b.proc.nextState = nextState.node

	if err := b.pkg.addProc(b.proc); err != nil {
		return nil, err
	}

	return b.proc, nil
}
