package ir

// Op enumerates the closed set of proc operations. The vocabulary is fixed,
// so evaluation dispatches by exhaustive switch rather than dynamic dispatch.
type Op int

const (
	// OpTokenParam reads the proc's per-tick synchronization token.
	OpTokenParam Op = iota

	// OpStateParam reads the proc's state as of the start of the tick.
	OpStateParam

	// OpLiteral produces a constant value.
	OpLiteral

	// Pure arithmetic and logic over bit-vectors.
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpNot
	OpEq
	OpNe
	OpULt
	OpUGt
	OpBitSlice

	// Pure aggregate construction and access.
	OpTuple
	OpTupleIndex
	OpArray
	OpArrayIndex
	OpSelect

	// Side-effecting channel operations, ordered by the token thread.
	OpSend
	OpSendIf
	OpReceive
	OpReceiveIf
)

func (o Op) String() string {
	names := map[Op]string{
		OpTokenParam: "token_param",
		OpStateParam: "state_param",
		OpLiteral:    "literal",
		OpAdd:        "add",
		OpSub:        "sub",
		OpAnd:        "and",
		OpOr:         "or",
		OpXor:        "xor",
		OpNot:        "not",
		OpEq:         "eq",
		OpNe:         "ne",
		OpULt:        "ult",
		OpUGt:        "ugt",
		OpBitSlice:   "bit_slice",
		OpTuple:      "tuple",
		OpTupleIndex: "tuple_index",
		OpArray:      "array",
		OpArrayIndex: "array_index",
		OpSelect:     "select",
		OpSend:       "send",
		OpSendIf:     "send_if",
		OpReceive:    "receive",
		OpReceiveIf:  "receive_if",
	}

	if n, ok := names[o]; ok {
		return n
	}

	return "unknown"
}

// IsSideEffecting reports whether the op touches a channel queue.
func (o Op) IsSideEffecting() bool {
	switch o {
	case OpSend, OpSendIf, OpReceive, OpReceiveIf:
		return true
	default:
		return false
	}
}

// A Node is one operation in a proc's sequence. Nodes are created in data
// dependency order by the ProcBuilder, so evaluating them front to back
// always sees operands already computed.
type Node struct {
	op       Op
	id       int
	operands []*Node

	// Auxiliary payload, meaningful per op.
	value        Value    // OpLiteral
	channel      *Channel // send/receive ops
	index        int      // OpTupleIndex
	start, width int      // OpBitSlice
}

// Op returns the operation kind.
func (n *Node) Op() Op {
	return n.op
}

// ID returns the node's position in the proc's sequence.
func (n *Node) ID() int {
	return n.id
}

// Operands returns the operand nodes.
func (n *Node) Operands() []*Node {
	ops := make([]*Node, len(n.operands))
	copy(ops, n.operands)
	return ops
}

// Channel returns the channel of a send/receive node, nil otherwise.
func (n *Node) Channel() *Channel {
	return n.channel
}

// LiteralValue returns the constant of an OpLiteral node.
func (n *Node) LiteralValue() Value {
	return n.value
}

// TupleIndex returns the element index of an OpTupleIndex node.
func (n *Node) TupleIndex() int {
	return n.index
}

// SliceBounds returns the start and width of an OpBitSlice node.
func (n *Node) SliceBounds() (start, width int) {
	return n.start, n.width
}
