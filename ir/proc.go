package ir

// A Proc is a stateful unit of sequential dataflow logic, analogous to one
// concurrently operating hardware block. Its structure is immutable once
// built; the runtime state value lives in the interpreter and is replaced
// wholesale at the end of each completed tick.
type Proc struct {
	name      string
	initValue Value
	nodes     []*Node

	tokenParam *Node
	stateParam *Node
	nextToken  *Node
	nextState  *Node
}

// Name returns the proc name, unique within its package.
func (p *Proc) Name() string {
	return p.name
}

// InitValue returns the declared initial state value.
func (p *Proc) InitValue() Value {
	return p.initValue.Clone()
}

// Nodes returns the operation sequence in evaluation order.
func (p *Proc) Nodes() []*Node {
	nodes := make([]*Node, len(p.nodes))
	copy(nodes, p.nodes)
	return nodes
}

// NumNodes returns the length of the operation sequence.
func (p *Proc) NumNodes() int {
	return len(p.nodes)
}

// TokenParam returns the node producing the tick's initial token.
func (p *Proc) TokenParam() *Node {
	return p.tokenParam
}

// StateParam returns the node reading the tick-start state.
func (p *Proc) StateParam() *Node {
	return p.stateParam
}

// NextToken returns the node whose value is the tick's final token.
func (p *Proc) NextToken() *Node {
	return p.nextToken
}

// NextState returns the node whose value becomes the state for the next
// tick.
func (p *Proc) NextState() *Node {
	return p.nextState
}

// SendChannels lists the channels the proc sends on, in node order.
func (p *Proc) SendChannels() []*Channel {
	var chs []*Channel
	for _, n := range p.nodes {
		if n.op == OpSend || n.op == OpSendIf {
			chs = append(chs, n.channel)
		}
	}
	return chs
}

// ReceiveChannels lists the channels the proc receives from, in node order.
func (p *Proc) ReceiveChannels() []*Channel {
	var chs []*Channel
	for _, n := range p.nodes {
		if n.op == OpReceive || n.op == OpReceiveIf {
			chs = append(chs, n.channel)
		}
	}
	return chs
}
