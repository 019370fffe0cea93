package interp

import (
	"github.com/pkg/errors"

	"github.com/procflow/procflow/ir"
)

// NewFixedInputSource creates a read-only queue for a receive-only channel,
// pre-seeded with the given payload values in order. Dequeuing past the end
// fails with ErrExhausted, a permanent condition distinct from transient
// emptiness.
func NewFixedInputSource(ch *ir.Channel, values []ir.Value) Queue {
	vs := make([]ir.Value, len(values))
	for i, v := range values {
		vs[i] = v.Clone()
	}

	return &fixedInputSource{channel: ch, values: vs}
}

type fixedInputSource struct {
	HookableBase

	channel *ir.Channel
	values  []ir.Value
	next    int
}

func (s *fixedInputSource) Name() string {
	return s.channel.Name()
}

func (s *fixedInputSource) Channel() *ir.Channel {
	return s.channel
}

func (s *fixedInputSource) Enqueue(ir.Value) error {
	return errors.Wrapf(ErrReadOnly, "channel %q", s.channel.Name())
}

func (s *fixedInputSource) Dequeue() (ir.Value, error) {
	if s.next >= len(s.values) {
		return ir.Value{}, errors.Wrapf(ErrExhausted, "channel %q",
			s.channel.Name())
	}

	v := s.values[s.next]
	s.next++

	if s.NumHooks() > 0 {
		s.InvokeHook(HookCtx{
			Domain: s,
			Pos:    HookPosQueueDequeue,
			Item:   v,
		})
	}

	return v.Clone(), nil
}

func (s *fixedInputSource) Peek() (ir.Value, error) {
	if s.next >= len(s.values) {
		return ir.Value{}, errors.Wrapf(ErrExhausted, "channel %q",
			s.channel.Name())
	}

	return s.values[s.next].Clone(), nil
}

func (s *fixedInputSource) Size() int {
	return len(s.values) - s.next
}

func (s *fixedInputSource) IsEmpty() bool {
	return s.Size() == 0
}

func (s *fixedInputSource) Capacity() int {
	return 0
}

// A GeneratorFunc produces the i-th stimulus value for a channel, i counted
// from 0. Returning false marks the source exhausted; a source that never
// returns false is infinite.
type GeneratorFunc func(i uint64) (ir.Value, bool)

// NewGeneratorInputSource creates a read-only queue whose values are pulled
// on demand from a generator function.
func NewGeneratorInputSource(ch *ir.Channel, generate GeneratorFunc) Queue {
	return &generatorInputSource{channel: ch, generate: generate}
}

type generatorInputSource struct {
	HookableBase

	channel  *ir.Channel
	generate GeneratorFunc

	count     uint64
	lookahead *ir.Value
	done      bool
}

func (s *generatorInputSource) Name() string {
	return s.channel.Name()
}

func (s *generatorInputSource) Channel() *ir.Channel {
	return s.channel
}

func (s *generatorInputSource) Enqueue(ir.Value) error {
	return errors.Wrapf(ErrReadOnly, "channel %q", s.channel.Name())
}

// fill pulls the next value into the lookahead slot if needed.
func (s *generatorInputSource) fill() {
	if s.done || s.lookahead != nil {
		return
	}

	v, ok := s.generate(s.count)
	if !ok {
		s.done = true
		return
	}

	s.count++
	s.lookahead = &v
}

func (s *generatorInputSource) Dequeue() (ir.Value, error) {
	s.fill()

	if s.lookahead == nil {
		return ir.Value{}, errors.Wrapf(ErrExhausted, "channel %q",
			s.channel.Name())
	}

	v := *s.lookahead
	s.lookahead = nil

	if s.NumHooks() > 0 {
		s.InvokeHook(HookCtx{
			Domain: s,
			Pos:    HookPosQueueDequeue,
			Item:   v,
		})
	}

	return v, nil
}

func (s *generatorInputSource) Peek() (ir.Value, error) {
	s.fill()

	if s.lookahead == nil {
		return ir.Value{}, errors.Wrapf(ErrExhausted, "channel %q",
			s.channel.Name())
	}

	return s.lookahead.Clone(), nil
}

func (s *generatorInputSource) Size() int {
	s.fill()

	if s.lookahead == nil {
		return 0
	}

	return 1
}

func (s *generatorInputSource) IsEmpty() bool {
	return s.Size() == 0
}

func (s *generatorInputSource) Capacity() int {
	return 0
}
