package interp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/procflow/procflow/ir"
)

func u32Field() ir.ChannelField {
	return ir.ChannelField{Name: "data", Type: ir.BitsType(32)}
}

func mustChannel(
	pkg *ir.Package,
	name string,
	kind ir.ChannelKind,
	fields ...ir.ChannelField,
) *ir.Channel {
	if len(fields) == 0 {
		fields = []ir.ChannelField{u32Field()}
	}

	ch, err := pkg.CreateChannel(name, kind, fields...)
	Expect(err).ToNot(HaveOccurred())

	return ch
}

// buildIotaProc builds a proc that each tick sends its state and then steps
// the state by a constant.
func buildIotaProc(
	pkg *ir.Package,
	name string,
	start, step uint64,
	out *ir.Channel,
) {
	pb := ir.NewProcBuilder(name, ir.UBits(start, 32), pkg)
	tok := pb.Send(out, pb.GetTokenParam(), pb.GetStateParam())
	next := pb.Add(pb.GetStateParam(), pb.Literal(ir.UBits(step, 32)))

	_, err := pb.Build(tok, next)
	Expect(err).ToNot(HaveOccurred())
}

// buildAccumProc builds a proc that keeps a running sum of its input and
// emits the sum each tick.
func buildAccumProc(pkg *ir.Package, name string, in, out *ir.Channel) {
	pb := ir.NewProcBuilder(name, ir.UBits(0, 32), pkg)
	recv := pb.Receive(in, pb.GetTokenParam())
	recvTok := pb.TupleIndex(recv, 0)
	input := pb.TupleIndex(recv, 1)
	sum := pb.Add(pb.GetStateParam(), input)
	tok := pb.Send(out, recvTok, sum)

	_, err := pb.Build(tok, sum)
	Expect(err).ToNot(HaveOccurred())
}

// buildPassThroughProc builds a proc that forwards its input unchanged.
func buildPassThroughProc(pkg *ir.Package, name string, in, out *ir.Channel) {
	pb := ir.NewProcBuilder(name, ir.TupleValue(), pkg)
	recv := pb.Receive(in, pb.GetTokenParam())
	tok := pb.Send(out, pb.TupleIndex(recv, 0), pb.TupleIndex(recv, 1))

	_, err := pb.Build(tok, pb.GetStateParam())
	Expect(err).ToNot(HaveOccurred())
}

// buildRunLengthDecoderProc builds a proc that reads (count, value) pairs
// and emits value count times; zero counts emit nothing.
func buildRunLengthDecoderProc(
	pkg *ir.Package,
	name string,
	in, out *ir.Channel,
) {
	init := ir.TupleValue(ir.UBits(0, 8), ir.UBits(0, 32))
	pb := ir.NewProcBuilder(name, init, pkg)

	lastChar := pb.TupleIndex(pb.GetStateParam(), 0)
	numRemaining := pb.TupleIndex(pb.GetStateParam(), 1)
	receiveNext := pb.Eq(numRemaining, pb.Literal(ir.UBits(0, 32)))
	recv := pb.ReceiveIf(in, pb.GetTokenParam(), receiveNext)

	runLength := pb.Select(receiveNext,
		[]ir.BValue{numRemaining, pb.TupleIndex(recv, 1)})
	thisChar := pb.Select(receiveNext,
		[]ir.BValue{lastChar, pb.TupleIndex(recv, 2)})
	runLengthNonzero := pb.Ne(runLength, pb.Literal(ir.UBits(0, 32)))
	tok := pb.SendIf(out, pb.TupleIndex(recv, 0), runLengthNonzero, thisChar)

	next := pb.Tuple(thisChar, pb.Select(runLengthNonzero, []ir.BValue{
		pb.Literal(ir.UBits(0, 32)),
		pb.Subtract(runLength, pb.Literal(ir.UBits(1, 32))),
	}))

	_, err := pb.Build(tok, next)
	Expect(err).ToNot(HaveOccurred())
}

func dequeueU32s(q Queue, n int) []uint64 {
	var got []uint64
	for i := 0; i < n; i++ {
		v, err := q.Dequeue()
		Expect(err).ToNot(HaveOccurred())
		got = append(got, v.Element(0).Bits().Uint64())
	}

	return got
}

var _ = Describe("Interpreter", func() {
	It("should run a counter proc", func() {
		pkg := ir.NewPackage("counter")
		out := mustChannel(pkg, "iota_out", ir.SendOnly)
		buildIotaProc(pkg, "iota", 5, 10, out)

		it, err := Create(pkg, nil)
		Expect(err).ToNot(HaveOccurred())

		queue := it.Queue(out)
		Expect(queue.IsEmpty()).To(BeTrue())

		for i := 0; i < 4; i++ {
			Expect(it.Tick()).To(Succeed())
		}

		Expect(it.TickCount()).To(Equal(uint64(4)))
		Expect(dequeueU32s(queue, 4)).To(Equal([]uint64{5, 15, 25, 35}))
	})

	It("should run an accumulator chain", func() {
		pkg := ir.NewPackage("chain")
		mid := mustChannel(pkg, "iota_accum", ir.SendReceive)
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildIotaProc(pkg, "iota", 0, 1, mid)
		buildAccumProc(pkg, "accum", mid, out)

		it, err := Create(pkg, nil)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 4; i++ {
			Expect(it.Tick()).To(Succeed())
		}

		Expect(dequeueU32s(it.Queue(out), 4)).To(Equal([]uint64{0, 1, 3, 6}))
	})

	It("should tick a degenerate proc indefinitely", func() {
		pkg := ir.NewPackage("degenerate")
		pb := ir.NewProcBuilder("noop", ir.TupleValue(), pkg)
		_, err := pb.Build(pb.GetTokenParam(), pb.GetStateParam())
		Expect(err).ToNot(HaveOccurred())

		it, err := Create(pkg, nil)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 100; i++ {
			Expect(it.Tick()).To(Succeed())
		}
	})

	It("should detect a feedback deadlock and name the channel", func() {
		pkg := ir.NewPackage("feedback")
		loop := mustChannel(pkg, "loop", ir.SendReceive)
		buildPassThroughProc(pkg, "feedback", loop, loop)

		it, err := Create(pkg, nil)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 2; i++ {
			err = it.Tick()
			Expect(err).To(HaveOccurred())

			deadlock, ok := err.(*DeadlockError)
			Expect(ok).To(BeTrue())
			Expect(deadlock.Channels).To(Equal([]string{"loop"}))
			Expect(err.Error()).To(ContainSubstring(
				"blocked channels: loop"))
		}
	})

	It("should leave queues untouched past the deadlock point", func() {
		pkg := ir.NewPackage("stuck")
		in := mustChannel(pkg, "in", ir.ReceiveOnly)
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildPassThroughProc(pkg, "pass", in, out)

		src := NewFixedInputSource(in, []ir.Value{payload(ir.UBits(1, 32))})
		it, err := Create(pkg, []Queue{src})
		Expect(err).ToNot(HaveOccurred())

		Expect(it.Tick()).To(Succeed())

		// Input is now exhausted; the proc can never receive again.
		err = it.Tick()
		deadlock, ok := err.(*DeadlockError)
		Expect(ok).To(BeTrue())
		Expect(deadlock.Channels).To(Equal([]string{"in"}))

		// The first tick's output is still inspectable.
		Expect(dequeueU32s(it.Queue(out), 1)).To(Equal([]uint64{1}))
	})

	It("should feed external stimulus through a wrapped network", func() {
		pkg := ir.NewPackage("wrapped")
		in := mustChannel(pkg, "input", ir.ReceiveOnly)
		toAccum := mustChannel(pkg, "accum_in", ir.SendReceive)
		fromAccum := mustChannel(pkg, "accum_out", ir.SendReceive)
		out := mustChannel(pkg, "out", ir.SendOnly)

		pb := ir.NewProcBuilder("wrapper", ir.TupleValue(), pkg)
		recvIn := pb.Receive(in, pb.GetTokenParam())
		sendAccum := pb.Send(toAccum,
			pb.TupleIndex(recvIn, 0), pb.TupleIndex(recvIn, 1))
		recvAccum := pb.Receive(fromAccum, sendAccum)
		sendOut := pb.Send(out,
			pb.TupleIndex(recvAccum, 0), pb.TupleIndex(recvAccum, 1))
		_, err := pb.Build(sendOut, pb.GetStateParam())
		Expect(err).ToNot(HaveOccurred())

		buildAccumProc(pkg, "accum", toAccum, fromAccum)

		src := NewFixedInputSource(in, []ir.Value{
			payload(ir.UBits(10, 32)),
			payload(ir.UBits(20, 32)),
			payload(ir.UBits(30, 32)),
		})
		it, err := Create(pkg, []Queue{src})
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 3; i++ {
			Expect(it.Tick()).To(Succeed())
		}

		Expect(dequeueU32s(it.Queue(out), 3)).To(Equal([]uint64{10, 30, 60}))
	})

	It("should run-length decode an external sequence", func() {
		pkg := ir.NewPackage("rle")
		in := mustChannel(pkg, "in", ir.ReceiveOnly,
			ir.ChannelField{Name: "length", Type: ir.BitsType(32)},
			ir.ChannelField{Name: "value", Type: ir.BitsType(8)})
		out := mustChannel(pkg, "output", ir.SendOnly,
			ir.ChannelField{Name: "data", Type: ir.BitsType(8)})

		buildRunLengthDecoderProc(pkg, "decoder", in, out)

		src := NewFixedInputSource(in, []ir.Value{
			payload(ir.UBits(1, 32), ir.UBits(42, 8)),
			payload(ir.UBits(3, 32), ir.UBits(123, 8)),
			payload(ir.UBits(0, 32), ir.UBits(55, 8)),
			payload(ir.UBits(0, 32), ir.UBits(66, 8)),
			payload(ir.UBits(2, 32), ir.UBits(20, 8)),
		})
		it, err := Create(pkg, []Queue{src})
		Expect(err).ToNot(HaveOccurred())

		queue := it.Queue(out)
		for queue.Size() < 6 {
			Expect(it.Tick()).To(Succeed())
		}

		Expect(dequeueU32s(queue, 6)).
			To(Equal([]uint64{42, 123, 123, 123, 20, 20}))
	})

	It("should filter the decoded stream through a second proc", func() {
		pkg := ir.NewPackage("rlefilter")
		in := mustChannel(pkg, "in", ir.ReceiveOnly,
			ir.ChannelField{Name: "length", Type: ir.BitsType(32)},
			ir.ChannelField{Name: "value", Type: ir.BitsType(8)})
		decoded := mustChannel(pkg, "decoded", ir.SendReceive,
			ir.ChannelField{Name: "data", Type: ir.BitsType(8)})
		out := mustChannel(pkg, "output", ir.SendOnly,
			ir.ChannelField{Name: "data", Type: ir.BitsType(8)})

		buildRunLengthDecoderProc(pkg, "decoder", in, decoded)

		pb := ir.NewProcBuilder("filter", ir.TupleValue(), pkg)
		recv := pb.Receive(decoded, pb.GetTokenParam())
		rxTok := pb.TupleIndex(recv, 0)
		rxVal := pb.TupleIndex(recv, 1)
		isEven := pb.Not(pb.BitSlice(rxVal, 0, 1))
		tok := pb.SendIf(out, rxTok, isEven, rxVal)
		_, err := pb.Build(tok, pb.GetStateParam())
		Expect(err).ToNot(HaveOccurred())

		src := NewFixedInputSource(in, []ir.Value{
			payload(ir.UBits(1, 32), ir.UBits(42, 8)),
			payload(ir.UBits(3, 32), ir.UBits(123, 8)),
			payload(ir.UBits(0, 32), ir.UBits(55, 8)),
			payload(ir.UBits(0, 32), ir.UBits(66, 8)),
			payload(ir.UBits(2, 32), ir.UBits(20, 8)),
		})
		it, err := Create(pkg, []Queue{src})
		Expect(err).ToNot(HaveOccurred())

		queue := it.Queue(out)
		for queue.Size() < 3 {
			Expect(it.Tick()).To(Succeed())
		}

		Expect(dequeueU32s(queue, 3)).To(Equal([]uint64{42, 20, 20}))
	})

	It("should keep conditional no-ops from touching queues", func() {
		pkg := ir.NewPackage("condnoop")
		out := mustChannel(pkg, "out", ir.SendOnly)

		pb := ir.NewProcBuilder("never", ir.TupleValue(), pkg)
		never := pb.Literal(ir.UBits(0, 1))
		tok := pb.SendIf(out, pb.GetTokenParam(), never,
			pb.Literal(ir.UBits(99, 32)))
		_, err := pb.Build(tok, pb.GetStateParam())
		Expect(err).ToNot(HaveOccurred())

		it, err := Create(pkg, nil)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 10; i++ {
			Expect(it.Tick()).To(Succeed())
		}
		Expect(it.Queue(out).Size()).To(Equal(0))
	})

	It("should produce identical results under any sweep order", func() {
		run := func(order []int) ([]uint64, ir.Value) {
			pkg := ir.NewPackage("ordered")
			mid := mustChannel(pkg, "mid", ir.SendReceive)
			out := mustChannel(pkg, "out", ir.SendOnly)
			buildIotaProc(pkg, "iota", 0, 1, mid)
			buildAccumProc(pkg, "accum", mid, out)

			b := MakeBuilder().WithPackage(pkg)
			if order != nil {
				b = b.WithSweepOrder(order)
			}
			it, err := b.Build()
			Expect(err).ToNot(HaveOccurred())

			for i := 0; i < 8; i++ {
				Expect(it.Tick()).To(Succeed())
			}

			state, ok := it.ProcState("accum")
			Expect(ok).To(BeTrue())

			return dequeueU32s(it.Queue(out), 8), state
		}

		wantValues, wantState := run(nil)
		for _, order := range [][]int{{0, 1}, {1, 0}} {
			values, state := run(order)
			Expect(values).To(Equal(wantValues))
			Expect(state.Equal(wantState)).To(BeTrue())
		}
	})

	It("should complete a request/reply exchange under any sweep order", func() {
		run := func(order []int) []uint64 {
			pkg := ir.NewPackage("reqrep")
			req := mustChannel(pkg, "req", ir.SendReceive)
			rep := mustChannel(pkg, "rep", ir.SendReceive)
			out := mustChannel(pkg, "out", ir.SendOnly)

			// The client sends before it receives, the echo proc
			// receives before it sends. Whichever runs first, the
			// other side's data only shows up on a later sweep.
			cb := ir.NewProcBuilder("client", ir.UBits(1, 32), pkg)
			tok := cb.Send(req, cb.GetTokenParam(), cb.GetStateParam())
			recv := cb.Receive(rep, tok)
			tok = cb.Send(out, cb.TupleIndex(recv, 0), cb.TupleIndex(recv, 1))
			next := cb.Add(cb.GetStateParam(), cb.Literal(ir.UBits(1, 32)))
			_, err := cb.Build(tok, next)
			Expect(err).ToNot(HaveOccurred())

			eb := ir.NewProcBuilder("echo", ir.TupleValue(), pkg)
			erecv := eb.Receive(req, eb.GetTokenParam())
			etok := eb.Send(rep,
				eb.TupleIndex(erecv, 0), eb.TupleIndex(erecv, 1))
			_, err = eb.Build(etok, eb.GetStateParam())
			Expect(err).ToNot(HaveOccurred())

			b := MakeBuilder().WithPackage(pkg)
			if order != nil {
				b = b.WithSweepOrder(order)
			}
			it, err := b.Build()
			Expect(err).ToNot(HaveOccurred())

			for i := 0; i < 3; i++ {
				Expect(it.Tick()).To(Succeed())
			}

			return dequeueU32s(it.Queue(out), 3)
		}

		for _, order := range [][]int{nil, {0, 1}, {1, 0}} {
			Expect(run(order)).To(Equal([]uint64{1, 2, 3}))
		}
	})

	It("should absorb partial progress before reporting deadlock", func() {
		pkg := ir.NewPackage("partial")
		in := mustChannel(pkg, "in", ir.ReceiveOnly)
		out := mustChannel(pkg, "out", ir.SendOnly)

		pb := ir.NewProcBuilder("sendfirst", ir.UBits(9, 32), pkg)
		tok := pb.Send(out, pb.GetTokenParam(), pb.GetStateParam())
		recv := pb.Receive(in, tok)
		_, err := pb.Build(pb.TupleIndex(recv, 0), pb.TupleIndex(recv, 1))
		Expect(err).ToNot(HaveOccurred())

		it, err := Create(pkg, []Queue{NewFixedInputSource(in, nil)})
		Expect(err).ToNot(HaveOccurred())

		// The send lands before the receive stalls, so the first call
		// made progress and is not a deadlock.
		Expect(it.Tick()).To(Succeed())
		Expect(dequeueU32s(it.Queue(out), 1)).To(Equal([]uint64{9}))

		err = it.Tick()
		deadlock, ok := err.(*DeadlockError)
		Expect(ok).To(BeTrue())
		Expect(deadlock.Channels).To(Equal([]string{"in"}))

		// The blocked proc never repeats its committed send.
		Expect(it.Queue(out).IsEmpty()).To(BeTrue())
	})

	It("should commit proc state only at tick boundaries", func() {
		pkg := ir.NewPackage("stateatomic")
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildIotaProc(pkg, "iota", 5, 10, out)

		it, err := Create(pkg, nil)
		Expect(err).ToNot(HaveOccurred())

		state, ok := it.ProcState("iota")
		Expect(ok).To(BeTrue())
		Expect(state.Equal(ir.UBits(5, 32))).To(BeTrue())

		Expect(it.Tick()).To(Succeed())

		state, _ = it.ProcState("iota")
		Expect(state.Equal(ir.UBits(15, 32))).To(BeTrue())
	})

	It("should resolve blocking on a full bounded queue within a tick", func() {
		// The producer pushes two values per tick through a queue that
		// holds one, so every tick it blocks mid-sequence and resumes
		// after the consumer drains the first value. The effect cache
		// must keep the re-run from enqueuing the first value twice.
		pkg := ir.NewPackage("bounded")
		mid := mustChannel(pkg, "mid", ir.SendReceive)

		pb := ir.NewProcBuilder("producer", ir.TupleValue(), pkg)
		tok := pb.Send(mid, pb.GetTokenParam(), pb.Literal(ir.UBits(1, 32)))
		tok = pb.Send(mid, tok, pb.Literal(ir.UBits(2, 32)))
		_, err := pb.Build(tok, pb.GetStateParam())
		Expect(err).ToNot(HaveOccurred())

		cb := ir.NewProcBuilder("consumer", ir.UBits(0, 32), pkg)
		r1 := cb.Receive(mid, cb.GetTokenParam())
		r2 := cb.Receive(mid, cb.TupleIndex(r1, 0))
		sum := cb.Add(cb.GetStateParam(),
			cb.Add(cb.TupleIndex(r1, 1), cb.TupleIndex(r2, 1)))
		_, err = cb.Build(cb.TupleIndex(r2, 0), sum)
		Expect(err).ToNot(HaveOccurred())

		it, err := MakeBuilder().
			WithPackage(pkg).
			WithDefaultCapacity(1).
			Build()
		Expect(err).ToNot(HaveOccurred())

		Expect(it.Tick()).To(Succeed())
		state, _ := it.ProcState("consumer")
		Expect(state.Equal(ir.UBits(3, 32))).To(BeTrue())

		Expect(it.Tick()).To(Succeed())
		state, _ = it.ProcState("consumer")
		Expect(state.Equal(ir.UBits(6, 32))).To(BeTrue())
	})
})

var _ = Describe("Interpreter construction", func() {
	It("should reject a missing package", func() {
		_, err := MakeBuilder().Build()
		Expect(err).To(HaveOccurred())
	})

	It("should require a source for every receive-only channel", func() {
		pkg := ir.NewPackage("nosource")
		in := mustChannel(pkg, "in", ir.ReceiveOnly)
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildPassThroughProc(pkg, "pass", in, out)

		_, err := Create(pkg, nil)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("in"))
	})

	It("should reject a source on a non-receive-only channel", func() {
		pkg := ir.NewPackage("badbind")
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildIotaProc(pkg, "iota", 0, 1, out)

		src := NewFixedInputSource(out, nil)
		_, err := Create(pkg, []Queue{src})
		Expect(err).To(HaveOccurred())
	})

	It("should reject duplicate source bindings", func() {
		pkg := ir.NewPackage("dupbind")
		in := mustChannel(pkg, "in", ir.ReceiveOnly)
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildPassThroughProc(pkg, "pass", in, out)

		_, err := Create(pkg, []Queue{
			NewFixedInputSource(in, nil),
			NewFixedInputSource(in, nil),
		})
		Expect(err).To(HaveOccurred())
	})

	It("should reject two procs sending on one channel", func() {
		pkg := ir.NewPackage("twosenders")
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildIotaProc(pkg, "iota1", 0, 1, out)
		buildIotaProc(pkg, "iota2", 5, 1, out)

		_, err := Create(pkg, nil)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("sending procs"))
	})

	It("should reject an internal channel without a receiver", func() {
		pkg := ir.NewPackage("noreceiver")
		mid := mustChannel(pkg, "mid", ir.SendReceive)
		buildIotaProc(pkg, "iota", 0, 1, mid)

		_, err := Create(pkg, nil)
		Expect(err).To(HaveOccurred())
	})

	It("should reject a bad sweep order", func() {
		pkg := ir.NewPackage("badorder")
		out := mustChannel(pkg, "out", ir.SendOnly)
		buildIotaProc(pkg, "iota", 0, 1, out)

		_, err := MakeBuilder().
			WithPackage(pkg).
			WithSweepOrder([]int{0, 0}).
			Build()
		Expect(err).To(HaveOccurred())
	})
})
