package main

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/procflow/procflow/interp"
	"github.com/procflow/procflow/ir"
)

type networkBuilder func() (*interp.Interpreter, error)

var demoNetworks = map[string]networkBuilder{
	"counter":     buildCounterNetwork,
	"accumulator": buildAccumulatorNetwork,
	"rldecode":    buildRunLengthDecoderNetwork,
}

func demoNetworkNames() []string {
	names := make([]string, 0, len(demoNetworks))
	for name := range demoNetworks {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func buildNetwork(name string) (*interp.Interpreter, error) {
	builder, ok := demoNetworks[name]
	if !ok {
		return nil, errors.Errorf("unknown network %q", name)
	}

	return builder()
}

// buildCounterNetwork builds a single proc that emits 5, 15, 25, ... on
// the out channel.
func buildCounterNetwork() (*interp.Interpreter, error) {
	pkg := ir.NewPackage("counter")
	out, err := pkg.CreateChannel("out", ir.SendOnly,
		ir.ChannelField{Name: "data", Type: ir.BitsType(32)})
	if err != nil {
		return nil, err
	}

	pb := ir.NewProcBuilder("iota", ir.UBits(5, 32), pkg)
	tok := pb.Send(out, pb.GetTokenParam(), pb.GetStateParam())
	next := pb.Add(pb.GetStateParam(), pb.Literal(ir.UBits(10, 32)))
	if _, err := pb.Build(tok, next); err != nil {
		return nil, err
	}

	return interp.Create(pkg, nil)
}

// buildAccumulatorNetwork chains a counter proc into an accumulator that
// emits running sums.
func buildAccumulatorNetwork() (*interp.Interpreter, error) {
	pkg := ir.NewPackage("accumulator")
	mid, err := pkg.CreateChannel("mid", ir.SendReceive,
		ir.ChannelField{Name: "data", Type: ir.BitsType(32)})
	if err != nil {
		return nil, err
	}
	out, err := pkg.CreateChannel("out", ir.SendOnly,
		ir.ChannelField{Name: "data", Type: ir.BitsType(32)})
	if err != nil {
		return nil, err
	}

	pb := ir.NewProcBuilder("iota", ir.UBits(0, 32), pkg)
	tok := pb.Send(mid, pb.GetTokenParam(), pb.GetStateParam())
	next := pb.Add(pb.GetStateParam(), pb.Literal(ir.UBits(1, 32)))
	if _, err := pb.Build(tok, next); err != nil {
		return nil, err
	}

	ab := ir.NewProcBuilder("accum", ir.UBits(0, 32), pkg)
	recv := ab.Receive(mid, ab.GetTokenParam())
	sum := ab.Add(ab.GetStateParam(), ab.TupleIndex(recv, 1))
	tok = ab.Send(out, ab.TupleIndex(recv, 0), sum)
	if _, err := ab.Build(tok, sum); err != nil {
		return nil, err
	}

	return interp.Create(pkg, nil)
}

// buildRunLengthDecoderNetwork decodes (value, count) pairs from a fixed
// input into repeated values on the out channel. A zero count drops the
// value.
func buildRunLengthDecoderNetwork() (*interp.Interpreter, error) {
	pkg := ir.NewPackage("rldecode")
	in, err := pkg.CreateChannel("in", ir.ReceiveOnly,
		ir.ChannelField{Name: "value", Type: ir.BitsType(32)},
		ir.ChannelField{Name: "count", Type: ir.BitsType(8)})
	if err != nil {
		return nil, err
	}
	out, err := pkg.CreateChannel("out", ir.SendOnly,
		ir.ChannelField{Name: "data", Type: ir.BitsType(32)})
	if err != nil {
		return nil, err
	}

	if err := buildRunLengthDecoderProc(pkg, in, out); err != nil {
		return nil, err
	}

	source := interp.NewFixedInputSource(in, []ir.Value{
		ir.TupleValue(ir.UBits(42, 32), ir.UBits(1, 8)),
		ir.TupleValue(ir.UBits(123, 32), ir.UBits(3, 8)),
		ir.TupleValue(ir.UBits(55, 32), ir.UBits(0, 8)),
		ir.TupleValue(ir.UBits(20, 32), ir.UBits(2, 8)),
	})

	return interp.Create(pkg, []interp.Queue{source})
}

// The decoder state is a (value, remaining) pair. When remaining is zero
// the proc reads the next input pair, otherwise it re-emits the held
// value and decrements.
func buildRunLengthDecoderProc(
	pkg *ir.Package,
	in, out *ir.Channel,
) error {
	zero8 := ir.UBits(0, 8)
	initState := ir.TupleValue(ir.UBits(0, 32), zero8)

	pb := ir.NewProcBuilder("rldecoder", initState, pkg)

	heldValue := pb.TupleIndex(pb.GetStateParam(), 0)
	remaining := pb.TupleIndex(pb.GetStateParam(), 1)
	needsInput := pb.Eq(remaining, pb.Literal(zero8))

	recv := pb.ReceiveIf(in, pb.GetTokenParam(), needsInput)
	recvToken := pb.TupleIndex(recv, 0)
	recvValue := pb.TupleIndex(recv, 1)
	recvCount := pb.TupleIndex(recv, 2)

	value := pb.Select(needsInput, []ir.BValue{heldValue, recvValue})
	count := pb.Select(needsInput, []ir.BValue{remaining, recvCount})

	sendable := pb.Ne(count, pb.Literal(zero8))
	sendToken := pb.SendIf(out, recvToken, sendable, value)

	nextRemaining := pb.Select(sendable, []ir.BValue{
		count,
		pb.Subtract(count, pb.Literal(ir.UBits(1, 8))),
	})
	nextState := pb.Tuple(value, nextRemaining)

	if _, err := pb.Build(sendToken, nextState); err != nil {
		return err
	}

	return nil
}
