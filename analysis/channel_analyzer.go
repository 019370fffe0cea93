package analysis

import (
	"github.com/tebeka/atexit"

	"github.com/procflow/procflow/interp"
)

// A ChannelAnalyzer records the latency of every value that passes
// through a channel queue, and can periodically summarize the traffic
// on the queue.
type ChannelAnalyzer struct {
	PerfLogger
	interp.TickTeller

	queue     interp.Queue
	usePeriod bool
	period    uint64

	periodStart  uint64
	enqueueTicks []uint64
	enqueueCount uint64
	dequeueCount uint64
}

// Func records one enqueue or dequeue on the observed queue.
func (a *ChannelAnalyzer) Func(ctx interp.HookCtx) {
	now := a.TickCount()

	if a.usePeriod {
		for now >= a.periodStart+a.period {
			a.summarizePeriod(a.periodStart, a.periodStart+a.period)
			a.periodStart += a.period
			a.enqueueCount = 0
			a.dequeueCount = 0
		}
	}

	switch ctx.Pos {
	case interp.HookPosQueueEnqueue:
		a.enqueueTicks = append(a.enqueueTicks, now)
		a.enqueueCount++
	case interp.HookPosQueueDequeue:
		a.dequeueCount++
		a.recordLatency(now)
	}
}

// Values dequeued before the analyzer was attached have no recorded
// enqueue tick and are skipped.
func (a *ChannelAnalyzer) recordLatency(now uint64) {
	if len(a.enqueueTicks) == 0 {
		return
	}

	enqueuedAt := a.enqueueTicks[0]
	a.enqueueTicks = a.enqueueTicks[1:]

	a.AddDataEntry(PerfEntry{
		Start: enqueuedAt,
		End:   now,
		Where: a.queue.Name(),
		What:  "latency",
		Value: float64(now - enqueuedAt),
		Unit:  "tick",
	})
}

func (a *ChannelAnalyzer) summarizePeriod(start, end uint64) {
	if a.enqueueCount == 0 && a.dequeueCount == 0 {
		return
	}

	a.AddDataEntry(PerfEntry{
		Start: start,
		End:   end,
		Where: a.queue.Name(),
		What:  "enqueue_count",
		Value: float64(a.enqueueCount),
		Unit:  "value",
	})
	a.AddDataEntry(PerfEntry{
		Start: start,
		End:   end,
		Where: a.queue.Name(),
		What:  "dequeue_count",
		Value: float64(a.dequeueCount),
		Unit:  "value",
	})
}

func (a *ChannelAnalyzer) flush() {
	a.summarizePeriod(a.periodStart, a.TickCount())
}

// A ChannelAnalyzerBuilder can build ChannelAnalyzers.
type ChannelAnalyzerBuilder struct {
	perfLogger PerfLogger
	tickTeller interp.TickTeller
	usePeriod  bool
	period     uint64
	queue      interp.Queue
}

// MakeChannelAnalyzerBuilder creates a ChannelAnalyzerBuilder.
func MakeChannelAnalyzerBuilder() ChannelAnalyzerBuilder {
	return ChannelAnalyzerBuilder{}
}

// WithPerfLogger sets the PerfLogger to use.
func (b ChannelAnalyzerBuilder) WithPerfLogger(
	perfLogger PerfLogger,
) ChannelAnalyzerBuilder {
	b.perfLogger = perfLogger
	return b
}

// WithTickTeller sets the TickTeller to use.
func (b ChannelAnalyzerBuilder) WithTickTeller(
	tickTeller interp.TickTeller,
) ChannelAnalyzerBuilder {
	b.tickTeller = tickTeller
	return b
}

// WithPeriod sets the summary period in ticks.
func (b ChannelAnalyzerBuilder) WithPeriod(
	period uint64,
) ChannelAnalyzerBuilder {
	b.usePeriod = true
	b.period = period
	return b
}

// WithQueue sets the queue to observe.
func (b ChannelAnalyzerBuilder) WithQueue(
	queue interp.Queue,
) ChannelAnalyzerBuilder {
	b.queue = queue
	return b
}

// Build creates a ChannelAnalyzer.
func (b ChannelAnalyzerBuilder) Build() *ChannelAnalyzer {
	if b.perfLogger == nil {
		panic("perfLogger is not set")
	}

	if b.tickTeller == nil {
		panic("tickTeller is not set")
	}

	if b.queue == nil {
		panic("queue is not set")
	}

	analyzer := &ChannelAnalyzer{
		PerfLogger: b.perfLogger,
		TickTeller: b.tickTeller,
		queue:      b.queue,
		usePeriod:  b.usePeriod,
		period:     b.period,
	}

	atexit.Register(func() {
		analyzer.flush()
	})

	return analyzer
}
