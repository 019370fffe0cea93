package analysis

import (
	"log"
	"sync"

	"github.com/procflow/procflow/datarecording"
	"github.com/procflow/procflow/interp"
)

// recentEntryCount bounds the window of entries kept for live queries.
const recentEntryCount = 1024

// A PerfAnalyzer wires a ChannelAnalyzer onto every queue of an
// interpreter and funnels their entries into a backend. It keeps a
// window of recent entries that can be queried while the network runs.
type PerfAnalyzer struct {
	usePeriod bool
	period    uint64
	backend   PerfLogger

	recentLock sync.Mutex
	recent     []PerfEntry
}

// RegisterInterpreter attaches analyzers to all of the interpreter's
// queues.
func (p *PerfAnalyzer) RegisterInterpreter(it *interp.Interpreter) {
	for _, q := range it.QueueManager().Queues() {
		p.RegisterQueue(it, q)
	}
}

// RegisterQueue attaches an analyzer to a single queue.
func (p *PerfAnalyzer) RegisterQueue(
	tt interp.TickTeller,
	q interp.Queue,
) {
	b := MakeChannelAnalyzerBuilder().
		WithPerfLogger(p).
		WithTickTeller(tt).
		WithQueue(q)

	if p.usePeriod {
		b = b.WithPeriod(p.period)
	}

	q.AcceptHook(b.Build())
}

// AddDataEntry forwards an entry to the backend and records it in the
// recent-entry window.
func (p *PerfAnalyzer) AddDataEntry(entry PerfEntry) {
	p.backend.AddDataEntry(entry)

	p.recentLock.Lock()
	defer p.recentLock.Unlock()

	p.recent = append(p.recent, entry)
	if len(p.recent) > recentEntryCount {
		p.recent = p.recent[len(p.recent)-recentEntryCount:]
	}
}

// RecentEntries returns a copy of the recent-entry window.
func (p *PerfAnalyzer) RecentEntries() []PerfEntry {
	p.recentLock.Lock()
	defer p.recentLock.Unlock()

	out := make([]PerfEntry, len(p.recent))
	copy(out, p.recent)

	return out
}

// A PerfAnalyzerBuilder builds PerfAnalyzers.
type PerfAnalyzerBuilder struct {
	usePeriod bool
	period    uint64
	backend   PerfLogger
	dbPath    string
}

// MakePerfAnalyzerBuilder returns a builder with a 100-tick summary period
// by default.
func MakePerfAnalyzerBuilder() PerfAnalyzerBuilder {
	return PerfAnalyzerBuilder{usePeriod: true, period: 100}
}

// WithPeriod sets the summary period in ticks.
func (b PerfAnalyzerBuilder) WithPeriod(period uint64) PerfAnalyzerBuilder {
	b.usePeriod = true
	b.period = period
	return b
}

// WithoutPeriod disables periodic summaries; only per-value latency is
// recorded.
func (b PerfAnalyzerBuilder) WithoutPeriod() PerfAnalyzerBuilder {
	b.usePeriod = false
	return b
}

// WithBackend sets an explicit entry sink.
func (b PerfAnalyzerBuilder) WithBackend(l PerfLogger) PerfAnalyzerBuilder {
	b.backend = l
	return b
}

// WithSQLiteBackend records entries into an SQLite database at the given
// path.
func (b PerfAnalyzerBuilder) WithSQLiteBackend(
	path string,
) PerfAnalyzerBuilder {
	b.dbPath = path
	return b
}

// Build creates the analyzer.
func (b PerfAnalyzerBuilder) Build() *PerfAnalyzer {
	backend := b.backend
	if backend == nil && b.dbPath != "" {
		writer := datarecording.NewSQLiteWriter(b.dbPath)
		writer.Init()
		backend = NewRecorderBackend(writer)
	}
	if backend == nil {
		log.Panic("perf analyzer needs a backend")
	}

	return &PerfAnalyzer{
		usePeriod: b.usePeriod,
		period:    b.period,
		backend:   backend,
	}
}

// A RecorderBackend stores perf entries through a DataRecorder.
type RecorderBackend struct {
	recorder datarecording.DataRecorder
}

// NewRecorderBackend creates a backend writing to the perf table of the
// given recorder.
func NewRecorderBackend(r datarecording.DataRecorder) *RecorderBackend {
	r.CreateTable("perf", PerfEntry{})

	return &RecorderBackend{recorder: r}
}

// AddDataEntry inserts one row.
func (b *RecorderBackend) AddDataEntry(entry PerfEntry) {
	b.recorder.InsertData("perf", entry)
}
