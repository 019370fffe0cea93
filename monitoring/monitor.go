package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/procflow/procflow/analysis"
	"github.com/procflow/procflow/interp"
	"github.com/procflow/procflow/ir"
)

// Monitor can turn an interpreter into a server and allows external
// inspection and control of the proc network.
type Monitor struct {
	interpreter   *interp.Interpreter
	portNumber    int
	launchBrowser bool
	perfAnalyzer  *analysis.PerfAnalyzer

	tickLock sync.Mutex
	barsLock sync.Mutex
	bars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowserLaunch makes StartServer open the dashboard in the system
// browser.
func (m *Monitor) WithBrowserLaunch() *Monitor {
	m.launchBrowser = true
	return m
}

// RegisterInterpreter registers the interpreter to be monitored.
func (m *Monitor) RegisterInterpreter(it *interp.Interpreter) {
	m.interpreter = it
}

// RegisterPerfAnalyzer sets the performance analyzer to be used in the
// monitor.
func (m *Monitor) RegisterPerfAnalyzer(pa *analysis.PerfAnalyzer) {
	m.perfAnalyzer = pa
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.barsLock.Lock()
	defer m.barsLock.Unlock()

	m.bars = append(m.bars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the dashboard.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.barsLock.Lock()
	defer m.barsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.bars))
	for _, b := range m.bars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.bars = newBars
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	r := m.makeRouter()
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring proc network with %s\n", url)

	if m.launchBrowser {
		err := browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) makeRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/tick", m.tick)
	r.HandleFunc("/api/tick_count", m.tickCount)
	r.HandleFunc("/api/channels", m.listChannels)
	r.HandleFunc("/api/channel/{name}", m.channelDetails)
	r.HandleFunc("/api/procs", m.listProcs)
	r.HandleFunc("/api/proc/{name}", m.procDetails)
	r.HandleFunc("/api/perf", m.listPerfEntries)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/", m.index)

	return r
}

func (m *Monitor) index(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `{"endpoints":["/api/tick","/api/tick_count",`+
		`"/api/channels","/api/channel/{name}","/api/procs",`+
		`"/api/proc/{name}","/api/perf","/api/progress",`+
		`"/api/resource","/api/profile"]}`)
}

func (m *Monitor) listPerfEntries(w http.ResponseWriter, _ *http.Request) {
	if m.perfAnalyzer == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("No perf analyzer registered"))
		dieOnErr(err)
		return
	}

	writeJSON(w, m.perfAnalyzer.RecentEntries())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.barsLock.Lock()
	defer m.barsLock.Unlock()

	bars := m.bars
	if bars == nil {
		// A nil slice would serialize as null; the dashboard wants a
		// list either way.
		bars = []*ProgressBar{}
	}

	writeJSON(w, bars)
}

func (m *Monitor) tick(w http.ResponseWriter, _ *http.Request) {
	m.tickLock.Lock()
	defer m.tickLock.Unlock()

	err := m.interpreter.Tick()
	if err != nil {
		deadlock, ok := err.(*interp.DeadlockError)
		if !ok {
			dieOnErr(err)
		}

		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]any{
			"error":    deadlock.Error(),
			"channels": deadlock.Channels,
		})

		return
	}

	fmt.Fprintf(w, "{\"tick_count\":%d}", m.interpreter.TickCount())
}

func (m *Monitor) tickCount(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"tick_count\":%d}", m.interpreter.TickCount())
}

type channelRsp struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

func (m *Monitor) listChannels(w http.ResponseWriter, _ *http.Request) {
	var rsp []channelRsp
	for _, q := range m.interpreter.QueueManager().Queues() {
		rsp = append(rsp, channelRsp{
			Name:     q.Name(),
			Kind:     q.Channel().Kind().String(),
			Size:     q.Size(),
			Capacity: q.Capacity(),
		})
	}

	writeJSON(w, rsp)
}

type channelDetailRsp struct {
	channelRsp
	Front string `json:"front,omitempty"`
}

func (m *Monitor) channelDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	q := m.findQueueOr404(w, name)
	if q == nil {
		return
	}

	rsp := channelDetailRsp{
		channelRsp: channelRsp{
			Name:     q.Name(),
			Kind:     q.Channel().Kind().String(),
			Size:     q.Size(),
			Capacity: q.Capacity(),
		},
	}

	if front, err := q.Peek(); err == nil {
		rsp.Front = front.String()
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listProcs(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, p := range m.interpreter.Package().Procs() {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "%q", p.Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) procDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	state, ok := m.interpreter.ProcState(name)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Proc not found"))
		dieOnErr(err)
		return
	}

	proc, _ := m.interpreter.Package().ProcByName(name)

	var stateJSON bytes.Buffer
	serializer := goseth.NewSerializer()
	serializer.SetRoot(state)
	serializer.SetMaxDepth(3)
	err := serializer.Serialize(&stateJSON)
	dieOnErr(err)

	writeJSON(w, map[string]any{
		"name":     name,
		"sends":    channelNames(proc.SendChannels()),
		"receives": channelNames(proc.ReceiveChannels()),
		"state":    json.RawMessage(stateJSON.Bytes()),
	})
}

func channelNames(chs []*ir.Channel) []string {
	names := make([]string, 0, len(chs))
	for _, ch := range chs {
		names = append(names, ch.Name())
	}

	return names
}

func (m *Monitor) findQueueOr404(
	w http.ResponseWriter,
	name string,
) interp.Queue {
	ch, ok := m.interpreter.Package().ChannelByName(name)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Channel not found"))
		dieOnErr(err)
		return nil
	}

	return m.interpreter.Queue(ch)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
