package monitoring

import (
	"encoding/json"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/procflow/procflow/interp"
	"github.com/procflow/procflow/ir"
)

func buildCounterNetwork() *interp.Interpreter {
	pkg := ir.NewPackage("counter")
	out, err := pkg.CreateChannel("out", ir.SendOnly,
		ir.ChannelField{Name: "data", Type: ir.BitsType(32)})
	if err != nil {
		panic(err)
	}

	pb := ir.NewProcBuilder("iota", ir.UBits(0, 32), pkg)
	tok := pb.Send(out, pb.GetTokenParam(), pb.GetStateParam())
	next := pb.Add(pb.GetStateParam(), pb.Literal(ir.UBits(1, 32)))
	if _, err := pb.Build(tok, next); err != nil {
		panic(err)
	}

	it, err := interp.Create(pkg, nil)
	if err != nil {
		panic(err)
	}

	return it
}

func buildStuckNetwork() *interp.Interpreter {
	pkg := ir.NewPackage("stuck")
	in, err := pkg.CreateChannel("in", ir.ReceiveOnly,
		ir.ChannelField{Name: "data", Type: ir.BitsType(32)})
	if err != nil {
		panic(err)
	}

	pb := ir.NewProcBuilder("sink", ir.UBits(0, 32), pkg)
	recv := pb.Receive(in, pb.GetTokenParam())
	if _, err := pb.Build(pb.TupleIndex(recv, 0),
		pb.TupleIndex(recv, 1)); err != nil {
		panic(err)
	}

	it, err := interp.Create(pkg, []interp.Queue{
		interp.NewFixedInputSource(in, nil),
	})
	if err != nil {
		panic(err)
	}

	return it
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
	)

	BeforeEach(func() {
		m = NewMonitor()
		m.RegisterInterpreter(buildCounterNetwork())
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", path, nil)
		m.makeRouter().ServeHTTP(w, r)
		return w
	}

	It("should report the tick count", func() {
		w := get("/api/tick_count")

		Expect(w.Code).To(Equal(200))
		Expect(w.Body.String()).To(Equal(`{"tick_count":0}`))
	})

	It("should advance the network by one tick", func() {
		w := get("/api/tick")

		Expect(w.Code).To(Equal(200))
		Expect(w.Body.String()).To(Equal(`{"tick_count":1}`))

		ch, _ := m.interpreter.Package().ChannelByName("out")
		Expect(m.interpreter.Queue(ch).Size()).To(Equal(1))
	})

	It("should report a deadlock as a conflict", func() {
		m.RegisterInterpreter(buildStuckNetwork())

		w := get("/api/tick")

		Expect(w.Code).To(Equal(409))

		var rsp struct {
			Error    string   `json:"error"`
			Channels []string `json:"channels"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Channels).To(Equal([]string{"in"}))
	})

	It("should list channels", func() {
		w := get("/api/channels")

		var rsp []channelRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("out"))
		Expect(rsp[0].Size).To(Equal(0))
	})

	It("should describe one channel with its front value", func() {
		get("/api/tick")

		w := get("/api/channel/out")

		var rsp channelDetailRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Size).To(Equal(1))
		Expect(rsp.Front).To(Equal("(0)"))
	})

	It("should 404 on an unknown channel", func() {
		w := get("/api/channel/nope")

		Expect(w.Code).To(Equal(404))
	})

	It("should list procs", func() {
		w := get("/api/procs")

		Expect(w.Body.String()).To(Equal(`["iota"]`))
	})

	It("should describe one proc with its channels", func() {
		w := get("/api/proc/iota")

		var rsp struct {
			Name     string   `json:"name"`
			Sends    []string `json:"sends"`
			Receives []string `json:"receives"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Name).To(Equal("iota"))
		Expect(rsp.Sends).To(Equal([]string{"out"}))
		Expect(rsp.Receives).To(BeEmpty())
	})

	It("should 404 on an unknown proc", func() {
		w := get("/api/proc/nope")

		Expect(w.Code).To(Equal(404))
	})

	It("should 404 on perf queries without an analyzer", func() {
		w := get("/api/perf")

		Expect(w.Code).To(Equal(404))
	})

	It("should track progress bars", func() {
		w := get("/api/progress")
		Expect(w.Body.String()).To(Equal("[]"))

		bar := m.CreateProgressBar("run", 100)
		bar.IncrementFinished(40)

		w = get("/api/progress")

		var rsp []struct {
			Name     string `json:"name"`
			Total    uint64 `json:"total"`
			Finished uint64 `json:"finished"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("run"))
		Expect(rsp[0].Finished).To(Equal(uint64(40)))

		m.CompleteProgressBar(bar)
		w = get("/api/progress")
		Expect(w.Body.String()).To(Equal("[]"))
	})
})
