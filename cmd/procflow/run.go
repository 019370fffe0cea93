package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/procflow/procflow/analysis"
	"github.com/procflow/procflow/datarecording"
	"github.com/procflow/procflow/interp"
	"github.com/procflow/procflow/ir"
	"github.com/procflow/procflow/monitoring"
	"github.com/procflow/procflow/tracing"
)

var runFlags struct {
	network    string
	ticks      uint64
	tracePath  string
	perfPath   string
	perfPeriod uint64
	monitor    bool
	port       int
	browser    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a demo proc network for a number of ticks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return runNetwork()
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.network, "network", "counter",
		"demo network to run")
	runCmd.Flags().Uint64Var(&runFlags.ticks, "ticks", 10,
		"number of ticks to execute")
	runCmd.Flags().StringVar(&runFlags.tracePath, "trace", "",
		"record every channel operation into this SQLite database")
	runCmd.Flags().StringVar(&runFlags.perfPath, "perf", "",
		"record channel performance metrics into this SQLite database")
	runCmd.Flags().Uint64Var(&runFlags.perfPeriod, "perf-period", 100,
		"summary period of the performance metrics, in ticks")
	runCmd.Flags().BoolVar(&runFlags.monitor, "monitor", false,
		"serve the monitoring API while running")
	runCmd.Flags().IntVar(&runFlags.port, "port", envPort(0),
		"port of the monitoring server, 0 picks a random port")
	runCmd.Flags().BoolVar(&runFlags.browser, "browser", false,
		"open the monitoring dashboard in the system browser")

	rootCmd.AddCommand(runCmd)
}

func runNetwork() error {
	it, err := buildNetwork(runFlags.network)
	if err != nil {
		return err
	}

	if runFlags.tracePath != "" {
		writer := datarecording.NewSQLiteWriter(runFlags.tracePath)
		writer.Init()
		tracer := tracing.NewChannelTracer(writer, it)
		tracer.Attach(it)
	}

	var perfAnalyzer *analysis.PerfAnalyzer
	if runFlags.perfPath != "" {
		perfAnalyzer = analysis.MakePerfAnalyzerBuilder().
			WithSQLiteBackend(runFlags.perfPath).
			WithPeriod(runFlags.perfPeriod).
			Build()
		perfAnalyzer.RegisterInterpreter(it)
	}

	var bar *monitoring.ProgressBar
	if runFlags.monitor {
		monitor := monitoring.NewMonitor().
			WithPortNumber(runFlags.port)
		if runFlags.browser {
			monitor = monitor.WithBrowserLaunch()
		}

		monitor.RegisterInterpreter(it)
		if perfAnalyzer != nil {
			monitor.RegisterPerfAnalyzer(perfAnalyzer)
		}

		monitor.StartServer()
		bar = monitor.CreateProgressBar(runFlags.network, runFlags.ticks)
	}

	for i := uint64(0); i < runFlags.ticks; i++ {
		if err := it.Tick(); err != nil {
			fmt.Fprintf(os.Stderr, "Stopped after %d ticks: %s\n",
				it.TickCount(), err)
			break
		}

		if bar != nil {
			bar.IncrementFinished(1)
		}
	}

	printOutputs(it)
	atexit.Exit(0)

	return nil
}

// printOutputs drains every send-only channel and prints the values the
// network produced.
func printOutputs(it *interp.Interpreter) {
	for _, q := range it.QueueManager().Queues() {
		if q.Channel().Kind() != ir.SendOnly {
			continue
		}

		for {
			v, err := q.Dequeue()
			if err != nil {
				break
			}

			fmt.Printf("%s: %s\n", q.Name(), v.String())
		}
	}
}
