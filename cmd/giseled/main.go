// Command giseled is the live MIDI sequencer engine's process entry
// point: it opens the audio host port, opens the OSC control socket,
// prints a prompt, and terminates on end-of-line by shutting the
// sequencer down cleanly (spec.md §6.3).
package main

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"nitro-seq/internal/control"
	"nitro-seq/internal/logging"
	"nitro-seq/internal/rtio"
	"nitro-seq/internal/sequencer"
	"nitro-seq/internal/seqerr"
	"nitro-seq/internal/tick"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "giseled",
		Short: "A live MIDI sequencer engine",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		udpPort  int
		bpm      float32
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the audio port and control socket and run until EOF on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(udpPort, bpm, logLevel)
		},
	}
	cmd.Flags().IntVar(&udpPort, "udp-port", control.DefaultPort, "UDP port the control plane listens on")
	cmd.Flags().Float32Var(&bpm, "bpm", sequencer.DefaultBPM, "initial tempo in beats per minute")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level: none|error|warning|info|debug|trace")
	return cmd
}

func run(udpPort int, bpm float32, logLevel string) error {
	log := logging.New(10000)
	log.SetMinLevel(parseLevel(logLevel))

	seq := sequencer.New(bpm, uint64(time.Now().UnixNano()), log)

	host := newTickerHost(5 * time.Millisecond)
	if err := host.Activate(); err != nil {
		return fmt.Errorf("%w: activating audio host: %v", seqerr.ErrFatal, err)
	}
	defer host.Deactivate()

	transport, err := control.ListenUDP(fmt.Sprintf(":%d", udpPort))
	if err != nil {
		return fmt.Errorf("%w: opening control socket: %v", seqerr.ErrFatal, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		runRealtimeLoop(seq, host)
	}()
	go func() {
		defer wg.Done()
		control.Loop(transport, seq)
	}()

	fmt.Println("giseled running. Press enter to shut down.")
	bufio.NewReader(os.Stdin).ReadString('\n')

	seq.SetStatus(sequencer.StatusShutdown)
	host.Deactivate()
	wg.Wait()
	return nil
}

// runRealtimeLoop drives Tick from the host's cycle source until the host
// reports it has been deactivated, standing in for the realtime thread
// spec.md §5 describes as host-driven.
func runRealtimeLoop(seq *sequencer.Sequencer, host tick.Host) {
	for {
		cycle, w, ok := host.NextCycle()
		if !ok {
			return
		}
		tick.Tick(seq, cycle, w)
	}
}

func parseLevel(s string) logging.Level {
	switch s {
	case "error":
		return logging.LevelError
	case "warning":
		return logging.LevelWarning
	case "info":
		return logging.LevelInfo
	case "debug":
		return logging.LevelDebug
	case "trace":
		return logging.LevelTrace
	default:
		return logging.LevelNone
	}
}

// tickerHost is a reference Host implementation driven by a time.Ticker
// instead of a real JACK/CoreAudio client, since this module has no CGO
// audio binding available in the dependency pack (see DESIGN.md). Writes
// go to stdout as hex, standing in for a real MIDI output port.
type tickerHost struct {
	interval time.Duration
	ticker   *time.Ticker
	start    time.Time
	lastUsec uint64
	mu       sync.Mutex
	active   bool
	done     chan struct{}
}

func newTickerHost(interval time.Duration) *tickerHost {
	return &tickerHost{interval: interval}
}

func (h *tickerHost) Activate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticker = time.NewTicker(h.interval)
	h.start = time.Now()
	h.active = true
	h.done = make(chan struct{})
	return nil
}

func (h *tickerHost) Deactivate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return
	}
	h.active = false
	h.ticker.Stop()
	close(h.done)
}

func (h *tickerHost) NextCycle() (rtio.CycleTimes, rtio.Writer, bool) {
	h.mu.Lock()
	ticker, done := h.ticker, h.done
	h.mu.Unlock()
	if ticker == nil {
		return rtio.CycleTimes{}, nil, false
	}

	select {
	case <-ticker.C:
	case <-done:
		return rtio.CycleTimes{}, nil, false
	}

	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return rtio.CycleTimes{}, nil, false
	}
	nextUsec := uint64(time.Since(h.start).Microseconds())
	current := h.lastUsec
	h.lastUsec = nextUsec
	h.mu.Unlock()

	return rtio.CycleTimes{CurrentUsec: current, NextUsec: nextUsec, FramesSinceCycleStart: 0}, stdoutWriter{}, true
}

// stdoutWriter prints raw MIDI bytes in hex, the reference sink for a
// module with no CGO MIDI output driver available.
type stdoutWriter struct{}

func (stdoutWriter) Write(m rtio.RawMidi) error {
	fmt.Printf("midi out: % x\n", m.Bytes)
	return nil
}
