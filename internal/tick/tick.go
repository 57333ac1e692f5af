// Package tick implements the realtime process-cycle callback: the host
// invokes Tick once per audio process cycle, and it advances the
// musical clock, runs the start/pause/stop state machine, and writes
// due MIDI events into the host's output buffer (spec.md §4.5).
//
// Tick reads each base sequence's buffer one event at a time through
// EventHead/IncrEventHead instead of copying it, and never blocks on I/O:
// writer failures and skipped/expired events are logged and the loop
// continues, per spec.md §4.7. It is not allocation-free: every emitted
// event copies its base sequence's fx id list (FxProcIDs), and every log
// call formats its message before the logger's level filter runs.
package tick

import (
	"math"

	"nitro-seq/internal/baseseq"
	"nitro-seq/internal/event"
	"nitro-seq/internal/logging"
	"nitro-seq/internal/rtio"
	"nitro-seq/internal/sequencer"
)

// Signal is the Continue/stop verdict the host callback contract
// (spec.md §6.1) expects back from one tick.
type Signal int

const (
	Continue Signal = iota
)

// usecPerBarDivisor converts BPM and an elapsed microsecond span into
// bars: one bar is 4 beats, so usec_per_bar = 60_000_000 * 4 / BPM, and
// bars elapsed = elapsed_usec / usec_per_bar = elapsed_usec * BPM / 2.4e8.
const usecPerBarDivisor = 2.4e8

// Tick runs one process cycle against seq, writing due MIDI events
// through w. It always returns Continue; the realtime tick never
// propagates failure to its caller (spec.md §4.7).
func Tick(seq *sequencer.Sequencer, cycle rtio.CycleTimes, w rtio.Writer) Signal {
	params := seq.Params()
	log := seq.Logger()

	var (
		silenced   bool // emit the all-notes-off tail this tick
		stopping   bool // also reset base sequences and the window
		shouldPlay bool // iterate base sequences and emit this tick
		window     sequencer.Internal
	)

	seq.WithInternal(func(in *sequencer.Internal) {
		if params.Status == sequencer.StatusStart {
			in.Status = sequencer.InternalPlaying
		}
		if in.Status == sequencer.InternalSilence {
			return
		}

		prevBar := in.CurrentBar
		deltaBars := float64(params.BPM) * float64(cycle.NextUsec-cycle.CurrentUsec) / usecPerBarDivisor
		in.Window.Advance(deltaBars)
		in.CurrentBar = uint32(in.Window.End)
		if log != nil && in.CurrentBar != prevBar {
			log.Logf(logging.ComponentRealtime, logging.LevelTrace, "bar %d", in.CurrentBar)
		}

		if params.Status == sequencer.StatusPause || params.Status == sequencer.StatusStop || params.Status == sequencer.StatusShutdown {
			silenced = true
			stopping = params.Status == sequencer.StatusStop
			in.Status = sequencer.InternalSilence
			return
		}

		shouldPlay = true
		window = *in
	})

	if silenced {
		seq.NotesOff(w, cycle.FramesSinceCycleStart)
		if stopping {
			seq.ResetBaseSeqs()
			seq.WithInternal(func(in *sequencer.Internal) { in.Window.Reset() })
		}
		return Continue
	}

	if !shouldPlay {
		return Continue
	}

	seq.ForEachBaseSeq(func(bs *baseseq.BaseSeq) {
		emitDue(seq, bs, window, w, cycle.FramesSinceCycleStart, log)
	})

	return Continue
}

// emitDue walks bs's buffer from its current head, emitting every event
// due in this cycle's window and skipping any left stranded by a
// shrunk loop length, stopping at the first event not yet due or after
// one full pass over the buffer, whichever comes first.
func emitDue(seq *sequencer.Sequencer, bs *baseseq.BaseSeq, window sequencer.Internal, w rtio.Writer, frame uint32, log *logging.Logger) {
	loopLength := float64(bs.LoopLength())
	if loopLength <= 0 {
		return
	}

	n := bs.EventBufferLen()
	for i := 0; i < n; i++ {
		_, e, ok := bs.EventHead()
		if !ok {
			return
		}

		if float64(e.BarPos) >= loopLength {
			if log != nil {
				log.Logf(logging.ComponentRealtime, logging.LevelDebug,
					"base_seq %d: skipping event at %.3f, outside shrunk loop_length %.3f", bs.ID(), e.BarPos, loopLength)
			}
			bs.IncrEventHead()
			continue
		}

		if !eventInCycle(float64(e.BarPos), loopLength, window.Window.Start, window.Window.End) {
			return
		}

		emitted := seq.ProcessEvent(bs.FxProcIDs(), e)
		if emitted.Kind.Tag == event.KindMidiNote {
			raw := rtio.RawMidi{Time: frame, Bytes: emitted.Kind.Note.RawBytes()}
			if err := w.Write(raw); err != nil && log != nil {
				log.Logf(logging.ComponentRealtime, logging.LevelWarning, "write failed: %v", err)
			}
		}
		bs.IncrEventHead()
	}
}

// eventInCycle implements spec.md §4.5's ordering rule: ws=window_start
// mod L, we=window_end mod L; if ws<we the cycle doesn't wrap the loop
// boundary and membership is the plain half-open interval; otherwise it
// wraps and membership is the union of [ws,L) and [0,we).
func eventInCycle(pos, loopLength, windowStart, windowEnd float64) bool {
	ws := math.Mod(windowStart, loopLength)
	we := math.Mod(windowEnd, loopLength)
	if ws < 0 {
		ws += loopLength
	}
	if we < 0 {
		we += loopLength
	}
	if ws < we {
		return ws <= pos && pos < we
	}
	return ws <= pos || pos < we
}
