// Package fx implements per-event effect processors: stateless-per-event
// transforms invoked on each emitted event before output (spec.md §4.4).
package fx

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"nitro-seq/internal/event"
	"nitro-seq/internal/theory"
)

// Processor transforms an event before it reaches the output buffer.
// Process receives an already-cloned event; implementations are free to
// hold internal mutable state as long as it's only ever touched from the
// realtime thread's exclusive per-tick access, per spec.md §4.4.
type Processor interface {
	ID() uint32
	Process(e event.Event) event.Event
}

// PitchJitter adds Normal(0,1)-distributed pitch jitter to every note
// event it processes, saturating to [0,127] — the example processor
// named in spec.md §4.4.
type PitchJitter struct {
	id   uint32
	dist distuv.Normal
}

// NewPitchJitter constructs a pitch-jitter processor with the given id,
// sampling from src. Pass the same src used elsewhere in a run for fully
// deterministic playback in tests.
func NewPitchJitter(id uint32, src rand.Source) *PitchJitter {
	return &PitchJitter{id: id, dist: distuv.Normal{Mu: 0, Sigma: 1, Src: src}}
}

// ID returns the processor's registry id.
func (p *PitchJitter) ID() uint32 { return p.id }

// Process returns e with its pitch jittered, for MidiNote events. Other
// event kinds pass through unchanged.
func (p *PitchJitter) Process(e event.Event) event.Event {
	if e.Kind.Tag != event.KindMidiNote {
		return e
	}
	n := e.Kind.Note
	jitter := int(p.dist.Rand())
	n.Pitch = uint8(theory.Clamp127(int(n.Pitch) + jitter))
	e.Kind.Note = n
	return e
}
