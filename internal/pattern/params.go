// Package pattern implements the two pure pattern generators spec.md
// §4.1 names: a random diatonic generator and a Euclidean-rhythm
// (Bjorklund) generator. Neither generator mutates anything outside its
// return value, and both are deterministic given the same rand.Source.
package pattern

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"nitro-seq/internal/event"
	"nitro-seq/internal/seqerr"
)

// KindTag discriminates the BaseSeqKind tagged union (spec.md §3).
type KindTag int

const (
	KindRandom KindTag = iota
	KindEuclid
)

// Kind is the `{ Random{nb_events}, Euclid{pulses, steps} }` variant.
type Kind struct {
	Tag      KindTag
	NbEvents uint32 // valid when Tag == KindRandom
	Pulses   uint32 // valid when Tag == KindEuclid
	Steps    uint32 // valid when Tag == KindEuclid
}

// RandomKind builds a Random variant.
func RandomKind(nbEvents uint32) Kind { return Kind{Tag: KindRandom, NbEvents: nbEvents} }

// EuclidKind builds a Euclid variant.
func EuclidKind(pulses, steps uint32) Kind {
	return Kind{Tag: KindEuclid, Pulses: pulses, Steps: steps}
}

// Params is BaseSeqParams from spec.md §3: the full description a
// generator needs to produce one base sequence's event buffer.
type Params struct {
	Kind        Kind
	LoopLength  float32 // bars, > 0
	RootNote    uint8   // MIDI pitch, the scale root
	NoteLenAvg  float32 // bars
	NoteLenDiv  float32 // >= 0
	VelocityAvg uint8   // 0..127
	VelocityDiv float32 // >= 0
	MidiCh      uint8   // 1..16
}

// Validate checks the invariants spec.md §3 assigns to BaseSeqParams and
// the Euclid-specific invariant (pulses <= steps, loop_length a multiple
// of steps). It never touches state; callers validate before committing.
func (p Params) Validate() error {
	if p.LoopLength <= 0 {
		return fmt.Errorf("%w: loop_length must be > 0, got %v", seqerr.ErrInvalidArgument, p.LoopLength)
	}
	if p.RootNote > 127 {
		return fmt.Errorf("%w: root_note %d out of MIDI range", seqerr.ErrInvalidArgument, p.RootNote)
	}
	if p.NoteLenDiv < 0 {
		return fmt.Errorf("%w: note_len_div must be >= 0", seqerr.ErrInvalidArgument)
	}
	if p.VelocityAvg > 127 {
		return fmt.Errorf("%w: velocity_avg %d out of MIDI range", seqerr.ErrInvalidArgument, p.VelocityAvg)
	}
	if p.VelocityDiv < 0 {
		return fmt.Errorf("%w: velocity_div must be >= 0", seqerr.ErrInvalidArgument)
	}
	if p.MidiCh < 1 || p.MidiCh > 16 {
		return fmt.Errorf("%w: midi_ch %d out of range [1,16]", seqerr.ErrInvalidArgument, p.MidiCh)
	}
	if p.Kind.Tag == KindEuclid {
		if p.Kind.Pulses > p.Kind.Steps {
			return fmt.Errorf("%w: euclid pulses %d > steps %d", seqerr.ErrGenerationRefused, p.Kind.Pulses, p.Kind.Steps)
		}
		if p.Kind.Steps > 0 && math.Mod(float64(p.LoopLength), float64(p.Kind.Steps)) > euclidModTolerance {
			return fmt.Errorf("%w: loop_length %v is not a multiple of steps %d", seqerr.ErrGenerationRefused, p.LoopLength, p.Kind.Steps)
		}
	}
	return nil
}

// euclidModTolerance absorbs float32 rounding when checking that
// loop_length divides evenly into steps.
const euclidModTolerance = 1e-4

// Generate dispatches to the generator matching p.Kind.Tag.
func Generate(p Params, src rand.Source) ([]event.Event, error) {
	switch p.Kind.Tag {
	case KindRandom:
		return GenerateRandom(p, src)
	case KindEuclid:
		return GenerateEuclid(p, src)
	default:
		return nil, fmt.Errorf("%w: unknown base sequence kind %d", seqerr.ErrInvalidArgument, p.Kind.Tag)
	}
}
