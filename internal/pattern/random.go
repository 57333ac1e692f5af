package pattern

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"nitro-seq/internal/event"
	"nitro-seq/internal/seqerr"
	"nitro-seq/internal/theory"
)

// clampVelocity truncates a sampled float into a MIDI velocity byte.
func clampVelocity(v float64) uint8 {
	return uint8(theory.Clamp127(int(v)))
}

// GenerateRandom builds nb_events note-on/note-off pairs over the
// diatonic Ionian scale rooted at RootNote, per spec.md §4.1: pitch
// drawn uniformly from the scale, velocity and note length drawn from
// Normal(avg, div), and the next note's offset advanced by a draw from
// Uniform(0, loop_length), wrapping modulo loop_length throughout.
func GenerateRandom(p Params, src rand.Source) ([]event.Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Kind.Tag != KindRandom {
		return nil, fmt.Errorf("%w: GenerateRandom called with non-Random params", seqerr.ErrInvalidArgument)
	}

	scale := theory.IonianScale(int(p.RootNote))
	if len(scale) == 0 {
		return []event.Event{}, nil
	}

	pitchPicker := rand.New(src)
	velDist := distuv.Normal{Mu: float64(p.VelocityAvg), Sigma: float64(p.VelocityDiv), Src: src}
	lenDist := distuv.Normal{Mu: float64(p.NoteLenAvg), Sigma: float64(p.NoteLenDiv), Src: src}
	offsetDist := distuv.Uniform{Min: 0, Max: float64(p.LoopLength), Src: src}

	events := make([]event.Event, 0, 2*int(p.Kind.NbEvents))
	offset := 0.0
	for i := uint32(0); i < p.Kind.NbEvents; i++ {
		pitch := scale[pitchPicker.Intn(len(scale))]
		velocity := clampVelocity(velDist.Rand())
		length := lenDist.Rand()
		if length < 0 {
			length = 0
		}
		offPos := math.Mod(offset+length, float64(p.LoopLength))

		events = append(events,
			event.Event{
				Kind:   event.NoteKind(event.MidiNote{OnOff: true, Channel: p.MidiCh, Pitch: uint8(pitch), Velocity: velocity}),
				BarPos: float32(offset),
			},
			event.Event{
				Kind:   event.NoteKind(event.MidiNote{OnOff: false, Channel: p.MidiCh, Pitch: uint8(pitch), Velocity: velocity}),
				BarPos: float32(offPos),
			},
		)

		offset = math.Mod(offset+offsetDist.Rand(), float64(p.LoopLength))
	}
	return events, nil
}
