package pattern

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"nitro-seq/internal/event"
	"nitro-seq/internal/seqerr"
)

// Bjorklund computes the maximally-even placement of pulses pulses over
// steps steps. It ports `gen_euclid`/`gen_euclid_rec` from
// `_examples/original_source/src/midi.rs` verbatim: start with pulses
// head-groups [1] and steps-pulses tail-groups [0], then repeatedly pop
// one group off the end of each of head and tail and concatenate them
// into a new head, until one side runs out. If head runs out first, the
// unpaired tail group is pushed back before stopping — this is the step
// a naive front-to-back zip misses, and it's what makes leftover head
// groups fold into the tail instead of landing un-interleaved at the
// end. If tail instead emptied first and head still has groups left,
// those leftover head groups become the new tail. Recursion stops once
// the (new) tail has 0 or 1 groups left.
func Bjorklund(pulses, steps int) []int {
	if steps <= 0 {
		return []int{}
	}
	if pulses <= 0 {
		return make([]int, steps)
	}
	if pulses >= steps {
		out := make([]int, steps)
		for i := range out {
			out[i] = 1
		}
		return out
	}

	head := make([][]int, pulses)
	for i := range head {
		head[i] = []int{1}
	}
	tail := make([][]int, steps-pulses)
	for i := range tail {
		tail[i] = []int{0}
	}

	return bjorklundRec(head, tail)
}

// popLast removes and returns the last element of s, mirroring Rust's
// Vec::pop (which removes from the end, not the front).
func popLast(s [][]int) ([][]int, []int, bool) {
	if len(s) == 0 {
		return s, nil, false
	}
	last := len(s) - 1
	return s[:last], s[last], true
}

func bjorklundRec(head, tail [][]int) []int {
	var newHead [][]int
	for {
		var t []int
		var ok bool
		tail, t, ok = popLast(tail)
		if !ok {
			break
		}
		var h []int
		head, h, ok = popLast(head)
		if !ok {
			tail = append(tail, t)
			break
		}
		newHead = append(newHead, append(append([]int{}, h...), t...))
	}

	if len(tail) == 0 && len(head) != 0 {
		tail = head
	}

	if len(tail) < 2 {
		out := make([]int, 0)
		for _, g := range newHead {
			out = append(out, g...)
		}
		for _, g := range tail {
			out = append(out, g...)
		}
		return out
	}

	return bjorklundRec(newHead, tail)
}

// GenerateEuclid builds the note-on/note-off event pairs for a Euclid
// base sequence per spec.md §4.1. It refuses (ErrGenerationRefused) when
// pulses > steps or loop_length isn't a multiple of steps, matching
// Params.Validate so callers can call either and get the same verdict.
func GenerateEuclid(p Params, src rand.Source) ([]event.Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Kind.Tag != KindEuclid {
		return nil, fmt.Errorf("%w: GenerateEuclid called with non-Euclid params", seqerr.ErrInvalidArgument)
	}

	pattern := Bjorklund(int(p.Kind.Pulses), int(p.Kind.Steps))
	if len(pattern) == 0 {
		return []event.Event{}, nil
	}

	stepLen := float64(p.LoopLength) / float64(p.Kind.Steps)
	velDist := distuv.Normal{Mu: float64(p.VelocityAvg), Sigma: float64(p.VelocityDiv), Src: src}
	lenDist := distuv.Normal{Mu: float64(p.NoteLenAvg), Sigma: float64(p.NoteLenDiv), Src: src}

	events := make([]event.Event, 0, 2*int(p.Kind.Pulses))
	for i, v := range pattern {
		if v == 0 {
			continue
		}
		onPos := float64(i) * stepLen
		length := lenDist.Rand()
		if length < 0 {
			length = 0
		}
		velocity := clampVelocity(velDist.Rand())
		offPos := math.Mod(onPos+length, float64(p.LoopLength))

		events = append(events,
			event.Event{
				Kind:   event.NoteKind(event.MidiNote{OnOff: true, Channel: p.MidiCh, Pitch: p.RootNote, Velocity: velocity}),
				BarPos: float32(onPos),
			},
			event.Event{
				Kind:   event.NoteKind(event.MidiNote{OnOff: false, Channel: p.MidiCh, Pitch: p.RootNote, Velocity: velocity}),
				BarPos: float32(offPos),
			},
		)
	}
	return events, nil
}
