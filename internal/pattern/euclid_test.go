package pattern

import (
	"reflect"
	"testing"

	"golang.org/x/exp/rand"
)

func TestBjorklund(t *testing.T) {
	cases := []struct {
		pulses, steps int
		want          []int
	}{
		{0, 0, []int{}},
		{0, 1, []int{0}},
		{1, 1, []int{1}},
		{1, 2, []int{1, 0}},
		{1, 3, []int{1, 0, 0}},
		{1, 4, []int{1, 0, 0, 0}},
		{2, 3, []int{1, 0, 1}},
		{2, 5, []int{1, 0, 1, 0, 0}},
		{3, 4, []int{1, 0, 1, 1}},
		{3, 3, []int{1, 1, 1}},
		{4, 12, []int{1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0}},
		{5, 8, []int{1, 0, 1, 1, 0, 1, 1, 0}},
		{7, 8, []int{1, 0, 1, 1, 1, 1, 1, 1}},
		{13, 24, []int{1, 0, 1, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0}},
	}
	for _, tc := range cases {
		got := Bjorklund(tc.pulses, tc.steps)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Bjorklund(%d,%d) = %v, want %v", tc.pulses, tc.steps, got, tc.want)
		}
	}
}

func TestBjorklundPulseCount(t *testing.T) {
	for steps := 1; steps <= 16; steps++ {
		for pulses := 0; pulses <= steps; pulses++ {
			out := Bjorklund(pulses, steps)
			count := 0
			for _, v := range out {
				if v == 1 {
					count++
				}
			}
			if count != pulses {
				t.Errorf("Bjorklund(%d,%d) has %d ones, want %d", pulses, steps, count, pulses)
			}
			if len(out) != steps {
				t.Errorf("Bjorklund(%d,%d) has length %d, want %d", pulses, steps, len(out), steps)
			}
		}
	}
}

func TestGenerateEuclidRefusesMismatchedLoop(t *testing.T) {
	p := Params{
		Kind:        EuclidKind(3, 8),
		LoopLength:  5, // not a multiple of 8
		RootNote:    60,
		VelocityAvg: 100,
		MidiCh:      1,
	}
	src := rand.NewSource(1)
	if _, err := GenerateEuclid(p, src); err == nil {
		t.Fatal("expected generation to be refused for mismatched loop length")
	}
}

func TestGenerateEuclidNoteOnPositions(t *testing.T) {
	p := Params{
		Kind:        EuclidKind(3, 8),
		LoopLength:  8,
		RootNote:    60,
		NoteLenAvg:  0.2,
		VelocityAvg: 100,
		MidiCh:      1,
	}
	src := rand.NewSource(42)
	events, err := GenerateEuclid(p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var onPositions []float32
	for _, e := range events {
		if e.Kind.Note.OnOff {
			onPositions = append(onPositions, e.BarPos)
		}
	}
	want := []float32{0, 3, 6}
	if !reflect.DeepEqual(onPositions, want) {
		t.Errorf("note-on positions = %v, want %v", onPositions, want)
	}
}
