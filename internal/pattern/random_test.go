package pattern

import (
	"testing"

	"golang.org/x/exp/rand"
)

func TestGenerateRandomEventCount(t *testing.T) {
	p := Params{
		Kind:        RandomKind(5),
		LoopLength:  4,
		RootNote:    60,
		NoteLenAvg:  0.5,
		VelocityAvg: 90,
		MidiCh:      1,
	}
	src := rand.NewSource(7)
	events, err := GenerateRandom(p, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 10 {
		t.Fatalf("len(events) = %d, want 10 (2*nb_events)", len(events))
	}
	for _, e := range events {
		if e.BarPos < 0 || e.BarPos >= p.LoopLength {
			t.Errorf("event bar_pos %v out of [0,%v)", e.BarPos, p.LoopLength)
		}
	}
}

func TestGenerateRandomDeterministic(t *testing.T) {
	p := Params{
		Kind:        RandomKind(3),
		LoopLength:  4,
		RootNote:    60,
		NoteLenAvg:  0.5,
		VelocityAvg: 90,
		MidiCh:      1,
	}
	a, err := GenerateRandom(p, rand.NewSource(99))
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateRandom(p, rand.NewSource(99))
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("generation not deterministic at index %d: %v != %v", i, a[i], b[i])
		}
	}
}
