package sequencer

import (
	"errors"
	"testing"

	"nitro-seq/internal/pattern"
	"nitro-seq/internal/rtio"
	"nitro-seq/internal/seqerr"
)

func randomParams(ch uint8) pattern.Params {
	return pattern.Params{
		Kind:        pattern.RandomKind(2),
		LoopLength:  4,
		RootNote:    60,
		NoteLenAvg:  0.5,
		VelocityAvg: 90,
		MidiCh:      ch,
	}
}

func TestAddRemoveGetBaseSeq(t *testing.T) {
	s := New(DefaultBPM, 1, nil)
	id, err := s.AddBaseSeq(randomParams(1), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.getBaseSeq(id); err != nil {
		t.Fatalf("expected to find base sequence %d: %v", id, err)
	}
	if err := s.RemoveBaseSeq(id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.getBaseSeq(id); !errors.Is(err, seqerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveUnknownIDFails(t *testing.T) {
	s := New(DefaultBPM, 1, nil)
	if err := s.RemoveBaseSeq(999); !errors.Is(err, seqerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyResetsIDCounter(t *testing.T) {
	s := New(DefaultBPM, 1, nil)
	id1, _ := s.AddBaseSeq(randomParams(1), 0)
	s.Empty()
	id2, _ := s.AddBaseSeq(randomParams(1), 0)
	if id1 != 0 || id2 != 0 {
		t.Fatalf("expected id counter reset to 0, got id1=%d id2=%d", id1, id2)
	}
}

func TestChannelsInUseDeduplicates(t *testing.T) {
	s := New(DefaultBPM, 1, nil)
	s.AddBaseSeq(randomParams(1), 0)
	s.AddBaseSeq(randomParams(1), 0)
	s.AddBaseSeq(randomParams(2), 0)
	channels := s.ChannelsInUse()
	if len(channels) != 2 {
		t.Fatalf("expected 2 distinct channels, got %v", channels)
	}
}

type fakeWriter struct{ writes int }

func (f *fakeWriter) Write(rtio.RawMidi) error {
	f.writes++
	return nil
}

func TestNotesOffCoversOnlyUsedChannels(t *testing.T) {
	s := New(DefaultBPM, 1, nil)
	s.AddBaseSeq(randomParams(1), 0)
	s.AddBaseSeq(randomParams(3), 0)

	w := &fakeWriter{}
	s.NotesOff(w, 0)
	if w.writes != 2*128 {
		t.Fatalf("writes = %d, want %d", w.writes, 2*128)
	}
}

func TestAddFxProcessorAttachesToOwner(t *testing.T) {
	s := New(DefaultBPM, 1, nil)
	ownerID, _ := s.AddBaseSeq(randomParams(1), 0)
	fxID, err := s.AddFxProcessor(ownerID)
	if err != nil {
		t.Fatal(err)
	}
	bs, _ := s.getBaseSeq(ownerID)
	ids := bs.FxProcIDs()
	if len(ids) != 1 || ids[0] != fxID {
		t.Fatalf("expected owner's fx ids to contain %d, got %v", fxID, ids)
	}
}

func TestAdjustBPMByDelta(t *testing.T) {
	s := New(100, 1, nil)
	s.AdjustBPMByDelta(5)
	if got, want := s.BPM(), float32(100+5*5.0/100); got != want {
		t.Fatalf("BPM = %v, want %v", got, want)
	}
}

func TestAdjustBPMByDeltaNeverNegative(t *testing.T) {
	s := New(0.01, 1, nil)
	s.AdjustBPMByDelta(-1)
	if s.BPM() < 0 {
		t.Fatalf("BPM went negative: %v", s.BPM())
	}
}

func TestSetBPMRejectsNonPositive(t *testing.T) {
	s := New(DefaultBPM, 1, nil)
	if err := s.SetBPM(0); !errors.Is(err, seqerr.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
