// Package sequencer implements the aggregate root spec.md §4.3
// describes: global tempo and status, the collection of base sequences,
// the effect processor registry, and the global playback window. It is
// the sole entry point for the control plane; every mutator validates
// its arguments before touching state and returns a typed error
// (internal/seqerr) on failure instead of partially mutating anything.
package sequencer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/rand"

	"nitro-seq/internal/baseseq"
	"nitro-seq/internal/clock"
	"nitro-seq/internal/event"
	"nitro-seq/internal/fx"
	"nitro-seq/internal/logging"
	"nitro-seq/internal/pattern"
	"nitro-seq/internal/rtio"
	"nitro-seq/internal/seqerr"
)

// DefaultBPM is the tempo a freshly constructed Sequencer starts at,
// named per the original source's startup default (see SPEC_FULL.md §4).
const DefaultBPM float32 = 120

// Params is the control-visible slice of sequencer-wide state: status
// and tempo (spec.md §3 SeqParams). id_counter is tracked separately
// (idCounter below) so allocating a new id never contends with the
// realtime tick's read of status/bpm.
type Params struct {
	Status Status
	BPM    float32
}

// Internal is the realtime-observed state (spec.md §3 SeqInternal).
type Internal struct {
	Status     InternalStatus
	Window     clock.Window
	CurrentBar uint32
}

// Sequencer is the aggregate root. Each of its four owned groups —
// params, internal, base_seqs, fx_procs — is behind its own RWMutex so
// the realtime tick only ever waits on the one lock its current step
// needs, per spec.md §5.
type Sequencer struct {
	paramsMu sync.RWMutex
	params   Params

	internalMu sync.RWMutex
	internal   Internal

	baseSeqsMu sync.RWMutex
	baseSeqs   []*baseseq.BaseSeq

	fxProcsMu   sync.RWMutex
	fxProcs     []fx.Processor
	fxProcIndex map[uint32]fx.Processor

	idCounter atomic.Uint32

	rng rand.Source
	log *logging.Logger
}

// New constructs a Sequencer at the given initial BPM. rngSeed seeds the
// shared generation/jitter source (deterministic playback in tests); log
// may be nil to disable logging entirely.
func New(initialBPM float32, rngSeed uint64, log *logging.Logger) *Sequencer {
	return &Sequencer{
		params:      Params{Status: StatusStop, BPM: initialBPM},
		fxProcIndex: make(map[uint32]fx.Processor),
		rng:         rand.NewSource(rngSeed),
		log:         log,
	}
}

func (s *Sequencer) nextID() uint32 {
	return s.idCounter.Add(1) - 1
}

// Params returns a copy of the control-visible state.
func (s *Sequencer) Params() Params {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params
}

// Status returns the current control status.
func (s *Sequencer) Status() Status {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params.Status
}

// SetStatus sets the control status (spec.md §4.6); always succeeds,
// the state machine evaluates transitions at the top of the next tick.
func (s *Sequencer) SetStatus(status Status) {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	s.params.Status = status
}

// BPM returns the current tempo.
func (s *Sequencer) BPM() float32 {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params.BPM
}

// SetBPM validates bpm > 0 and commits it.
func (s *Sequencer) SetBPM(bpm float32) error {
	if bpm <= 0 {
		return fmt.Errorf("%w: bpm must be > 0, got %v", seqerr.ErrInvalidArgument, bpm)
	}
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	s.params.BPM = bpm
	return nil
}

// AdjustBPMByDelta implements /encoder/delta from spec.md §6.2:
// bpm <- max(0, bpm + sign(delta)*delta^2/100).
func (s *Sequencer) AdjustBPMByDelta(delta int) {
	sign := float32(1)
	if delta < 0 {
		sign = -1
	}
	d := float32(delta)
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	next := s.params.BPM + sign*d*d/100
	if next < 0 {
		next = 0
	}
	s.params.BPM = next
}

// Internal returns a copy of the realtime-observed state.
func (s *Sequencer) Internal() Internal {
	s.internalMu.RLock()
	defer s.internalMu.RUnlock()
	return s.internal
}

// WithInternal runs fn with exclusive access to the internal state,
// mirroring the single write-lock acquisition the realtime tick takes
// at the top of each cycle (spec.md §4.5 step 1).
func (s *Sequencer) WithInternal(fn func(*Internal)) {
	s.internalMu.Lock()
	defer s.internalMu.Unlock()
	fn(&s.internal)
}

// AddBaseSeq constructs and appends a new base sequence, assigning it
// the next id. windowEnd seeds the new sequence's head position.
func (s *Sequencer) AddBaseSeq(params pattern.Params, windowEnd float64) (uint32, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	id := s.nextID()
	bs, err := baseseq.New(id, params, s.rng, windowEnd, s.log)
	if err != nil {
		return 0, err
	}

	s.baseSeqsMu.Lock()
	s.baseSeqs = append(s.baseSeqs, bs)
	s.baseSeqsMu.Unlock()

	if s.log != nil {
		s.log.Logf(logging.ComponentSequencer, logging.LevelInfo, "added base sequence %d", id)
	}
	return id, nil
}

// AddPrebuiltBaseSeq appends an already-constructed base sequence
// without going through a pattern generator. Exported for tests that
// need fixed, reproducible event positions to exercise the realtime
// tick; production callers should use AddBaseSeq.
func (s *Sequencer) AddPrebuiltBaseSeq(bs *baseseq.BaseSeq) {
	s.baseSeqsMu.Lock()
	defer s.baseSeqsMu.Unlock()
	s.baseSeqs = append(s.baseSeqs, bs)
}

// RemoveBaseSeq drops the base sequence with the given id.
func (s *Sequencer) RemoveBaseSeq(id uint32) error {
	s.baseSeqsMu.Lock()
	defer s.baseSeqsMu.Unlock()
	for i, bs := range s.baseSeqs {
		if bs.ID() == id {
			s.baseSeqs = append(s.baseSeqs[:i], s.baseSeqs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: base sequence %d", seqerr.ErrNotFound, id)
}

// getBaseSeq looks up a base sequence by id under the base_seqs read lock.
func (s *Sequencer) getBaseSeq(id uint32) (*baseseq.BaseSeq, error) {
	s.baseSeqsMu.RLock()
	defer s.baseSeqsMu.RUnlock()
	for _, bs := range s.baseSeqs {
		if bs.ID() == id {
			return bs, nil
		}
	}
	return nil, fmt.Errorf("%w: base sequence %d", seqerr.ErrNotFound, id)
}

// ForEachBaseSeq iterates base sequences in append order under a single
// read-lock acquisition, the way the realtime tick does (spec.md §4.5
// step 6) — no slice copy, so no allocation on the hot path.
func (s *Sequencer) ForEachBaseSeq(fn func(*baseseq.BaseSeq)) {
	s.baseSeqsMu.RLock()
	defer s.baseSeqsMu.RUnlock()
	for _, bs := range s.baseSeqs {
		fn(bs)
	}
}

// RegenBaseSeq regenerates a base sequence's event buffer from its
// current params.
func (s *Sequencer) RegenBaseSeq(id uint32) error {
	bs, err := s.getBaseSeq(id)
	if err != nil {
		return err
	}
	return bs.GenFill(s.Internal().Window.End)
}

// ChangeNoteLen delegates to the named base sequence's ChangeNoteLen.
func (s *Sequencer) ChangeNoteLen(id uint32, length float32) error {
	bs, err := s.getBaseSeq(id)
	if err != nil {
		return err
	}
	return bs.ChangeNoteLen(length, s.Internal().Window.End)
}

// ChangeLoopLen delegates to the named base sequence's ChangeLoopLen.
func (s *Sequencer) ChangeLoopLen(id uint32, length float32) error {
	bs, err := s.getBaseSeq(id)
	if err != nil {
		return err
	}
	return bs.ChangeLoopLen(length, s.Internal().Window.End)
}

// SetNbEvents delegates to the named base sequence's SetNbEvents.
func (s *Sequencer) SetNbEvents(id uint32, n uint32) error {
	bs, err := s.getBaseSeq(id)
	if err != nil {
		return err
	}
	return bs.SetNbEvents(n, s.Internal().Window.End)
}

// Transpose delegates to the named base sequence's Transpose.
func (s *Sequencer) Transpose(id uint32, root uint8) error {
	bs, err := s.getBaseSeq(id)
	if err != nil {
		return err
	}
	return bs.Transpose(root)
}

// AddFxProcessor constructs a pitch-jitter processor owned by
// ownerBaseSeqID, registers it, and attaches its id to the owner.
func (s *Sequencer) AddFxProcessor(ownerBaseSeqID uint32) (uint32, error) {
	bs, err := s.getBaseSeq(ownerBaseSeqID)
	if err != nil {
		return 0, err
	}

	id := s.nextID()
	proc := fx.NewPitchJitter(id, s.rng)

	s.fxProcsMu.Lock()
	s.fxProcs = append(s.fxProcs, proc)
	s.fxProcIndex[id] = proc
	s.fxProcsMu.Unlock()

	bs.AttachFxProc(id)
	return id, nil
}

// ProcessEvent applies the named effect processors, in order, to e.
// Missing ids are silently skipped (spec.md §4.3).
func (s *Sequencer) ProcessEvent(fxIDs []uint32, e event.Event) event.Event {
	s.fxProcsMu.RLock()
	defer s.fxProcsMu.RUnlock()
	for _, id := range fxIDs {
		if proc, ok := s.fxProcIndex[id]; ok {
			e = proc.Process(e)
		}
	}
	return e
}

// Empty drops all base sequences and resets the id counter to 0.
// Resetting the counter means ids are unique only within a generation —
// see DESIGN.md's resolution of the corresponding Open Question.
func (s *Sequencer) Empty() {
	s.baseSeqsMu.Lock()
	s.baseSeqs = nil
	s.baseSeqsMu.Unlock()

	s.fxProcsMu.Lock()
	s.fxProcs = nil
	s.fxProcIndex = make(map[uint32]fx.Processor)
	s.fxProcsMu.Unlock()

	s.idCounter.Store(0)
}

// ResetBaseSeqs sets every base sequence's head to 0 (spec.md §4.3).
func (s *Sequencer) ResetBaseSeqs() {
	s.ForEachBaseSeq(func(bs *baseseq.BaseSeq) {
		bs.ResetHead()
	})
}

// ChannelsInUse returns the distinct MIDI channels configured across all
// current base sequences, used by NotesOff.
func (s *Sequencer) ChannelsInUse() []uint8 {
	seen := make(map[uint8]struct{})
	s.ForEachBaseSeq(func(bs *baseseq.BaseSeq) {
		seen[bs.MidiChannel()] = struct{}{}
	})
	out := make([]uint8, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	return out
}

// NotesOff emits a note-off (velocity=1) for every pitch 0..127 on every
// channel actually in use, the all-notes-off tail spec.md §4.3/§4.5
// require on Pause and Stop. Write errors are logged and playback
// continues (spec.md §4.7).
func (s *Sequencer) NotesOff(w rtio.Writer, frame uint32) {
	for _, ch := range s.ChannelsInUse() {
		for pitch := 0; pitch <= 127; pitch++ {
			n := event.MidiNote{OnOff: false, Channel: ch, Pitch: uint8(pitch), Velocity: 1}
			raw := rtio.RawMidi{Time: frame, Bytes: n.RawBytes()}
			if err := w.Write(raw); err != nil {
				if s.log != nil {
					s.log.Logf(logging.ComponentRealtime, logging.LevelWarning, "notes_off write failed: %v", err)
				}
			}
		}
	}
}

// Logger exposes the sequencer's logger to collaborators (internal/tick,
// internal/control) that need to report through the same sink.
func (s *Sequencer) Logger() *logging.Logger { return s.log }
