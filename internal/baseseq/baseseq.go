// Package baseseq implements one independently-looping voice: its
// parameters, sorted event buffer, playback head, and attached effect
// processor ids (spec.md §3, §4.2). Mutators validate before touching
// state and leave the buffer sorted and the head in range afterward.
package baseseq

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/exp/rand"

	"nitro-seq/internal/event"
	"nitro-seq/internal/logging"
	"nitro-seq/internal/pattern"
	"nitro-seq/internal/seqerr"
	"nitro-seq/internal/theory"
)

// BaseSeq is one looping voice. Its four owned fields — params, event
// buffer, event head, and fx processor id list — are guarded by
// independent locks so a control-thread mutator never blocks the
// realtime tick longer than the single field it actually needs (spec.md
// §5): params and the buffer+head pair are separate locks because a
// param read (e.g. LoopLength for event_in_cycle) must never wait on a
// buffer rewrite in progress, and vice versa.
type BaseSeq struct {
	id uint32

	paramsMu sync.RWMutex
	params   pattern.Params

	bufMu       sync.RWMutex
	eventBuffer []event.Event
	eventHead   int

	fxMu      sync.RWMutex
	fxProcIDs []uint32

	rng rand.Source
	log *logging.Logger
}

// New constructs a BaseSeq and immediately fills its event buffer,
// positioning the head relative to windowEnd. Fails if params are
// invalid (bad Euclid geometry, out-of-range fields).
func New(id uint32, params pattern.Params, rng rand.Source, windowEnd float64, log *logging.Logger) (*BaseSeq, error) {
	bs := &BaseSeq{id: id, params: params, rng: rng, log: log}
	if err := bs.GenFill(windowEnd); err != nil {
		return nil, err
	}
	return bs, nil
}

// NewWithEvents constructs a BaseSeq from an explicit, pre-sorted or
// unsorted event list instead of invoking a pattern generator. Used by
// tests that need fixed, reproducible event positions to exercise the
// realtime tick's scheduling rather than a generator's randomness.
func NewWithEvents(id uint32, params pattern.Params, events []event.Event, windowEnd float64) *BaseSeq {
	sorted := append([]event.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BarPos < sorted[j].BarPos })

	bs := &BaseSeq{id: id, params: params}
	bs.eventBuffer = sorted
	bs.syncEventHead(windowEnd, float64(params.LoopLength))
	return bs
}

// ID returns the base sequence's stable identifier.
func (bs *BaseSeq) ID() uint32 { return bs.id }

// Params returns a copy of the current parameters.
func (bs *BaseSeq) Params() pattern.Params {
	bs.paramsMu.RLock()
	defer bs.paramsMu.RUnlock()
	return bs.params
}

// LoopLength reads the current loop length without taking the buffer lock.
func (bs *BaseSeq) LoopLength() float32 {
	bs.paramsMu.RLock()
	defer bs.paramsMu.RUnlock()
	return bs.params.LoopLength
}

// MidiChannel reads the configured MIDI channel.
func (bs *BaseSeq) MidiChannel() uint8 {
	bs.paramsMu.RLock()
	defer bs.paramsMu.RUnlock()
	return bs.params.MidiCh
}

// FxProcIDs returns a copy of the attached effect processor id list, in
// apply order.
func (bs *BaseSeq) FxProcIDs() []uint32 {
	bs.fxMu.RLock()
	defer bs.fxMu.RUnlock()
	out := make([]uint32, len(bs.fxProcIDs))
	copy(out, bs.fxProcIDs)
	return out
}

// AttachFxProc appends a processor id to this base sequence's fx chain.
func (bs *BaseSeq) AttachFxProc(id uint32) {
	bs.fxMu.Lock()
	defer bs.fxMu.Unlock()
	bs.fxProcIDs = append(bs.fxProcIDs, id)
}

// EventHead returns the current head index and the event at it, used by
// the realtime tick to read the head's event without copying the whole
// buffer. Returns ok=false if the buffer is empty.
func (bs *BaseSeq) EventHead() (idx int, e event.Event, ok bool) {
	bs.bufMu.RLock()
	defer bs.bufMu.RUnlock()
	if len(bs.eventBuffer) == 0 {
		return 0, event.Event{}, false
	}
	return bs.eventHead, bs.eventBuffer[bs.eventHead], true
}

// IncrEventHead advances the head by one, wrapping modulo the buffer
// length. No-op on an empty buffer.
func (bs *BaseSeq) IncrEventHead() {
	bs.bufMu.Lock()
	defer bs.bufMu.Unlock()
	if len(bs.eventBuffer) == 0 {
		return
	}
	bs.eventHead = (bs.eventHead + 1) % len(bs.eventBuffer)
}

// GenFill regenerates the full event buffer from the current params,
// sorts it ascending by BarPos (ties broken by generation order via a
// stable sort), and resynchronizes the head against windowEnd.
func (bs *BaseSeq) GenFill(windowEnd float64) error {
	bs.paramsMu.RLock()
	params := bs.params
	bs.paramsMu.RUnlock()

	events, err := pattern.Generate(params, bs.rng)
	if err != nil {
		if bs.log != nil {
			bs.log.Logf(logging.ComponentBaseSeq, logging.LevelWarning, "base_seq %d: generation refused: %v", bs.id, err)
		}
		bs.bufMu.Lock()
		bs.eventBuffer = nil
		bs.eventHead = 0
		bs.bufMu.Unlock()
		return err
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].BarPos < events[j].BarPos })

	bs.bufMu.Lock()
	bs.eventBuffer = events
	bs.bufMu.Unlock()

	bs.syncEventHead(windowEnd, float64(params.LoopLength))
	return nil
}

// syncEventHead positions the head at the first event whose BarPos is
// strictly greater than windowEnd mod loopLength; head is 0 if no such
// event exists or the buffer is empty (spec.md §4.2).
func (bs *BaseSeq) syncEventHead(windowEnd, loopLength float64) {
	bs.bufMu.Lock()
	defer bs.bufMu.Unlock()

	n := len(bs.eventBuffer)
	if n == 0 {
		bs.eventHead = 0
		return
	}

	key := float32(0)
	if loopLength > 0 {
		key = float32(math.Mod(windowEnd, loopLength))
	}
	idx := sort.Search(n, func(i int) bool { return bs.eventBuffer[i].BarPos > key })
	if idx == n {
		bs.eventHead = 0
		return
	}
	bs.eventHead = idx
}

// SyncEventHead is the exported form of syncEventHead, reading the loop
// length from the current params. The package's own mutators (e.g.
// ChangeLoopLen) call syncEventHead directly.
func (bs *BaseSeq) SyncEventHead(windowEnd float64) {
	bs.syncEventHead(windowEnd, float64(bs.LoopLength()))
}

// ResetHead sets the head literally to 0, the reset_base_seqs behavior
// spec.md §4.3 specifies for Stop. Unlike SyncEventHead, this does not
// resolve to the first event strictly after a window position — every
// generated buffer has an event at BarPos 0, and that downbeat event
// must be next up after a reset, not skipped.
func (bs *BaseSeq) ResetHead() {
	bs.bufMu.Lock()
	defer bs.bufMu.Unlock()
	bs.eventHead = 0
}

// ChangeNoteLen shifts every note-off event's BarPos by (target -
// current note_len_avg) mod loop_length, updates note_len_avg, re-sorts,
// and resynchronizes the head. Note-on positions are untouched.
func (bs *BaseSeq) ChangeNoteLen(target float32, windowEnd float64) error {
	if target < 0 {
		return fmt.Errorf("%w: note_len must be >= 0", seqerr.ErrInvalidArgument)
	}

	bs.paramsMu.Lock()
	delta := float64(target - bs.params.NoteLenAvg)
	loopLength := float64(bs.params.LoopLength)
	bs.params.NoteLenAvg = target
	bs.paramsMu.Unlock()

	bs.bufMu.Lock()
	for i := range bs.eventBuffer {
		if bs.eventBuffer[i].Kind.Tag == event.KindMidiNote && !bs.eventBuffer[i].Kind.Note.OnOff {
			shifted := math.Mod(float64(bs.eventBuffer[i].BarPos)+delta, loopLength)
			if shifted < 0 {
				shifted += loopLength
			}
			bs.eventBuffer[i].BarPos = float32(shifted)
		}
	}
	sort.SliceStable(bs.eventBuffer, func(i, j int) bool { return bs.eventBuffer[i].BarPos < bs.eventBuffer[j].BarPos })
	bs.bufMu.Unlock()

	bs.syncEventHead(windowEnd, loopLength)
	return nil
}

// ChangeLoopLen overwrites loop_length without rewriting the buffer.
// Events left outside the new length are skipped by the realtime tick,
// not deleted (spec.md §4.2, §4.5).
func (bs *BaseSeq) ChangeLoopLen(target float32, windowEnd float64) error {
	if target <= 0 {
		return fmt.Errorf("%w: loop_length must be > 0", seqerr.ErrInvalidArgument)
	}
	bs.paramsMu.Lock()
	bs.params.LoopLength = target
	bs.paramsMu.Unlock()

	bs.syncEventHead(windowEnd, float64(target))
	return nil
}

// SetNbEvents is valid only for a Random base sequence: it updates
// nb_events and fully regenerates. Fails for Euclid.
func (bs *BaseSeq) SetNbEvents(target uint32, windowEnd float64) error {
	bs.paramsMu.Lock()
	if bs.params.Kind.Tag != pattern.KindRandom {
		bs.paramsMu.Unlock()
		return fmt.Errorf("%w: set_nb_events is only valid for Random base sequences", seqerr.ErrInvalidArgument)
	}
	bs.params.Kind.NbEvents = target
	bs.paramsMu.Unlock()

	return bs.GenFill(windowEnd)
}

// Transpose shifts every event's pitch by (targetRoot - current root),
// clamped to [0,127], and updates root_note. No reordering is needed
// since pitch doesn't affect sort order.
func (bs *BaseSeq) Transpose(targetRoot uint8) error {
	bs.paramsMu.Lock()
	delta := int(targetRoot) - int(bs.params.RootNote)
	bs.params.RootNote = targetRoot
	bs.paramsMu.Unlock()

	bs.bufMu.Lock()
	defer bs.bufMu.Unlock()
	for i := range bs.eventBuffer {
		if bs.eventBuffer[i].Kind.Tag == event.KindMidiNote {
			n := bs.eventBuffer[i].Kind.Note
			n.Pitch = uint8(theory.Clamp127(int(n.Pitch) + delta))
			bs.eventBuffer[i].Kind.Note = n
		}
	}
	return nil
}

// EventBufferLen reports how many events are currently buffered.
func (bs *BaseSeq) EventBufferLen() int {
	bs.bufMu.RLock()
	defer bs.bufMu.RUnlock()
	return len(bs.eventBuffer)
}

// Snapshot copies the event buffer and head for tests and diagnostics.
// The realtime tick does not use this — it reads one event at a time
// through EventHead to avoid allocating on the hot path.
func (bs *BaseSeq) Snapshot() ([]event.Event, int) {
	bs.bufMu.RLock()
	defer bs.bufMu.RUnlock()
	out := make([]event.Event, len(bs.eventBuffer))
	copy(out, bs.eventBuffer)
	return out, bs.eventHead
}
