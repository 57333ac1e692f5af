// Package control implements the OSC-based control plane: a datagram
// receive loop that decodes `/sequencer/...` and `/encoder/delta`
// messages and invokes the matching Sequencer mutator (spec.md §6.2).
// Unknown addresses and malformed arguments are reported to stderr and
// never change state, matching the validate-then-commit policy in
// spec.md §7.
package control

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"nitro-seq/internal/logging"
	"nitro-seq/internal/pattern"
	"nitro-seq/internal/sequencer"
)

// DefaultPort is the UDP port the control plane listens on absent an
// override, following osc.rs's OSC_PORT constant.
const DefaultPort = 34254

// maxDatagram bounds a single receive per spec.md §6.2.
const maxDatagram = 1500

// recvTimeout is how often the receive loop polls for Shutdown.
const recvTimeout = 1 * time.Second

// Transport abstracts the datagram socket so tests can drive Loop
// without binding a real UDP port.
type Transport interface {
	SetReadDeadline(t time.Time) error
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	Close() error
}

// ListenUDP opens a UDP transport on addr (e.g. ":34254").
func ListenUDP(addr string) (Transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve control address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen control socket: %w", err)
	}
	return conn, nil
}

// Loop reads datagrams from t until seq's status is Shutdown, dispatching
// each decoded OSC message to handle. It returns once the socket reports
// a deadline timeout and the shutdown status is observed, so callers can
// join it from the supervisor thread (spec.md §6.3).
func Loop(t Transport, seq *sequencer.Sequencer) {
	buf := make([]byte, maxDatagram)
	log := seq.Logger()

	for {
		if seq.Status() == sequencer.StatusShutdown {
			return
		}

		if err := t.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
			reportf(log, "control: set read deadline: %v", err)
			return
		}

		n, _, err := t.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			reportf(log, "control: receive failed: %v", err)
			continue
		}

		packet, err := (&osc.Server{}).ParsePacket(string(buf[:n]))
		if err != nil {
			reportf(log, "control: could not decode OSC packet: %v", err)
			continue
		}

		msg, ok := packet.(*osc.Message)
		if !ok {
			reportf(log, "control: OSC bundles are not supported")
			continue
		}

		if err := dispatch(seq, msg); err != nil {
			reportf(log, "control: %s: %v", msg.Address, err)
		}
	}
}

func reportf(log *logging.Logger, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	if log != nil {
		log.Logf(logging.ComponentControl, logging.LevelWarning, format, args...)
	}
}

// dispatch routes one decoded message to the matching Sequencer mutator,
// per the address table in spec.md §6.2. It never partially applies an
// argument list: args are extracted in full before any mutator runs.
func dispatch(seq *sequencer.Sequencer, msg *osc.Message) error {
	switch msg.Address {
	case "/sequencer/set_status":
		status, err := argInt(msg, 0)
		if err != nil {
			return err
		}
		s, err := statusFromInt(status)
		if err != nil {
			return err
		}
		seq.SetStatus(s)
		return nil

	case "/sequencer/set_bpm":
		bpm, err := argFloat(msg, 0)
		if err != nil {
			return err
		}
		return seq.SetBPM(float32(bpm))

	case "/sequencer/set_loop_length":
		id, loop, err := idAndFloat(msg)
		if err != nil {
			return err
		}
		return seq.ChangeLoopLen(uint32(id), float32(loop))

	case "/sequencer/regenerate":
		id, err := argInt(msg, 0)
		if err != nil {
			return err
		}
		return seq.RegenBaseSeq(uint32(id))

	case "/sequencer/set_root":
		id, pitch, err := idAndInt(msg)
		if err != nil {
			return err
		}
		if pitch < 12 || pitch > 127 {
			return fmt.Errorf("midi_pitch %d out of range [12,127]", pitch)
		}
		return seq.Transpose(uint32(id), uint8(pitch))

	case "/sequencer/set_note_len":
		id, length, err := idAndFloat(msg)
		if err != nil {
			return err
		}
		return seq.ChangeNoteLen(uint32(id), float32(length))

	case "/sequencer/empty":
		seq.Empty()
		return nil

	case "/sequencer/remove_base_seq":
		id, err := argInt(msg, 0)
		if err != nil {
			return err
		}
		return seq.RemoveBaseSeq(uint32(id))

	case "/sequencer/add_random_base":
		params, err := randomBaseParams(msg)
		if err != nil {
			return err
		}
		_, err = seq.AddBaseSeq(params, 0)
		return err

	case "/sequencer/add_euclid_base":
		params, err := euclidBaseParams(msg)
		if err != nil {
			return err
		}
		_, err = seq.AddBaseSeq(params, 0)
		return err

	case "/sequencer/random_base/set_nb_events":
		id, nb, err := idAndInt(msg)
		if err != nil {
			return err
		}
		return seq.SetNbEvents(uint32(id), uint32(nb))

	case "/sequencer/add_fx_processor":
		ownerID, err := argInt(msg, 0)
		if err != nil {
			return err
		}
		_, err = seq.AddFxProcessor(uint32(ownerID))
		return err

	case "/encoder/delta":
		if len(msg.Arguments) < 2 {
			return fmt.Errorf("expected 2 arguments, got %d", len(msg.Arguments))
		}
		delta, err := argInt(msg, 1)
		if err != nil {
			return err
		}
		seq.AdjustBPMByDelta(int(delta))
		return nil

	default:
		return fmt.Errorf("unrecognized OSC address")
	}
}

func statusFromInt(v int32) (sequencer.Status, error) {
	switch v {
	case 0:
		return sequencer.StatusStop, nil
	case 1:
		return sequencer.StatusStart, nil
	case 2:
		return sequencer.StatusPause, nil
	case 3:
		return sequencer.StatusShutdown, nil
	default:
		return 0, fmt.Errorf("status %d not in {0,1,2,3}", v)
	}
}

func randomBaseParams(msg *osc.Message) (pattern.Params, error) {
	if len(msg.Arguments) < 8 {
		return pattern.Params{}, fmt.Errorf("expected 8 arguments, got %d", len(msg.Arguments))
	}
	loop, err := argFloat(msg, 0)
	if err != nil {
		return pattern.Params{}, err
	}
	root, err := argInt(msg, 1)
	if err != nil {
		return pattern.Params{}, err
	}
	nb, err := argInt(msg, 2)
	if err != nil {
		return pattern.Params{}, err
	}
	nlAvg, err := argFloat(msg, 3)
	if err != nil {
		return pattern.Params{}, err
	}
	nlDiv, err := argFloat(msg, 4)
	if err != nil {
		return pattern.Params{}, err
	}
	velAvg, err := argInt(msg, 5)
	if err != nil {
		return pattern.Params{}, err
	}
	velDiv, err := argFloat(msg, 6)
	if err != nil {
		return pattern.Params{}, err
	}
	ch, err := argInt(msg, 7)
	if err != nil {
		return pattern.Params{}, err
	}
	if root < 12 {
		return pattern.Params{}, fmt.Errorf("root %d below minimum octave pitch 12", root)
	}
	return pattern.Params{
		Kind:        pattern.RandomKind(uint32(nb)),
		LoopLength:  float32(loop),
		RootNote:    uint8(root),
		NoteLenAvg:  float32(nlAvg),
		NoteLenDiv:  float32(nlDiv),
		VelocityAvg: uint8(velAvg),
		VelocityDiv: float32(velDiv),
		MidiCh:      uint8(ch),
	}, nil
}

func euclidBaseParams(msg *osc.Message) (pattern.Params, error) {
	if len(msg.Arguments) < 9 {
		return pattern.Params{}, fmt.Errorf("expected 9 arguments, got %d", len(msg.Arguments))
	}
	loop, err := argFloat(msg, 0)
	if err != nil {
		return pattern.Params{}, err
	}
	root, err := argInt(msg, 1)
	if err != nil {
		return pattern.Params{}, err
	}
	pulses, err := argInt(msg, 2)
	if err != nil {
		return pattern.Params{}, err
	}
	steps, err := argInt(msg, 3)
	if err != nil {
		return pattern.Params{}, err
	}
	nlAvg, err := argFloat(msg, 4)
	if err != nil {
		return pattern.Params{}, err
	}
	nlDiv, err := argFloat(msg, 5)
	if err != nil {
		return pattern.Params{}, err
	}
	velAvg, err := argInt(msg, 6)
	if err != nil {
		return pattern.Params{}, err
	}
	velDiv, err := argFloat(msg, 7)
	if err != nil {
		return pattern.Params{}, err
	}
	ch, err := argInt(msg, 8)
	if err != nil {
		return pattern.Params{}, err
	}
	if root < 12 {
		return pattern.Params{}, fmt.Errorf("root %d below minimum octave pitch 12", root)
	}
	return pattern.Params{
		Kind:        pattern.EuclidKind(uint32(pulses), uint32(steps)),
		LoopLength:  float32(loop),
		RootNote:    uint8(root),
		NoteLenAvg:  float32(nlAvg),
		NoteLenDiv:  float32(nlDiv),
		VelocityAvg: uint8(velAvg),
		VelocityDiv: float32(velDiv),
		MidiCh:      uint8(ch),
	}, nil
}

func idAndInt(msg *osc.Message) (id, value int32, err error) {
	if len(msg.Arguments) < 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(msg.Arguments))
	}
	id, err = argInt(msg, 0)
	if err != nil {
		return 0, 0, err
	}
	value, err = argInt(msg, 1)
	if err != nil {
		return 0, 0, err
	}
	return id, value, nil
}

func idAndFloat(msg *osc.Message) (id int32, value float32, err error) {
	if len(msg.Arguments) < 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(msg.Arguments))
	}
	id, err = argInt(msg, 0)
	if err != nil {
		return 0, 0, err
	}
	v, err := argFloat(msg, 1)
	if err != nil {
		return 0, 0, err
	}
	return id, float32(v), nil
}

func argInt(msg *osc.Message, i int) (int32, error) {
	if i >= len(msg.Arguments) {
		return 0, fmt.Errorf("argument %d missing", i)
	}
	switch v := msg.Arguments[i].(type) {
	case int32:
		return v, nil
	case int64:
		return int32(v), nil
	case float32:
		return int32(v), nil
	default:
		return 0, fmt.Errorf("argument %d was not recognized as an int", i)
	}
}

func argFloat(msg *osc.Message, i int) (float64, error) {
	if i >= len(msg.Arguments) {
		return 0, fmt.Errorf("argument %d missing", i)
	}
	switch v := msg.Arguments[i].(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %d was not recognized as a float", i)
	}
}
