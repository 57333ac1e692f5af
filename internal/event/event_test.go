package event

import "testing"

func TestStatusByte(t *testing.T) {
	cases := []struct {
		name string
		note MidiNote
		want byte
	}{
		{"note-on channel 1", MidiNote{OnOff: true, Channel: 1}, 0x90},
		{"note-on channel 16", MidiNote{OnOff: true, Channel: 16}, 0x9F},
		{"note-off channel 1", MidiNote{OnOff: false, Channel: 1}, 0x80},
		{"note-off channel 10", MidiNote{OnOff: false, Channel: 10}, 0x89},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.note.StatusByte(); got != tc.want {
				t.Errorf("StatusByte() = 0x%02X, want 0x%02X", got, tc.want)
			}
		})
	}
}

func TestRawBytesPreservesOffVelocity(t *testing.T) {
	n := MidiNote{OnOff: false, Channel: 3, Pitch: 60, Velocity: 1}
	raw := n.RawBytes()
	if raw[2] != 1 {
		t.Errorf("note-off velocity = %d, want 1", raw[2])
	}
	if raw[1] != 60 {
		t.Errorf("pitch = %d, want 60", raw[1])
	}
}

func TestValidate(t *testing.T) {
	bad := MidiNote{Channel: 0, Pitch: 200, Velocity: 0}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for channel 0")
	}
	good := MidiNote{Channel: 1, Pitch: 60, Velocity: 100}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
