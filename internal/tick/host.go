package tick

import (
	"nitro-seq/internal/rtio"
)

// Host is the audio client lifecycle collaborator spec.md §6.1 places out
// of scope: whatever registers a MIDI output port and drives the realtime
// thread at a fixed interval. Client creation failure at Activate is the
// Fatal error kind from spec.md §7; cmd/giseled exits non-zero on it.
type Host interface {
	// Activate opens the output port and starts the realtime thread.
	Activate() error
	// Deactivate stops the realtime thread and releases the port.
	Deactivate()
	// NextCycle blocks until the next process cycle is due and returns
	// its timing plus a scoped writer for that cycle, or ok=false once
	// the host has been deactivated.
	NextCycle() (cycle rtio.CycleTimes, w rtio.Writer, ok bool)
}
