// Package logging is the sequencer's logging sink. It exists so the
// realtime tick can report a dropped write or a skipped expired event
// (spec §4.7) without ever blocking or allocating on the hot path: Log
// sends on a buffered channel with a non-blocking select, and a single
// background goroutine owns the circular buffer that backs GetEntries.
package logging

import (
	"fmt"
	"sync"
	"time"
)

// Logger is a centralized, component-filtered, leveled log sink backed
// by a fixed-size ring buffer. Safe for concurrent use from the realtime
// thread and the control thread.
type Logger struct {
	entries    []Entry
	entriesMu  sync.RWMutex
	maxEntries int
	writeIndex int
	entryCount int

	componentEnabled map[Component]bool
	componentMu      sync.RWMutex

	minLevel Level
	levelMu  sync.RWMutex

	logChan  chan Entry
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New creates a Logger with the given ring buffer capacity (minimum 100)
// and starts its background drain goroutine. All components are enabled
// by default and the minimum level starts at Info, so Debug and Trace
// entries are filtered until SetMinLevel admits them.
func New(maxEntries int) *Logger {
	if maxEntries < 100 {
		maxEntries = 100
	}

	l := &Logger{
		entries:    make([]Entry, maxEntries),
		maxEntries: maxEntries,
		componentEnabled: map[Component]bool{
			ComponentSequencer: true,
			ComponentBaseSeq:   true,
			ComponentRealtime:  true,
			ComponentControl:   true,
			ComponentFx:        true,
		},
		minLevel: LevelInfo,
		logChan:  make(chan Entry, 1024),
		shutdown: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.drain()
	return l
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for {
		select {
		case entry := <-l.logChan:
			l.addEntry(entry)
		case <-l.shutdown:
			for {
				select {
				case entry := <-l.logChan:
					l.addEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) addEntry(entry Entry) {
	l.entriesMu.Lock()
	defer l.entriesMu.Unlock()

	l.entries[l.writeIndex] = entry
	l.writeIndex = (l.writeIndex + 1) % l.maxEntries
	if l.entryCount < l.maxEntries {
		l.entryCount++
	}
}

// Log enqueues an entry if the component is enabled and the level clears
// the minimum. Never blocks: a full channel drops the entry.
func (l *Logger) Log(component Component, level Level, message string, data map[string]any) {
	l.componentMu.RLock()
	enabled := l.componentEnabled[component]
	l.componentMu.RUnlock()
	if !enabled {
		return
	}

	l.levelMu.RLock()
	minLevel := l.minLevel
	l.levelMu.RUnlock()
	if level > minLevel {
		return
	}

	entry := Entry{Timestamp: time.Now(), Component: component, Level: level, Message: message, Data: data}
	select {
	case l.logChan <- entry:
	default:
	}
}

// Logf is Log with fmt.Sprintf-style formatting.
func (l *Logger) Logf(component Component, level Level, format string, args ...any) {
	l.Log(component, level, fmt.Sprintf(format, args...), nil)
}

// GetEntries returns a snapshot of all buffered entries, oldest first.
func (l *Logger) GetEntries() []Entry {
	l.entriesMu.RLock()
	defer l.entriesMu.RUnlock()

	if l.entryCount == 0 {
		return []Entry{}
	}
	out := make([]Entry, l.entryCount)
	if l.entryCount < l.maxEntries {
		copy(out, l.entries[:l.entryCount])
		return out
	}
	for i := 0; i < l.entryCount; i++ {
		out[i] = l.entries[(l.writeIndex+i)%l.maxEntries]
	}
	return out
}

// SetComponentEnabled toggles logging for one component.
func (l *Logger) SetComponentEnabled(component Component, enabled bool) {
	l.componentMu.Lock()
	defer l.componentMu.Unlock()
	l.componentEnabled[component] = enabled
}

// SetMinLevel sets the least severe level that reaches the buffer; more
// verbose levels are dropped, and LevelNone drops every entry.
func (l *Logger) SetMinLevel(level Level) {
	l.levelMu.Lock()
	defer l.levelMu.Unlock()
	l.minLevel = level
}

// Shutdown stops the drain goroutine after flushing pending entries.
func (l *Logger) Shutdown() {
	close(l.shutdown)
	l.wg.Wait()
}
