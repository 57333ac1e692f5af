package logging

import (
	"fmt"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARNING"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// Component identifies which subsystem emitted an entry.
type Component string

const (
	ComponentSequencer Component = "sequencer"
	ComponentBaseSeq   Component = "baseseq"
	ComponentRealtime  Component = "realtime"
	ComponentControl   Component = "control"
	ComponentFx        Component = "fx"
)

// Entry is one buffered log line.
type Entry struct {
	Timestamp time.Time
	Component Component
	Level     Level
	Message   string
	Data      map[string]any
}

// Format renders the entry the way a terminal consumer expects.
func (e *Entry) Format() string {
	return fmt.Sprintf("[%s] [%s] %s: %s",
		e.Timestamp.Format("15:04:05.000"), e.Component, e.Level, e.Message)
}
