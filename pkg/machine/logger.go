package machine

import (
	"log"
)

type LogLevel int

const (
	// LogLevelBasic prints only important messages.
	LogLevelBasic LogLevel = iota
	// LogLevelDetailed additionally prints per-transaction traces.
	LogLevelDetailed
)

// Logger is the minimal logging interface used by the shim and its backends.
type Logger interface {
	Basic(msg string, args ...interface{})
	Detailed(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type defaultLogger struct {
	level LogLevel
}

// NewDefaultLogger creates a stdlib-log backed Logger at the given level.
func NewDefaultLogger(level LogLevel) Logger {
	return &defaultLogger{level: level}
}

func (l *defaultLogger) Basic(msg string, args ...interface{}) {
	log.Printf("[INFO] "+msg, args...)
}

func (l *defaultLogger) Detailed(msg string, args ...interface{}) {
	if l.level >= LogLevelDetailed {
		log.Printf("[DEBUG] "+msg, args...)
	}
}

func (l *defaultLogger) Error(msg string, args ...interface{}) {
	log.Printf("[ERROR] "+msg, args...)
}
