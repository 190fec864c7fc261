// Package logs implements the small leveled-logging backend consumed by
// logger.go files across the tree. It follows the Backend/Logger split the
// teacher's subsystem loggers are written against (see logger.InitLogRotators
// and logger.SubsystemTags): a single Backend fans out formatted lines to a
// set of BackendWriters, and each subsystem gets its own Logger with an
// independently adjustable Level.
package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level specifies the severity of a log message.
type Level uint8

// The supported severities, from least to most severe.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

// String returns the shorthand string representation of the level.
func (l Level) String() string {
	if s, ok := levelStrings[l]; ok {
		return s
	}
	return "???"
}

// LevelFromString parses a case-insensitive level name, defaulting to
// LevelInfo if the string does not match a known level.
func LevelFromString(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "critical":
		return LevelCritical, true
	}
	return LevelInfo, false
}

// BackendWriter is a sink that accepts formatted log lines at or above a
// minimum level.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter returns a BackendWriter that accepts every level.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter returns a BackendWriter that only accepts
// LevelError and LevelCritical lines.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// Backend multiplexes formatted log lines to every BackendWriter whose
// minimum level admits them.
type Backend struct {
	writers []*BackendWriter
}

// NewBackend returns a Backend fanning out to the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

// Logger returns a new Logger for the named subsystem, defaulting to
// LevelInfo until SetLevel is called.
func (b *Backend) Logger(subsystemTag string) Logger {
	return &subsystemLogger{
		backend: b,
		tag:     subsystemTag,
		level:   LevelInfo,
	}
}

func (b *Backend) write(level Level, tag, msg string) {
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().Format("2006-01-02 15:04:05.000"), level, tag, msg)
	for _, bw := range b.writers {
		if level < bw.minLevel {
			continue
		}
		_, _ = io.WriteString(bw.w, line)
	}
}

// Logger is a per-subsystem leveled log sink.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})
	Level() Level
	SetLevel(level Level)
}

type subsystemLogger struct {
	backend *Backend
	tag     string
	mtx     sync.RWMutex
	level   Level
}

func (l *subsystemLogger) Level() Level {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.level
}

func (l *subsystemLogger) SetLevel(level Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.level = level
}

func (l *subsystemLogger) log(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.backend.write(level, l.tag, fmt.Sprintf(format, args...))
}

func (l *subsystemLogger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, format, args...) }
func (l *subsystemLogger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, format, args...) }
func (l *subsystemLogger) Infof(format string, args ...interface{})     { l.log(LevelInfo, format, args...) }
func (l *subsystemLogger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, format, args...) }
func (l *subsystemLogger) Errorf(format string, args ...interface{})    { l.log(LevelError, format, args...) }
func (l *subsystemLogger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args...) }
