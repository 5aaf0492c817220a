package logger

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the profile service binaries.
// - Debug/Info/Warn/Error/Fatal variants and Init(level)
// - With(k, v, ...) returns an Entry that appends key=value context to each line

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(l)
}

func parseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

func header(lvl string) string {
	return fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output(l Level, name string, fields Fields, format string, v ...interface{}) {
	if l != LevelFatal && !shouldLog(l) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if len(fields) > 0 {
		msg += " " + fields.String()
	}
	logger.Print(header(name) + msg)
}

func Debugf(format string, v ...interface{}) { output(LevelDebug, "debug", nil, format, v...) }
func Infof(format string, v ...interface{})  { output(LevelInfo, "info", nil, format, v...) }
func Warnf(format string, v ...interface{})  { output(LevelWarn, "warn", nil, format, v...) }
func Errorf(format string, v ...interface{}) { output(LevelError, "error", nil, format, v...) }

func Fatalf(format string, v ...interface{}) {
	output(LevelFatal, "fatal", nil, format, v...)
	os.Exit(1)
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}

// Fields is the key/value context attached to an Entry.
type Fields map[string]interface{}

// String renders fields as space separated key=value pairs in key order.
func (f Fields) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		val := fmt.Sprint(f[k])
		if strings.ContainsAny(val, " \t\"") {
			val = fmt.Sprintf("%q", val)
		}
		parts = append(parts, k+"="+val)
	}
	return strings.Join(parts, " ")
}

// Entry carries context fields; the zero value logs without context.
type Entry struct {
	fields Fields
}

// With starts an Entry from alternating key/value arguments.
// A trailing key without value is recorded as "(MISSING)".
func With(kv ...interface{}) *Entry {
	return (&Entry{}).With(kv...)
}

// With returns a copy of e extended with the given key/value pairs.
func (e *Entry) With(kv ...interface{}) *Entry {
	out := &Entry{fields: make(Fields, len(e.fields)+len(kv)/2)}
	for k, v := range e.fields {
		out.fields[k] = v
	}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 < len(kv) {
			out.fields[key] = kv[i+1]
		} else {
			out.fields[key] = "(MISSING)"
		}
	}
	return out
}

func (e *Entry) Debugf(format string, v ...interface{}) {
	output(LevelDebug, "debug", e.fields, format, v...)
}
func (e *Entry) Infof(format string, v ...interface{}) {
	output(LevelInfo, "info", e.fields, format, v...)
}
func (e *Entry) Warnf(format string, v ...interface{}) {
	output(LevelWarn, "warn", e.fields, format, v...)
}
func (e *Entry) Errorf(format string, v ...interface{}) {
	output(LevelError, "error", e.fields, format, v...)
}
