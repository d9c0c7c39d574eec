// Package logger provides the leveled logging facade used across the batch operation engine.
// Messages are written through a process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr, "console", zerolog.InfoLevel)
)

func newLogger(out io.Writer, format string, lvl zerolog.Level) zerolog.Logger {
	w := out
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// parseLevel maps a level name to a zerolog level. Unknown names fall back to INFO.
func parseLevel(level string) (zerolog.Level, bool) {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel, true
	case "DEBUG":
		return zerolog.DebugLevel, true
	case "INFO":
		return zerolog.InfoLevel, true
	case "WARN":
		return zerolog.WarnLevel, true
	case "ERROR":
		return zerolog.ErrorLevel, true
	case "FATAL":
		return zerolog.FatalLevel, true
	case "SILENT":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// SetLogLevel sets the global log level.
// Valid values are "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL" and "SILENT" (case-insensitive).
// An invalid value selects INFO and emits a warning.
func SetLogLevel(level string) {
	lvl, ok := parseLevel(level)
	mu.Lock()
	log = log.Level(lvl)
	mu.Unlock()
	if !ok {
		Warnf("Unknown log level '%s' specified. Defaulting to INFO level.", level)
	}
}

// Configure replaces the global logger. format is "console" for human readable
// output or "json" for one JSON object per line.
func Configure(out io.Writer, format, level string) {
	lvl, _ := parseLevel(level)
	mu.Lock()
	log = newLogger(out, format, lvl)
	mu.Unlock()
}

// Logger returns the underlying zerolog logger for structured logging.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	l := Logger()
	l.Debug().Msgf(format, v...)
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	l := Logger()
	l.Info().Msgf(format, v...)
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	l := Logger()
	l.Warn().Msgf(format, v...)
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	l := Logger()
	l.Error().Msgf(format, v...)
}

// Fatalf formats and outputs a FATAL level log message,
// then terminates the program by calling os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	l := Logger()
	l.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, v...))
	os.Exit(1)
}
