package log

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// "goroutine 123 [running]:" fits comfortably.
	stackBufSize = 32
	// len("goroutine ").
	goroutinePrefixLen = 10
	unknownGoroutine   = "unknown"
)

var (
	Logger    zerolog.Logger
	stackPool = sync.Pool{New: func() interface{} { return make([]byte, stackBufSize) }}
)

// goroutineID returns the id of the calling goroutine, read from the first stack line.
func goroutineID() string {
	buf, ok := stackPool.Get().([]byte)
	if !ok {
		return unknownGoroutine
	}
	defer stackPool.Put(buf) //nolint:staticcheck // fixed-size slice reused as is

	n := runtime.Stack(buf, false)
	if n <= goroutinePrefixLen {
		return unknownGoroutine
	}

	line := buf[goroutinePrefixLen:n]
	end := bytes.IndexByte(line, ' ')
	if end <= 0 {
		return unknownGoroutine
	}
	for _, c := range line[:end] {
		if c < '0' || c > '9' {
			return unknownGoroutine
		}
	}
	return string(line[:end])
}

// New builds a logger that writes to w and tags every event with the goroutine id.
// Transfers fan out one goroutine per chunk, which makes the id worth having.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str("goid", goroutineID())
		}))
}

func init() {
	setLogger(New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, zerolog.InfoLevel))
}

func setLogger(l zerolog.Logger) {
	Logger = l
	log.Logger = l
}

// Info logs an info message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn logs a warning message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug logs a debug message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal logs a fatal message and exits.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	setLogger(Logger.Level(zerolog.DebugLevel))
}

// SetLevel parses a level name ("debug", "warn", ...) and applies it.
func SetLevel(name string) error {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return err
	}
	setLogger(Logger.Level(level))
	return nil
}

// SetOutput replaces the destination, keeping the current level.
func SetOutput(w io.Writer) {
	setLogger(New(w, Logger.GetLevel()))
}
