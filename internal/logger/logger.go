package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar  = newSugar(level, "text", "stdout")
	fields []any
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a textual level (case-insensitive) into a Level.
// Unknown values return false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// SetLevel changes the minimum level at runtime. Unknown levels are ignored.
func SetLevel(s string) {
	if l, ok := ParseLevel(s); ok {
		level.SetLevel(l.zapLevel())
	}
}

// Enabled reports whether messages at l are currently emitted.
func Enabled(l Level) bool {
	return level.Enabled(l.zapLevel())
}

// Configure rebuilds the global logger.
//
// Parameters:
//   - lvl: DEBUG, INFO, WARN or ERROR
//   - format: "text" (console encoder) or "json"
//   - output: "stdout", "stderr" or a file path
//
// Returns an error if the output cannot be opened.
func Configure(lvl, format, output string) error {
	l, ok := ParseLevel(lvl)
	if !ok {
		return fmt.Errorf("invalid log level: %q", lvl)
	}

	ws, _, err := zap.Open(output)
	if err != nil {
		return fmt.Errorf("open log output %q: %w", output, err)
	}

	level.SetLevel(l.zapLevel())
	core := zapcore.NewCore(encoder(format), ws, level)

	mu.Lock()
	sugar = zap.New(core).Sugar().With(fields...)
	mu.Unlock()
	return nil
}

// With attaches a key/value pair to every subsequent message, e.g. a
// mount session id.
func With(key string, value any) {
	mu.Lock()
	fields = append(fields, key, value)
	sugar = sugar.With(key, value)
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

func newSugar(lvl zap.AtomicLevel, format, output string) *zap.SugaredLogger {
	ws, _, err := zap.Open(output)
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return zap.New(zapcore.NewCore(encoder(format), ws, lvl)).Sugar()
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.TimeKey = "time"

	if strings.EqualFold(format, "json") {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func log(l Level, format string, v ...any) {
	mu.RLock()
	s := sugar
	mu.RUnlock()

	switch l {
	case LevelDebug:
		s.Debugf(format, v...)
	case LevelInfo:
		s.Infof(format, v...)
	case LevelWarn:
		s.Warnf(format, v...)
	case LevelError:
		s.Errorf(format, v...)
	}
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
