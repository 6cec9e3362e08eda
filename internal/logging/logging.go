// Package logging provides the structured logger used throughout keymapper.
//
// Logger keeps a small printf-style API (Debug, Info, Warn, Error) with
// structured fields attached through WithField and WithComponent. Output is
// produced by go.uber.org/zap, either as JSON or as console text.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel parses a string into a LogLevel. Unknown strings yield
// LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Format selects the encoder.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config configures the logger.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Format is "console" or "json". Defaults to console.
	Format Format
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Name is the logger name attached to every entry.
	Name string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LogLevelInfo,
		Format: FormatConsole,
		Output: os.Stderr,
		Name:   "keymapper",
	}
}

// Logger provides structured logging. Loggers derived with WithField share
// the level and enabled state of their parent.
type Logger struct {
	zl       *zap.Logger
	level    zap.AtomicLevel
	disabled *atomic.Bool
}

// New creates a logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	core := zapcore.NewCore(enc, zapcore.AddSync(cfg.Output), level)

	zl := zap.New(core)
	if cfg.Name != "" {
		zl = zl.Named(cfg.Name)
	}

	return &Logger{
		zl:       zl,
		level:    level,
		disabled: atomic.NewBool(false),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := &Logger{
		zl:       zap.NewNop(),
		level:    zap.NewAtomicLevel(),
		disabled: atomic.NewBool(true),
	}
	return l
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.derive(zap.Any(key, value))
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return l.derive(zf...)
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// WithError returns a new logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return l.derive(zap.Error(err))
}

func (l *Logger) derive(fields ...zap.Field) *Logger {
	return &Logger{
		zl:       l.zl.With(fields...),
		level:    l.level,
		disabled: l.disabled,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Disable disables all logging.
func (l *Logger) Disable() {
	l.disabled.Store(true)
}

// Enable enables logging.
func (l *Logger) Enable() {
	l.disabled.Store(false)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(zapcore.DebugLevel, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.log(zapcore.InfoLevel, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(zapcore.WarnLevel, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.log(zapcore.ErrorLevel, msg, args...)
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) log(level zapcore.Level, msg string, args ...any) {
	if l == nil || l.disabled.Load() {
		return
	}
	ce := l.zl.Check(level, "")
	if ce == nil {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	ce.Message = msg
	ce.Write()
}
