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

// Config selects the zap encoder and sink used by the package-level logger.
type Config struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string

	// Format is "text" (console encoder) or "json"
	Format string

	// Output is "stdout", "stderr" or a file path
	Output string
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger *zap.SugaredLogger
)

func init() {
	l, err := build(Config{Format: "text", Output: "stdout"})
	if err != nil {
		l = zap.NewNop()
	}
	logger = l.Sugar()
}

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

// ParseLevel converts a level name into a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToUpper(name) {
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

// SetLevel changes the minimum level. Unknown level names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.SetLevel(l.zapLevel())
	}
}

// Enabled reports whether messages at l are currently emitted.
func Enabled(l Level) bool {
	return level.Enabled(l.zapLevel())
}

// Configure rebuilds the underlying zap logger with the given encoder and output.
func Configure(cfg Config) error {
	if cfg.Level != "" {
		if _, ok := ParseLevel(cfg.Level); !ok {
			return fmt.Errorf("unknown log level %q", cfg.Level)
		}
		SetLevel(cfg.Level)
	}

	l, err := build(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	old := logger
	logger = l.Sugar()
	mu.Unlock()

	_ = old.Sync()
	return nil
}

func build(cfg Config) (*zap.Logger, error) {
	encoding := "console"
	switch strings.ToLower(cfg.Format) {
	case "", "text":
	case "json":
		encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	zcfg := zap.Config{
		Level:             level,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     true,
		DisableStacktrace: true,
	}

	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}

func Debug(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(format string, v ...any) {
	current().Infof(format, v...)
}

func Warn(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(format string, v ...any) {
	current().Errorf(format, v...)
}
