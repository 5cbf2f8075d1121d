// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds logger settings
type LoggerConfig struct {
	Level    string // debug, info, warn, error
	Encoding string // json or console
	File     string // optional log file, stdout is always written
}

// Logger wraps a zap logger behind the map-of-fields call style used across the service
type Logger struct {
	mu    sync.RWMutex
	zl    *zap.Logger
	level zap.AtomicLevel
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		level := zap.NewAtomicLevelAt(zap.InfoLevel)
		zl, err := buildZap(LoggerConfig{Encoding: "console"}, level)
		if err != nil {
			zl = zap.NewNop()
		}
		globalLogger = &Logger{zl: zl, level: level}
	})
	return globalLogger
}

// InitLogger reconfigures the global logger
func InitLogger(cfg LoggerConfig) error {
	logger := GetLogger()

	if cfg.Level != "" {
		if err := logger.level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", cfg.Level, err)
			logger.level.SetLevel(zap.InfoLevel)
		}
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	zl, err := buildZap(cfg, logger.level)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	logger.mu.Lock()
	old := logger.zl
	logger.zl = zl
	logger.mu.Unlock()

	_ = old.Sync()
	return nil
}

func buildZap(cfg LoggerConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "console" && encoding != "json" {
		encoding = "json"
	}

	outputs := []string{"stdout"}
	if cfg.File != "" {
		outputs = append(outputs, cfg.File)
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       false,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}
	return zapConfig.Build(zap.AddCallerSkip(2))
}

// Zap exposes the underlying zap logger, e.g. for request logging middleware
func (l *Logger) Zap() *zap.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl.WithOptions(zap.AddCallerSkip(-2))
}

// SetLogLevel sets the minimum level for logging
func (l *Logger) SetLogLevel(level string) error {
	return l.level.UnmarshalText([]byte(strings.ToLower(level)))
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl.Sync()
}

func (l *Logger) log(level zapcore.Level, message string, fields map[string]interface{}) {
	l.mu.RLock()
	zl := l.zl
	l.mu.RUnlock()

	if ce := zl.Check(level, message); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

// toZapFields converts a field map into zap fields in a stable key order
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(zapcore.DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(zapcore.InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(zapcore.WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(zapcore.ErrorLevel, message, fields)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(zapcore.DebugLevel, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(zapcore.InfoLevel, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(zapcore.WarnLevel, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(zapcore.ErrorLevel, fmt.Sprintf(format, args...), nil)
}
