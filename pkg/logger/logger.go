// Package logger provides structured logging utilities
package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level      string `yaml:"level" mapstructure:"level"`             // debug, info, warn, error, fatal
	Format     string `yaml:"format" mapstructure:"format"`           // text or json
	Output     string `yaml:"output" mapstructure:"output"`           // stdout, stderr, or file path
	TimeFormat string `yaml:"time_format" mapstructure:"time_format"` // RFC3339, RFC3339Nano, etc
}

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(build(Config{}))
}

// Init initializes the logger with configuration
func Init(cfg Config) {
	current.Store(build(cfg))
}

// build assembles a zap core from the config. Unknown values fall back to info/text/stdout.
func build(cfg Config) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil {
		level = lvl
	}

	timeFormat := time.RFC3339
	if strings.TrimSpace(cfg.TimeFormat) != "" {
		timeFormat = strings.TrimSpace(cfg.TimeFormat)
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer
	switch out := strings.TrimSpace(cfg.Output); strings.ToLower(out) {
	case "", "stdout":
		sink = zapcore.Lock(os.Stdout)
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	default:
		f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: failed to open log file %s: %v\n", out, err)
			sink = zapcore.Lock(os.Stdout)
		} else {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func sugar() *zap.SugaredLogger {
	return current.Load()
}

// Sync flushes buffered entries
func Sync() {
	_ = sugar().Sync()
}

// Debug logs debug message (only shown when level=debug)
func Debug(msg string) {
	sugar().Debug(msg)
}

// Debugf logs formatted debug message
func Debugf(format string, args ...interface{}) {
	sugar().Debugf(format, args...)
}

// Info logs info message
func Info(msg string) {
	sugar().Info(msg)
}

// Infof logs formatted info message
func Infof(format string, args ...interface{}) {
	sugar().Infof(format, args...)
}

// Warn logs warning message
func Warn(msg string) {
	sugar().Warn(msg)
}

// Warnf logs formatted warning message
func Warnf(format string, args ...interface{}) {
	sugar().Warnf(format, args...)
}

// Error logs error message
func Error(msg string) {
	sugar().Error(msg)
}

// Errorf logs formatted error message
func Errorf(format string, args ...interface{}) {
	sugar().Errorf(format, args...)
}

// Fatal logs fatal message and exits
func Fatal(msg string) {
	sugar().Fatal(msg)
}

// Fatalf logs formatted fatal message and exits
func Fatalf(format string, args ...interface{}) {
	sugar().Fatalf(format, args...)
}

// WithFields returns a log message with structured fields
func WithFields(fields map[string]interface{}) *FieldLogger {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &FieldLogger{s: sugar().With(kv...)}
}

// FieldLogger allows structured logging with fields
type FieldLogger struct {
	s *zap.SugaredLogger
}

func (l *FieldLogger) Debug(msg string) {
	l.s.Debug(msg)
}

func (l *FieldLogger) Info(msg string) {
	l.s.Info(msg)
}

func (l *FieldLogger) Warn(msg string) {
	l.s.Warn(msg)
}

func (l *FieldLogger) Error(msg string) {
	l.s.Error(msg)
}

// Protocol-specific logging with structured fields

// HTTP logs HTTP protocol activity
func HTTP(method, path string, status, latencyMs int) {
	WithFields(map[string]interface{}{
		"protocol": "http",
		"method":   method,
		"path":     path,
		"status":   status,
		"latency":  latencyMs,
	}).Info(fmt.Sprintf("HTTP %s %s %d - %dms", method, path, status, latencyMs))
}

// TCP logs TCP ingest activity
func TCP(eventType, userID string, count int) {
	WithFields(map[string]interface{}{
		"protocol":   "tcp",
		"event_type": eventType,
		"user_id":    userID,
		"count":      count,
	}).Debug(fmt.Sprintf("TCP %s (user:%s, count:%d)", eventType, userID, count))
}

// Reward logs the outcome of one reward processing pass
func Reward(userID, sourceReportID string, entries, totalPoints int) {
	WithFields(map[string]interface{}{
		"user_id":          userID,
		"source_report_id": sourceReportID,
		"entries":          entries,
		"total_points":     totalPoints,
	}).Debug(fmt.Sprintf("rewards applied for report %s (%d entries)", sourceReportID, entries))
}

// Context-aware logging (for request tracing)
type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID stores a request ID for later log correlation
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithRequestID extracts request ID from context and logs with it
func WithRequestID(ctx context.Context) *FieldLogger {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return WithFields(map[string]interface{}{
			"request_id": requestID,
		})
	}
	return WithFields(nil)
}
