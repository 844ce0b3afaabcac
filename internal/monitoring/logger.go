// Package monitoring sets up process-wide logging: a zap logger for
// commands and io.Writers that feed the per-package log streams into it.
package monitoring

import (
	"bytes"
	"io"
	"log"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or UseZap. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// UseZap routes Logf to l at info level.
func UseZap(l *zap.Logger) {
	SetLogger(l.Sugar().Infof)
}

// NewLogger builds a command logger. Development loggers are console
// encoded at debug level; production loggers are JSON at info level.
func NewLogger(development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Streams returns writers for the ops, diag and trace log streams, logged
// at warn, info and debug. trace is nil unless withTrace is set.
func Streams(l *zap.Logger, withTrace bool) (ops, diag, trace io.Writer) {
	ops = NewZapWriter(l, zapcore.WarnLevel)
	diag = NewZapWriter(l, zapcore.InfoLevel)
	if withTrace {
		trace = NewZapWriter(l, zapcore.DebugLevel)
	}
	return ops, diag, trace
}

// ZapWriter is an io.Writer that logs every complete line written to it
// as one zap entry at a fixed level.
type ZapWriter struct {
	logger *zap.Logger
	level  zapcore.Level

	mu  sync.Mutex
	buf []byte
}

// NewZapWriter returns a writer logging to l at level.
func NewZapWriter(l *zap.Logger, level zapcore.Level) *ZapWriter {
	return &ZapWriter{logger: l.WithOptions(zap.AddCallerSkip(3)), level: level}
}

// Write implements io.Writer. A trailing partial line is held until the
// next newline or Sync.
func (w *ZapWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Sync logs any held partial line and syncs the logger.
func (w *ZapWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
	return w.logger.Sync()
}

func (w *ZapWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	if ce := w.logger.Check(w.level, string(line)); ce != nil {
		ce.Write()
	}
}
