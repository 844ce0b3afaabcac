package blockworld

import (
	"io"
	"log"
	"sync"

	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/banshee-data/blockworld/internal/blockworld/l5identity"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/banshee-data/blockworld/internal/blockworld/monitor"
	"github.com/banshee-data/blockworld/internal/blockworld/robot"
	"github.com/banshee-data/blockworld/internal/blockworld/scenario"
	"github.com/banshee-data/blockworld/internal/blockworld/storage/sqlite"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three logging streams of every BlockWorld
// package at once. Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	for _, set := range []func(ops, diag, trace io.Writer){
		l1frames.SetLogWriters,
		l2vision.SetLogWriters,
		l3objects.SetLogWriters,
		l4navmap.SetLogWriters,
		l5identity.SetLogWriters,
		l6world.SetLogWriters,
		robot.SetLogWriters,
		sqlite.SetLogWriters,
		monitor.SetLogWriters,
		scenario.SetLogWriters,
	} {
		set(w.Ops, w.Diag, w.Trace)
	}

	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[blockworld] ", w.Ops)
	diagLogger = newLogger("[blockworld] ", w.Diag)
	traceLogger = newLogger("[blockworld] ", w.Trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (actionable warnings, errors, lifecycle events).
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (per-run summaries, tuning context).
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream (per-tick telemetry).
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
