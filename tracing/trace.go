//go:build trace

// Package tracing wraps runtime/trace so pipeline stages show up as tasks and
// regions in go tool trace output. The real implementation is gated behind
// the trace build tag; default builds get no-ops.
package tracing

import (
	"context"
	"os"
	"runtime/trace"
	"time"
)

var (
	traceFile      *os.File
	flightRecorder *trace.FlightRecorder
)

// Start enables runtime tracing, writing trace data to the given path.
func Start(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return err
	}
	traceFile = f
	return nil
}

// Stop stops runtime tracing and closes the trace file.
func Stop() {
	trace.Stop()
	if traceFile != nil {
		traceFile.Close()
		traceFile = nil
	}
}

// StartTask begins a trace task for one file analysis. The returned function
// ends the task.
func StartTask(ctx context.Context, name string) (context.Context, func()) {
	ctx, task := trace.NewTask(ctx, name)
	return ctx, task.End
}

// StartRegion marks one pipeline stage inside a task.
func StartRegion(ctx context.Context, name string) func() {
	return trace.StartRegion(ctx, name).End
}

// Log attaches a category/message event to the enclosing task.
func Log(ctx context.Context, category, message string) {
	trace.Log(ctx, category, message)
}

// StartFlightRecorder keeps a rolling in-memory trace window for post-mortem
// capture of slow batches.
func StartFlightRecorder(maxBytes uint64, minAge time.Duration) error {
	flightRecorder = trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MaxBytes: maxBytes,
		MinAge:   minAge,
	})
	return flightRecorder.Start()
}

// StopFlightRecorder stops the flight recorder if it is running.
func StopFlightRecorder() {
	if flightRecorder != nil {
		flightRecorder.Stop()
		flightRecorder = nil
	}
}

// WriteFlightRecorder dumps the current flight recorder window to path.
func WriteFlightRecorder(path string) error {
	if flightRecorder == nil || !flightRecorder.Enabled() {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = flightRecorder.WriteTo(f)
	return err
}
