// Package flightrecorder captures runtime traces of abnormally slow engine
// operations, such as a workout generation that blows past its deadline.
package flightrecorder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/myrjola/kuntoapp/internal/errors"
)

const (
	defaultMinAge   = 2 * time.Minute
	defaultMaxBytes = 32 * 1024 * 1024

	// captureCooldown keeps a storm of slow operations from filling the
	// traces directory.
	captureCooldown = 15 * time.Minute
)

// Recorder keeps a rolling in-memory execution trace and writes it out on
// demand. Safe for concurrent capture calls.
type Recorder struct {
	logger    *slog.Logger
	recorder  *trace.FlightRecorder
	tracesDir string

	lastCapture atomic.Int64 // unix seconds
}

// New prepares a recorder writing trace files under tracesDir, creating the
// directory when needed.
func New(tracesDir string, logger *slog.Logger) (*Recorder, error) {
	if tracesDir == "" {
		return nil, errors.New("traces directory is required")
	}
	if stat, err := os.Stat(tracesDir); err != nil {
		if err = os.MkdirAll(tracesDir, 0o700); err != nil {
			return nil, errors.Wrap(err, "create traces directory")
		}
	} else if !stat.IsDir() {
		return nil, errors.New("traces path is not a directory: " + tracesDir)
	}

	recorder := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   defaultMinAge,
		MaxBytes: defaultMaxBytes,
	})

	return &Recorder{ //nolint:exhaustruct // lastCapture starts at zero
		logger:    logger,
		recorder:  recorder,
		tracesDir: tracesDir,
	}, nil
}

// Start begins rolling trace collection.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.recorder.Start(); err != nil {
		return errors.Wrap(err, "start flight recorder")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("tracesDir", r.tracesDir))
	return nil
}

// Stop ends trace collection.
func (r *Recorder) Stop() {
	r.recorder.Stop()
}

// CaptureSlow writes the rolling trace to a file named after the slow
// operation. Captures inside the cooldown window are dropped; failures are
// logged and never propagate, a missing trace must not break the operation
// that triggered it.
func (r *Recorder) CaptureSlow(ctx context.Context, operation string, elapsed time.Duration) {
	now := time.Now().Unix()
	last := r.lastCapture.Load()
	if last > 0 && time.Duration(now-last)*time.Second < captureCooldown {
		return
	}
	if !r.lastCapture.CompareAndSwap(last, now) {
		return
	}

	filename := operation + "-" + time.Unix(now, 0).UTC().Format("20060102-150405") + ".trace"
	path := filepath.Join(r.tracesDir, filename)

	file, err := os.Create(path)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to create trace file",
			slog.String("file", path), slog.Any("error", err))
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to close trace file",
				slog.String("file", path), slog.Any("error", closeErr))
		}
	}()

	written, err := r.recorder.WriteTo(file)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to write trace",
			slog.String("file", path), slog.Any("error", err))
		return
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured slow operation trace",
		slog.String("operation", operation),
		slog.Duration("elapsed", elapsed),
		slog.String("file", path),
		slog.Int64("bytes", written))
}
