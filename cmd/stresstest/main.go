// Command stresstest runs many concurrent workout sessions against a single
// SQLite database to shake out contention in the difficulty store and the
// report sink. Exits non-zero when the success rate drops below the
// threshold.
package main

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/myrjola/kuntoapp/internal/catalog"
	"github.com/myrjola/kuntoapp/internal/nutrition"
	"github.com/myrjola/kuntoapp/internal/sqlite"
	"github.com/myrjola/kuntoapp/internal/testhelpers"
	"github.com/myrjola/kuntoapp/internal/workout"
	"golang.org/x/sync/errgroup"
)

const (
	userCount            = 50
	sessionsPerUser      = 4
	maxConcurrentUsers   = 10
	runTimeout           = 5 * time.Minute
	successRateThreshold = 95.0
	percentageMultiplier = 100
	expectedArgsCount    = 2
)

func runSession(ctx context.Context, service *workout.Service) error {
	session, err := service.StartSession(ctx, workout.GenerationParams{ //nolint:exhaustruct // defaults suffice
		Experience:      nutrition.ExperienceIntermediate,
		ExperienceLevel: 6,
		WeightKg:        75,
		ExerciseCount:   5,
		WeeklyTarget:    4,
	})
	if err != nil {
		return err
	}
	if err = session.Start(); err != nil {
		return err
	}

	for session.State() != workout.StateReport {
		session.Tick()
		switch session.State() {
		case workout.StateExercise:
			// A minute of logical work per set keeps reports non-trivial.
			if session.ElapsedSeconds() >= 60 {
				if err = session.CompleteSet(ctx, workout.RatingTooEasy); err != nil {
					return err
				}
			}
		case workout.StateRest:
			if err = session.SkipRest(); err != nil {
				return err
			}
		case workout.StateLoading, workout.StatePreview, workout.StateReport, workout.StateError:
		}
	}
	return session.SubmitReport(ctx, workout.SessionJustRight)
}

func run(ctx context.Context, catalogPath string, logger *slog.Logger) (succeeded, failed int64, err error) {
	file, err := os.Open(catalogPath)
	if err != nil {
		return 0, 0, err
	}
	cat, err := catalog.Load(file)
	if closeErr := file.Close(); closeErr != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "failed to close catalog file", slog.Any("error", closeErr))
	}
	if err != nil {
		return 0, 0, err
	}

	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", slog.Any("error", closeErr))
		}
	}()

	var successCount, failureCount atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUsers)

	for userID := int64(1); userID <= userCount; userID++ {
		g.Go(func() error {
			repo := workout.NewRepository(db, userID, logger)
			service := workout.NewService(cat, repo, logger)
			for i := 0; i < sessionsPerUser; i++ {
				if err := runSession(gctx, service); err != nil {
					failureCount.Add(1)
					logger.LogAttrs(gctx, slog.LevelWarn, "session failed",
						slog.Int64("userID", userID), slog.Any("error", err))
					continue
				}
				successCount.Add(1)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return successCount.Load(), failureCount.Load(), err
	}
	return successCount.Load(), failureCount.Load(), nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <catalog.json>")
		os.Exit(1)
	}

	start := time.Now()
	succeeded, failed, err := run(ctx, os.Args[1], logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "stress test aborted", slog.Any("error", err))
		os.Exit(1)
	}

	total := succeeded + failed
	successRate := float64(succeeded) / float64(total) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "stress test finished",
		slog.Int64("sessions", total),
		slog.Int64("failed", failed),
		slog.Float64("successRate", successRate),
		slog.Duration("elapsed", time.Since(start)))

	if successRate < successRateThreshold {
		os.Exit(1)
	}
}
