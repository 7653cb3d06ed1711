package workout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myrjola/kuntoapp/internal/nutrition"
)

// DifficultyStore persists per-user difficulty state. The sqlite-backed
// Repository implements it; tests use an in-memory fake.
type DifficultyStore interface {
	// DifficultyState returns the stored global difficulty and offset.
	// ok is false when nothing has been stored yet.
	DifficultyState(ctx context.Context) (difficulty, offset float64, ok bool, err error)
	SaveDifficultyState(ctx context.Context, difficulty, offset float64) error
	// ExerciseMultiplier returns the stored multiplier for an exercise,
	// or 1.0 when none is stored.
	ExerciseMultiplier(ctx context.Context, exerciseName string) (float64, error)
	SaveExerciseMultiplier(ctx context.Context, exerciseName string, multiplier float64) error
}

// Multiplier and difficulty bounds.
const (
	minMultiplier = 0.5
	maxMultiplier = 2.0

	multiplierStepUp   = 1.05
	multiplierStepDown = 0.95

	minOffset = -3.0
	maxOffset = 3.0

	offsetStep = 0.5

	maxDifficulty        = 10.0
	weeklyDifficultyStep = 0.5
)

// SeedDifficultyFor returns the initial global difficulty for an experience
// tier, used when no stored value exists yet.
func SeedDifficultyFor(experience nutrition.Experience) float64 {
	switch experience {
	case nutrition.ExperienceBeginner:
		return 4.0
	case nutrition.ExperienceIntermediate:
		return 7.0
	case nutrition.ExperienceAdvanced:
		return 9.0
	default:
		return 4.0
	}
}

// Controller maintains the per-user difficulty state: a global scalar plus
// per-exercise multipliers, adjusted from explicit feedback.
//
// Persistence failures are non-fatal: the controller keeps working on its
// in-memory values and re-puts unsaved ones opportunistically on the next
// store interaction. A session never fails because of a persistence error.
type Controller struct {
	store  DifficultyStore
	logger *slog.Logger

	base        float64
	offset      float64
	multipliers map[string]float64

	stateDirty       bool
	dirtyMultipliers map[string]struct{}
}

// NewController loads or seeds the difficulty state. Seeding happens at most
// once per user and is idempotent: an existing stored value always wins.
func NewController(
	ctx context.Context,
	store DifficultyStore,
	experience nutrition.Experience,
	logger *slog.Logger,
) (*Controller, error) {
	c := &Controller{
		store:            store,
		logger:           logger,
		multipliers:      make(map[string]float64),
		dirtyMultipliers: make(map[string]struct{}),
	}

	difficulty, offset, ok, err := store.DifficultyState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load difficulty state: %w", err)
	}
	if ok {
		c.base = difficulty
		c.offset = offset
		return c, nil
	}

	c.base = SeedDifficultyFor(experience)
	if err = store.SaveDifficultyState(ctx, c.base, c.offset); err != nil {
		c.stateDirty = true
		logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist seeded difficulty",
			slog.Float64("difficulty", c.base), slog.Any("error", err))
	}
	return c, nil
}

// Current returns the effective global difficulty: base plus the feedback
// offset, clamped to [1, 10].
func (c *Controller) Current() float64 {
	current := c.base + c.offset
	if current < 1 {
		return 1
	}
	if current > maxDifficulty {
		return maxDifficulty
	}
	return current
}

// ExerciseMultiplier returns the multiplier for an exercise, preferring the
// in-memory value over the store.
func (c *Controller) ExerciseMultiplier(ctx context.Context, exerciseName string) float64 {
	if multiplier, ok := c.multipliers[exerciseName]; ok {
		return multiplier
	}
	multiplier, err := c.store.ExerciseMultiplier(ctx, exerciseName)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to read exercise multiplier",
			slog.String("exercise", exerciseName), slog.Any("error", err))
		return 1.0
	}
	c.multipliers[exerciseName] = multiplier
	return multiplier
}

// RateExercise applies a per-set rating to the exercise's multiplier and
// persists the result immediately.
func (c *Controller) RateExercise(ctx context.Context, exerciseName string, rating SetRating) {
	multiplier := c.ExerciseMultiplier(ctx, exerciseName)
	switch rating {
	case RatingTooEasy:
		multiplier *= multiplierStepUp
	case RatingTooHard:
		multiplier *= multiplierStepDown
	case RatingOK:
		return
	}
	multiplier = clamp(multiplier, minMultiplier, maxMultiplier)
	c.multipliers[exerciseName] = multiplier

	c.flushDirty(ctx)
	if err := c.store.SaveExerciseMultiplier(ctx, exerciseName, multiplier); err != nil {
		c.dirtyMultipliers[exerciseName] = struct{}{}
		c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist exercise multiplier",
			slog.String("exercise", exerciseName),
			slog.Float64("multiplier", multiplier),
			slog.Any("error", err))
	}
}

// RateSession applies the aggregate session rating: one half-point nudge to
// the global offset per session, clamped to [-3, 3] around the base.
func (c *Controller) RateSession(ctx context.Context, rating SessionRating) {
	switch rating {
	case SessionTooShort:
		c.offset += offsetStep
	case SessionTooLong:
		c.offset -= offsetStep
	case SessionJustRight:
		return
	}
	c.offset = clamp(c.offset, minOffset, maxOffset)
	c.saveState(ctx)
}

// CompleteWeek raises the base difficulty by half a point at the end of a
// completed training week, capped at 10.
func (c *Controller) CompleteWeek(ctx context.Context) {
	c.base = clamp(c.base+weeklyDifficultyStep, 0, maxDifficulty)
	c.saveState(ctx)
}

func (c *Controller) saveState(ctx context.Context) {
	c.flushDirty(ctx)
	if err := c.store.SaveDifficultyState(ctx, c.base, c.offset); err != nil {
		c.stateDirty = true
		c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist difficulty state",
			slog.Float64("difficulty", c.base),
			slog.Float64("offset", c.offset),
			slog.Any("error", err))
		return
	}
	c.stateDirty = false
}

// flushDirty retries writes that failed earlier.
func (c *Controller) flushDirty(ctx context.Context) {
	if c.stateDirty {
		if err := c.store.SaveDifficultyState(ctx, c.base, c.offset); err == nil {
			c.stateDirty = false
		}
	}
	for name := range c.dirtyMultipliers {
		if err := c.store.SaveExerciseMultiplier(ctx, name, c.multipliers[name]); err == nil {
			delete(c.dirtyMultipliers, name)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
