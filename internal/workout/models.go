// Package workout generates personalized workout sessions from the exercise
// catalog, adapts difficulty from user feedback, and drives the session
// state machine.
package workout

import (
	"github.com/myrjola/kuntoapp/internal/catalog"
	"github.com/myrjola/kuntoapp/internal/nutrition"
)

// GenerationParams is one session request. Constructed fresh per session by
// the caller from a stored plan or ad-hoc overrides.
type GenerationParams struct {
	Experience       nutrition.Experience
	ExperienceLevel  int     // 1-10
	TargetDifficulty float64 // 0 means "derive from the difficulty controller"
	Gender           nutrition.Gender
	Equipment        []string // available equipment tags
	Goal             nutrition.Goal
	FocusAreas       []string // e.g. "Legs", "Full Body"; empty means no restriction
	ExerciseCount    int
	DurationMinutes  int
	WeightKg         float64

	// Recovery scales the target difficulty down early in a tracking week.
	// The completion signal is read-only input to the engine.
	Recovery          bool
	WeeklyTarget      int
	CompletedThisWeek int
}

// ExperienceLevelFor maps an experience tier to the 1-10 numeric level used
// in rest-time and scoring calculations.
func ExperienceLevelFor(experience nutrition.Experience) int {
	switch experience {
	case nutrition.ExperienceBeginner:
		return 3
	case nutrition.ExperienceIntermediate:
		return 6
	case nutrition.ExperienceAdvanced:
		return 9
	default:
		return 3
	}
}

// SelectedExercise is a catalog record prepared for one session: multiplier
// applied to sets/reps, rest computed, score recorded. Owned by the session
// being built and discarded afterwards.
type SelectedExercise struct {
	Exercise        catalog.Exercise
	Sets            int
	Reps            int // 0 for timed exercises
	DurationSeconds int // >0 for timed exercises
	RestSeconds     int
	IsWarmup        bool
	Score           float64
}

// SetRating is the per-set difficulty feedback submitted when the user
// finishes an exercise.
type SetRating int

const (
	RatingTooEasy SetRating = iota
	RatingOK
	RatingTooHard
)

func (r SetRating) String() string {
	switch r {
	case RatingTooEasy:
		return "too easy"
	case RatingTooHard:
		return "too hard"
	default:
		return "ok"
	}
}

// SessionRating is the aggregate feedback submitted once at session end.
type SessionRating int

const (
	SessionTooShort SessionRating = iota
	SessionJustRight
	SessionTooLong
)

func (r SessionRating) String() string {
	switch r {
	case SessionTooShort:
		return "too short"
	case SessionTooLong:
		return "too long"
	default:
		return "just right"
	}
}

// ExerciseResult is the measured outcome of one completed exercise.
type ExerciseResult struct {
	Name          string
	ActiveMinutes float64
	RestMinutes   float64
	CaloriesKcal  int
	Rating        SetRating
}

// Report is the terminal output of a session, handed to the report sink.
type Report struct {
	Results      []ExerciseResult
	Skipped      []string
	TotalKcal    int
	TotalMinutes float64
	Rating       SessionRating
}
