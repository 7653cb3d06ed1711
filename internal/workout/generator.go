package workout

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/myrjola/kuntoapp/internal/catalog"
	"github.com/myrjola/kuntoapp/internal/errors"
	"github.com/myrjola/kuntoapp/internal/nutrition"
)

// ErrNoCandidates is returned when filtering leaves no exercise to pick from.
// The caller must relax equipment or focus constraints and re-request.
var ErrNoCandidates = errors.NewSentinel("no exercises match the requested equipment and profile")

const (
	maxExercisesPerSession = 15
	warmupCount            = 2
)

// Generator ranks and selects catalog exercises for one session.
type Generator struct {
	catalog    *catalog.Catalog
	controller *Controller
	logger     *slog.Logger
}

// NewGenerator creates a generator reading multipliers from controller.
func NewGenerator(cat *catalog.Catalog, controller *Controller, logger *slog.Logger) *Generator {
	return &Generator{
		catalog:    cat,
		controller: controller,
		logger:     logger,
	}
}

// Generate filters the catalog by gender and equipment, ranks the candidates
// by personalized score, and returns the top entries with multiplier-adjusted
// sets/reps and dynamic rest times. The first two entries are warm-ups.
func (g *Generator) Generate(ctx context.Context, params GenerationParams) ([]SelectedExercise, error) {
	target := params.TargetDifficulty
	if target <= 0 {
		target = g.controller.Current()
	}
	if params.Recovery {
		target = recoveryTarget(target, params.CompletedThisWeek, params.WeeklyTarget)
	}

	candidates := g.filter(params)
	if len(candidates) == 0 {
		return nil, errors.Wrap(ErrNoCandidates, "filter catalog",
			slog.Any("equipment", params.Equipment),
			slog.Any("focusAreas", params.FocusAreas))
	}

	focusMuscles := focusMuscleKeys(params.FocusAreas)
	scored := make([]SelectedExercise, 0, len(candidates))
	for _, exercise := range candidates {
		score := personalizedScore(exercise, target, focusMuscles)
		scored = append(scored, SelectedExercise{ //nolint:exhaustruct // sets/reps filled below
			Exercise: exercise,
			Score:    score,
		})
	}

	// Descending by score with a name tiebreak keeps the selection
	// deterministic for identical inputs.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Exercise.Name < scored[j].Exercise.Name
	})

	count := params.ExerciseCount
	if count <= 0 || count > maxExercisesPerSession {
		count = maxExercisesPerSession
	}
	if count > len(scored) {
		count = len(scored)
	}
	selected := scored[:count]

	for i := range selected {
		g.applyParameters(ctx, &selected[i], params.ExperienceLevel)
		selected[i].IsWarmup = i < warmupCount
	}

	g.logger.LogAttrs(ctx, slog.LevelInfo, "generated workout",
		slog.Int("candidates", len(candidates)),
		slog.Int("selected", len(selected)),
		slog.Float64("targetDifficulty", target))

	return selected, nil
}

// filter applies the gender and equipment filters. Experience and goal are
// not filters; they only affect ranking.
func (g *Generator) filter(params GenerationParams) []catalog.Exercise {
	userEquipment := make([]string, 0, len(params.Equipment))
	for _, tag := range params.Equipment {
		userEquipment = append(userEquipment, strings.ToLower(strings.TrimSpace(tag)))
	}

	var candidates []catalog.Exercise
	for _, exercise := range g.catalog.Exercises() {
		if !genderCompatible(exercise.Gender, params.Gender) {
			continue
		}
		if !equipmentCompatible(exercise.Equipment, userEquipment) {
			continue
		}
		candidates = append(candidates, exercise)
	}
	return candidates
}

func genderCompatible(exerciseGender string, userGender nutrition.Gender) bool {
	if exerciseGender == "" || exerciseGender == "universal" {
		return true
	}
	return exerciseGender == string(userGender)
}

// equipmentCompatible reports whether every tag the exercise requires is
// available. Bodyweight requirements always pass; anything else matches a
// user tag by case-insensitive substring in either direction, so "dumbbell"
// matches "adjustable dumbbells".
func equipmentCompatible(required string, userEquipment []string) bool {
	for _, req := range strings.Split(required, ",") {
		req = strings.ToLower(strings.TrimSpace(req))
		if req == "" || req == "bodyweight" || req == "none" {
			continue
		}
		matched := false
		for _, tag := range userEquipment {
			if strings.Contains(tag, req) || strings.Contains(req, tag) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

const (
	focusBonusPrimary   = 8.0
	focusBonusSecondary = 4.0
	focusPenaltyNoMatch = -3.0
)

// personalizedScore is the intrinsic base score plus a difficulty-proximity
// bonus and a focus-area bonus. Focus mismatches push an exercise down the
// list without excluding it.
func personalizedScore(exercise catalog.Exercise, targetDifficulty float64, focusMuscles []string) float64 {
	diffBonus := (10 - math.Abs(float64(exercise.Difficulty)-targetDifficulty)) / 10

	var focusBonus float64
	if len(focusMuscles) > 0 {
		primary := strings.ToLower(exercise.PrimaryMuscle)
		anyMatch := false
		primaryMatch := false
		for _, key := range focusMuscles {
			if primary != "" && (strings.Contains(primary, key) || strings.Contains(key, primary)) {
				primaryMatch = true
			}
			for _, muscle := range exercise.Muscles {
				name := strings.ToLower(muscle.Muscle)
				if strings.Contains(name, key) || strings.Contains(key, name) {
					anyMatch = true
				}
			}
		}
		switch {
		case primaryMatch:
			focusBonus = focusBonusPrimary
		case anyMatch:
			focusBonus = focusBonusSecondary
		default:
			focusBonus = focusPenaltyNoMatch
		}
	}

	return exercise.BaseScore + diffBonus*5 + focusBonus
}

// focusMuscleKeys maps focus areas to the muscle keys used in the catalog.
// "None", "Full Body", "Balance" and an empty set mean no focus restriction.
func focusMuscleKeys(focusAreas []string) []string {
	var keys []string
	for _, focus := range focusAreas {
		normalized := strings.ToLower(strings.TrimSpace(focus))
		switch normalized {
		case "", "none", "full body", "balance":
			return nil
		case "upper body":
			keys = append(keys, "prsni", "hrbet", "ramena", "biceps", "triceps", "prednje podlakti")
		case "lower body", "legs":
			keys = append(keys, "noge – quads", "noge – hamstrings", "zadnjica", "meča")
		case "core", "abs":
			keys = append(keys, "trebuh / core")
		case "arms":
			keys = append(keys, "biceps", "triceps", "prednje podlakti")
		case "chest":
			keys = append(keys, "prsni")
		case "back":
			keys = append(keys, "hrbet")
		case "shoulders":
			keys = append(keys, "ramena")
		case "cardio":
			keys = append(keys, "kardio")
		case "flexibility":
			keys = append(keys, "raztezanje")
		default:
			keys = append(keys, normalized)
		}
	}
	return keys
}

// applyParameters fills in sets, reps/duration and rest for one selection.
func (g *Generator) applyParameters(ctx context.Context, selected *SelectedExercise, experienceLevel int) {
	multiplier := g.controller.ExerciseMultiplier(ctx, selected.Exercise.Name)

	selected.Sets = atLeastOne(int(float64(selected.Exercise.Sets) * multiplier))
	if selected.Exercise.Timed() {
		selected.DurationSeconds = atLeastOne(int(float64(selected.Exercise.DurationSeconds) * multiplier))
	} else {
		selected.Reps = atLeastOne(int(float64(selected.Exercise.Reps) * multiplier))
	}
	selected.RestSeconds = DynamicRest(selected.Exercise.Difficulty, experienceLevel)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// recoveryTarget interpolates the effective difficulty from 50% to 100% of
// base as the week's completed count approaches the target.
func recoveryTarget(base float64, completed, target int) float64 {
	if target <= 0 {
		return base
	}
	if completed < 0 {
		completed = 0
	}
	if completed > target {
		completed = target
	}
	return base * (0.5 + 0.5*float64(completed)/float64(target))
}

// DynamicRest computes rest seconds from exercise difficulty and user
// experience: harder exercises and less experienced users both rest longer.
// The result is clamped to [20, 120].
func DynamicRest(difficulty, experienceLevel int) int {
	if experienceLevel < 1 {
		experienceLevel = 1
	}
	if experienceLevel > 10 {
		experienceLevel = 10
	}
	rest := int(float64(difficulty) * 6 * (1 + float64(10-experienceLevel)*0.055))
	if rest < 20 {
		return 20
	}
	if rest > 120 {
		return 120
	}
	return rest
}
