// Package catalog loads the exercise catalog and precomputes the intrinsic
// score every exercise carries into workout generation.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Role classifies how strongly an exercise involves a muscle.
type Role string

const (
	RolePrimary   Role = "P"
	RoleSecondary Role = "S"
	RoleTertiary  Role = "T"
)

// MuscleIntensity is one (muscle, role, level) involvement entry.
type MuscleIntensity struct {
	Muscle string
	Role   Role
	Level  int // 0-10 sub-intensity
}

// Exercise is a single catalog record. Values are fully normalised at load
// time: names are cleaned up, sets/reps parsed, rest seconds and base score
// derived. Exercises are value types and safe to copy around.
type Exercise struct {
	Name                 string
	Description          string
	Difficulty           int // 1-10
	Category             string
	Equipment            string // comma-separated tags, "bodyweight" matches everything
	Gender               string // "male", "female" or "universal"
	CaloriesPerKgPerHour float64
	PrimaryMuscle        string
	Muscles              []MuscleIntensity
	TypicalSetsReps      string
	Sets                 int
	Reps                 int // 0 for timed exercises
	DurationSeconds      int // >0 for timed exercises
	RestSeconds          int
	VideoURL             string
	ExecutionTips        []string
	BaseScore            float64
}

// Timed reports whether the exercise is held for a duration instead of
// counted in reps.
func (e Exercise) Timed() bool {
	return e.Reps == 0
}

// Catalog is the immutable set of exercises loaded from the catalog file.
type Catalog struct {
	exercises []Exercise
	equipment []string
}

const (
	defaultSets            = 3
	defaultReps            = 12
	defaultDurationSeconds = 30
	defaultCalories        = 3.0
)

// Load reads a JSON array of exercise records from r.
//
// Records carry their muscle involvement as dynamic `muscle_intensity_<muscle>`
// keys with values like "P8" or "S4"; these are parsed once here into the
// typed Muscles slice. Malformed sets/reps strings fall back to 3x12.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var records []exerciseRecord
	if err = json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	exercises := make([]Exercise, 0, len(records))
	equipmentSet := make(map[string]struct{})
	for _, record := range records {
		exercise := record.normalise()
		exercises = append(exercises, exercise)
		for _, tag := range splitEquipment(exercise.Equipment) {
			equipmentSet[tag] = struct{}{}
		}
	}

	equipment := make([]string, 0, len(equipmentSet))
	for tag := range equipmentSet {
		equipment = append(equipment, tag)
	}
	sort.Strings(equipment)

	return &Catalog{exercises: exercises, equipment: equipment}, nil
}

// FromExercises builds a catalog from already-normalised exercises, e.g.
// after an enrichment pass over a loaded catalog.
func FromExercises(exercises []Exercise) *Catalog {
	copied := make([]Exercise, len(exercises))
	copy(copied, exercises)

	equipmentSet := make(map[string]struct{})
	for _, exercise := range copied {
		for _, tag := range splitEquipment(exercise.Equipment) {
			equipmentSet[tag] = struct{}{}
		}
	}
	equipment := make([]string, 0, len(equipmentSet))
	for tag := range equipmentSet {
		equipment = append(equipment, tag)
	}
	sort.Strings(equipment)

	return &Catalog{exercises: copied, equipment: equipment}
}

// Exercises returns a copy of all catalog entries.
func (c *Catalog) Exercises() []Exercise {
	exercises := make([]Exercise, len(c.exercises))
	copy(exercises, c.exercises)
	return exercises
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.exercises)
}

// ByName looks up an exercise by name, case-insensitively.
func (c *Catalog) ByName(name string) (Exercise, bool) {
	for _, e := range c.exercises {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Exercise{}, false //nolint:exhaustruct // zero value on miss
}

// Equipment returns the sorted set of distinct equipment tags in the catalog.
func (c *Catalog) Equipment() []string {
	equipment := make([]string, len(c.equipment))
	copy(equipment, c.equipment)
	return equipment
}

// Muscles returns the sorted set of distinct muscle names in the catalog.
func (c *Catalog) Muscles() []string {
	muscleSet := make(map[string]struct{})
	for _, e := range c.exercises {
		for _, m := range e.Muscles {
			muscleSet[m.Muscle] = struct{}{}
		}
	}
	muscles := make([]string, 0, len(muscleSet))
	for m := range muscleSet {
		muscles = append(muscles, m)
	}
	sort.Strings(muscles)
	return muscles
}

// exerciseRecord mirrors the catalog file schema. The dynamic
// muscle_intensity_* keys are collected by the custom UnmarshalJSON.
type exerciseRecord struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Difficulty           int      `json:"difficulty"`
	Category             string   `json:"category"`
	Equipment            string   `json:"equipment"`
	Gender               string   `json:"gender"`
	CaloriesPerKgPerHour float64  `json:"calories_per_kg_per_hour"`
	PrimaryMuscle        string   `json:"primary_muscle"`
	TypicalSetsReps      string   `json:"typical_sets_reps"`
	VideoURL             string   `json:"video_url"`
	ExecutionTips        []string `json:"execution_tips"`

	muscles []MuscleIntensity
}

const muscleIntensityPrefix = "muscle_intensity_"

func (er *exerciseRecord) UnmarshalJSON(data []byte) error {
	type plain exerciseRecord
	if err := json.Unmarshal(data, (*plain)(er)); err != nil {
		return fmt.Errorf("unmarshal exercise: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshal exercise fields: %w", err)
	}
	for key, raw := range fields {
		if !strings.HasPrefix(key, muscleIntensityPrefix) {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		muscle := strings.TrimSpace(strings.TrimPrefix(key, muscleIntensityPrefix))
		if intensity, ok := parseIntensity(muscle, value); ok {
			er.muscles = append(er.muscles, intensity)
		}
	}
	// Map iteration order is random, keep the slice deterministic.
	sort.Slice(er.muscles, func(i, j int) bool {
		return er.muscles[i].Muscle < er.muscles[j].Muscle
	})
	return nil
}

// parseIntensity parses values like "P8", "S4" or "T2". A missing level
// defaults to 1; an unknown role letter drops the entry.
func parseIntensity(muscle, value string) (MuscleIntensity, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return MuscleIntensity{}, false //nolint:exhaustruct // dropped entry
	}
	var role Role
	switch strings.ToUpper(value[:1]) {
	case "P":
		role = RolePrimary
	case "S":
		role = RoleSecondary
	case "T":
		role = RoleTertiary
	default:
		return MuscleIntensity{}, false //nolint:exhaustruct // dropped entry
	}
	level, err := strconv.Atoi(value[1:])
	if err != nil {
		level = 1
	}
	return MuscleIntensity{Muscle: muscle, Role: role, Level: level}, true
}

// nameSetsRepsPattern matches name suffixes like "- 3 sets of 10" or
// "- 4 set of 10-12" which override the typical_sets_reps field.
var nameSetsRepsPattern = regexp.MustCompile(`(?i)\s*-\s*(\d+)\s*sets?\s*of\s*([\d-]+)`)

func (er *exerciseRecord) normalise() Exercise {
	difficulty := er.Difficulty
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 10 {
		difficulty = 10
	}

	calories := er.CaloriesPerKgPerHour
	if calories <= 0 {
		calories = defaultCalories
	}

	equipment := strings.ToLower(strings.TrimSpace(er.Equipment))
	if equipment == "" {
		equipment = "bodyweight"
	}

	category := er.Category
	if category == "" {
		category = "strength"
	}

	name := er.Name
	sets, reps, duration := parseSetsReps(er.TypicalSetsReps)
	if match := nameSetsRepsPattern.FindStringSubmatch(name); match != nil {
		if parsed, err := strconv.Atoi(match[1]); err == nil {
			sets = parsed
		}
		reps = parseRepsValue(match[2], defaultReps)
		duration = 0
		name = strings.TrimSpace(strings.Replace(name, match[0], "", 1))
	}

	return Exercise{
		Name:                 displayName(name),
		Description:          er.Description,
		Difficulty:           difficulty,
		Category:             category,
		Equipment:            equipment,
		Gender:               inferGender(er.Gender, er.VideoURL),
		CaloriesPerKgPerHour: calories,
		PrimaryMuscle:        er.PrimaryMuscle,
		Muscles:              er.muscles,
		TypicalSetsReps:      er.TypicalSetsReps,
		Sets:                 sets,
		Reps:                 reps,
		DurationSeconds:      duration,
		RestSeconds:          restSecondsForDifficulty(difficulty),
		VideoURL:             er.VideoURL,
		ExecutionTips:        er.ExecutionTips,
		BaseScore:            baseScore(difficulty, calories, er.muscles),
	}
}

// parseSetsReps parses "3x12", "3x10-12" (mean of the range) and timed
// variants like "3x30s" or "3x45-60 sekund" where reps become 0 and the
// number is a hold duration in seconds.
func parseSetsReps(typical string) (sets, reps, durationSeconds int) {
	sets, reps, durationSeconds = defaultSets, defaultReps, 0
	if !strings.Contains(typical, "x") {
		return sets, reps, durationSeconds
	}
	parts := strings.SplitN(typical, "x", 2)
	if parsed, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		sets = parsed
	}
	repsPart := strings.ToLower(strings.TrimSpace(parts[1]))
	if repsPart == "" {
		return sets, reps, durationSeconds
	}

	timed := strings.Contains(repsPart, "sekund") ||
		strings.Contains(repsPart, "sec") ||
		(strings.HasSuffix(repsPart, "s") && !strings.Contains(repsPart, "sets"))
	if timed {
		reps = 0
		durationSeconds = parseRepsValue(repsPart, defaultDurationSeconds)
		return sets, reps, durationSeconds
	}
	reps = parseRepsValue(repsPart, defaultReps)
	return sets, reps, durationSeconds
}

// parseRepsValue extracts a number from s, taking the mean of ranges like
// "10-12". Non-numeric input returns fallback.
func parseRepsValue(s string, fallback int) int {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return fallback
	}
	if strings.Contains(cleaned, "-") {
		parts := strings.SplitN(cleaned, "-", 2)
		low, errLow := strconv.Atoi(parts[0])
		high, errHigh := strconv.Atoi(parts[1])
		if errLow == nil && errHigh == nil {
			return (low + high) / 2
		}
		if errLow == nil {
			return low
		}
		return fallback
	}
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return fallback
	}
	return value
}

func restSecondsForDifficulty(difficulty int) int {
	switch {
	case difficulty >= 8:
		return 90
	case difficulty >= 4:
		return 60
	default:
		return 45
	}
}

// baseScore is the intrinsic exercise value set once at load time:
// 0.4*muscleScore + 0.4*calorieScore + 0.2*difficultyScore where the muscle
// score sums role-weighted intensity levels (P=3, S=2, T=1).
func baseScore(difficulty int, caloriesPerKgPerHour float64, muscles []MuscleIntensity) float64 {
	var muscleScore float64
	for _, m := range muscles {
		var weight float64
		switch m.Role {
		case RolePrimary:
			weight = 3.0
		case RoleSecondary:
			weight = 2.0
		case RoleTertiary:
			weight = 1.0
		}
		muscleScore += weight * float64(m.Level)
	}
	calScore := caloriesPerKgPerHour / 10.0
	diffScore := float64(difficulty) / 10.0
	return 0.4*muscleScore + 0.4*calScore + 0.2*diffScore
}

// inferGender falls back to the video URL when the record has no gender
// field; some catalog videos are named after the demonstrating model.
func inferGender(gender, videoURL string) string {
	gender = strings.ToLower(strings.TrimSpace(gender))
	switch gender {
	case "male", "female", "universal":
		return gender
	}
	lowerURL := strings.ToLower(videoURL)
	switch {
	case strings.Contains(lowerURL, "female"):
		return "female"
	case strings.Contains(lowerURL, "male"):
		return "male"
	default:
		return "universal"
	}
}

// displayName turns raw catalog names like "push_up" into "Push Up".
func displayName(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, word := range words {
		runes := []rune(word)
		if runes[0] >= 'a' && runes[0] <= 'z' {
			runes[0] = runes[0] - 'a' + 'A'
			words[i] = string(runes)
		}
	}
	return strings.Join(words, " ")
}

func splitEquipment(equipment string) []string {
	var tags []string
	for _, tag := range strings.Split(equipment, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
