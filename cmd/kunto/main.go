package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/kuntoapp/internal/catalog"
	"github.com/myrjola/kuntoapp/internal/envstruct"
	"github.com/myrjola/kuntoapp/internal/errors"
	"github.com/myrjola/kuntoapp/internal/flightrecorder"
	"github.com/myrjola/kuntoapp/internal/logging"
	"github.com/myrjola/kuntoapp/internal/nutrition"
	"github.com/myrjola/kuntoapp/internal/sqlite"
	"github.com/myrjola/kuntoapp/internal/workout"
)

type config struct {
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"KUNTO_SQLITE_URL" envDefault:"./kuntoapp.sqlite3"`
	// CatalogPath points to the exercise catalog JSON file.
	CatalogPath string `env:"KUNTO_CATALOG_PATH" envDefault:"./exercises.json"`
	// UserID selects whose difficulty state and reports to use.
	UserID int `env:"KUNTO_USER_ID" envDefault:"1"`
	// OpenAIAPIKey enables catalog enrichment for sparse records when set.
	OpenAIAPIKey string `env:"OPENAI_API_KEY" envDefault:""`
	// Enrich toggles the enrichment pass even when an API key is present.
	Enrich bool `env:"KUNTO_ENRICH" envDefault:"false"`
	// TracesDir enables the flight recorder when set.
	TracesDir string `env:"KUNTO_TRACES_DIR" envDefault:""`
	// TickMillis is the demo session pace: how much wall time one logical
	// session second takes.
	TickMillis int `env:"KUNTO_TICK_MILLIS" envDefault:"50"`

	// Demo profile.
	WeightKg      float64 `env:"KUNTO_WEIGHT_KG" envDefault:"80"`
	HeightCm      float64 `env:"KUNTO_HEIGHT_CM" envDefault:"180"`
	Age           int     `env:"KUNTO_AGE" envDefault:"30"`
	Gender        string  `env:"KUNTO_GENDER" envDefault:"male"`
	Goal          string  `env:"KUNTO_GOAL" envDefault:"muscle_gain"`
	Experience    string  `env:"KUNTO_EXPERIENCE" envDefault:"intermediate"`
	Equipment     string  `env:"KUNTO_EQUIPMENT" envDefault:"bodyweight"`
	FocusAreas    string  `env:"KUNTO_FOCUS_AREAS" envDefault:""`
	WeeklyFreq    int     `env:"KUNTO_WEEKLY_FREQUENCY" envDefault:"3"`
	Recovery      bool    `env:"KUNTO_RECOVERY" envDefault:"false"`
	ExerciseCount int     `env:"KUNTO_EXERCISE_COUNT" envDefault:"6"`
}

// slowGenerationThreshold triggers a flight recorder capture when session
// loading takes longer than this.
const slowGenerationThreshold = 2 * time.Second

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	var recorder *flightrecorder.Recorder
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(cfg.TracesDir, logger); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop()
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", slog.Any("error", closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	cat, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "load catalog", slog.String("path", cfg.CatalogPath))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "catalog loaded",
		slog.Int("exercises", cat.Len()),
		slog.Any("equipment", cat.Equipment()))

	profile := profileFromConfig(cfg)
	plan := nutrition.Calculate(profile, nutritionContext(cfg))
	logger.LogAttrs(ctx, slog.LevelInfo, "nutrition plan",
		slog.Float64("bmr", plan.BMR),
		slog.Float64("tdee", plan.TDEE),
		slog.Float64("targetCalories", plan.TargetCalories),
		slog.String("bmiCategory", plan.BMICategory),
		slog.Int("proteinGrams", plan.Macros.ProteinGrams),
		slog.Int("carbsGrams", plan.Macros.CarbsGrams),
		slog.Int("fatGrams", plan.Macros.FatGrams),
		slog.Any("assumptions", plan.Assumptions))

	repo := workout.NewRepository(db, int64(cfg.UserID), logger)
	service := workout.NewService(cat, repo, logger)

	params := generationParams(cfg, profile)
	started := time.Now()
	session, err := service.StartSession(ctx, params)
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	if elapsed := time.Since(started); elapsed > slowGenerationThreshold && recorder != nil {
		recorder.CaptureSlow(ctx, "start-session", elapsed)
	}
	if session.State() == workout.StateError {
		logger.LogAttrs(ctx, slog.LevelError, "session unavailable",
			slog.String("reason", session.ErrorMessage()))
		return nil
	}

	return runDemoSession(ctx, session, cfg, logger)
}

func loadCatalog(ctx context.Context, cfg config, logger *slog.Logger) (*catalog.Catalog, error) {
	file, err := os.Open(cfg.CatalogPath)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close catalog file", slog.Any("error", closeErr))
		}
	}()

	cat, err := catalog.Load(file)
	if err != nil {
		return nil, err
	}

	if cfg.Enrich && cfg.OpenAIAPIKey != "" {
		generator := catalog.NewContentGenerator(cfg.OpenAIAPIKey, cat.Muscles(), logger)
		enriched := generator.EnrichSparse(ctx, cat.Exercises())
		return catalog.FromExercises(enriched), nil
	}
	return cat, nil
}

func profileFromConfig(cfg config) nutrition.Profile {
	return nutrition.Profile{ //nolint:exhaustruct // body fat unknown in the demo
		WeightKg: cfg.WeightKg,
		HeightCm: cfg.HeightCm,
		Age:      cfg.Age,
		Gender:   nutrition.Gender(cfg.Gender),
	}
}

func nutritionContext(cfg config) nutrition.Context {
	return nutrition.Context{ //nolint:exhaustruct // sleep/diet/limitations default
		Goal:              nutrition.Goal(cfg.Goal),
		Experience:        nutrition.Experience(cfg.Experience),
		TrainingFrequency: strconv.Itoa(cfg.WeeklyFreq) + "x",
	}
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(value string) []string {
	var entries []string
	for _, entry := range strings.Split(value, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

func generationParams(cfg config, profile nutrition.Profile) workout.GenerationParams {
	experience := nutrition.Experience(cfg.Experience)
	return workout.GenerationParams{ //nolint:exhaustruct // target difficulty comes from the controller
		Experience:      experience,
		ExperienceLevel: workout.ExperienceLevelFor(experience),
		Gender:          profile.Gender,
		Equipment:       splitList(cfg.Equipment),
		Goal:            nutrition.Goal(cfg.Goal),
		FocusAreas:      splitList(cfg.FocusAreas),
		ExerciseCount:   cfg.ExerciseCount,
		WeightKg:        profile.WeightKg,
		Recovery:        cfg.Recovery,
		WeeklyTarget:    cfg.WeeklyFreq,
	}
}

// runDemoSession drives a full session to its report: each exercise runs a
// few logical seconds per set at the configured tick pace, every set is rated
// ok, rests are skipped.
func runDemoSession(ctx context.Context, session *workout.Session, cfg config, logger *slog.Logger) error {
	for _, exercise := range session.Exercises() {
		logger.LogAttrs(ctx, slog.LevelInfo, "planned exercise",
			slog.String("name", exercise.Exercise.Name),
			slog.Int("sets", exercise.Sets),
			slog.Int("reps", exercise.Reps),
			slog.Int("durationSeconds", exercise.DurationSeconds),
			slog.Int("restSeconds", exercise.RestSeconds),
			slog.Bool("warmup", exercise.IsWarmup))
	}
	if err := session.Start(); err != nil {
		return errors.Wrap(err, "start session run")
	}

	ticker := time.NewTicker(time.Duration(cfg.TickMillis) * time.Millisecond)
	defer ticker.Stop()

	const secondsPerSet = 45
	for session.State() != workout.StateReport {
		select {
		case <-ctx.Done():
			session.Cancel()
			logger.LogAttrs(ctx, slog.LevelInfo, "session cancelled")
			return nil
		case <-ticker.C:
			session.Tick()
		}

		switch session.State() {
		case workout.StateExercise:
			if session.ElapsedSeconds() > 0 && session.ElapsedSeconds()%secondsPerSet == 0 {
				if err := session.CompleteSet(ctx, workout.RatingOK); err != nil {
					return errors.Wrap(err, "complete set")
				}
			}
		case workout.StateRest:
			if err := session.SkipRest(); err != nil {
				return errors.Wrap(err, "skip rest")
			}
		case workout.StateLoading, workout.StatePreview, workout.StateReport, workout.StateError:
		}
	}

	report, ok := session.Report()
	if !ok {
		return errors.New("session finished without a report")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "session report",
		slog.Int("exercises", len(report.Results)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("totalKcal", report.TotalKcal),
		slog.Float64("totalMinutes", report.TotalMinutes))

	if err := session.SubmitReport(ctx, workout.SessionJustRight); err != nil {
		return errors.Wrap(err, "submit report")
	}
	return nil
}

func main() {
	ctx := context.Background()
	logger := logging.NewLogger(os.Stdout, slog.LevelDebug)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure running application", errors.SlogError(err))
		os.Exit(1)
	}
}
