package workout

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/kuntoapp/internal/errors"
	"github.com/myrjola/kuntoapp/internal/sqlite"
)

// Repository persists difficulty state and session reports for one user. It
// implements DifficultyStore and ReportSink on top of the dual-pool sqlite
// database: reads go to the read pool, writes to the single-connection write
// pool.
type Repository struct {
	db     *sqlite.Database
	userID int64
	logger *slog.Logger
}

func NewRepository(db *sqlite.Database, userID int64, logger *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		userID: userID,
		logger: logger,
	}
}

// DifficultyState loads the persisted base difficulty and session offset.
// The ok result is false when the user has no state yet.
func (r *Repository) DifficultyState(ctx context.Context) (float64, float64, bool, error) {
	var (
		difficulty float64
		offset     float64
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT difficulty, level_offset FROM difficulty_state WHERE user_id = ?`,
		r.userID).Scan(&difficulty, &offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, errors.Wrap(err, "query difficulty state")
	}
	return difficulty, offset, true, nil
}

func (r *Repository) SaveDifficultyState(ctx context.Context, difficulty, offset float64) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO difficulty_state (user_id, difficulty, level_offset, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			difficulty = excluded.difficulty,
			level_offset = excluded.level_offset,
			updated_at = excluded.updated_at`,
		r.userID, difficulty, offset, time.Now())
	if err != nil {
		return errors.Wrap(err, "save difficulty state")
	}
	return nil
}

// ExerciseMultiplier returns the stored per-exercise multiplier, defaulting
// to 1.0 for exercises never rated.
func (r *Repository) ExerciseMultiplier(ctx context.Context, exerciseName string) (float64, error) {
	var multiplier float64
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT multiplier FROM exercise_multipliers WHERE user_id = ? AND exercise_name = ?`,
		r.userID, exerciseName).Scan(&multiplier)
	if errors.Is(err, sql.ErrNoRows) {
		return 1.0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "query exercise multiplier", slog.String("exercise", exerciseName))
	}
	return multiplier, nil
}

func (r *Repository) SaveExerciseMultiplier(ctx context.Context, exerciseName string, multiplier float64) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO exercise_multipliers (user_id, exercise_name, multiplier, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, exercise_name) DO UPDATE SET
			multiplier = excluded.multiplier,
			updated_at = excluded.updated_at`,
		r.userID, exerciseName, multiplier, time.Now())
	if err != nil {
		return errors.Wrap(err, "save exercise multiplier", slog.String("exercise", exerciseName))
	}
	return nil
}

// SaveReport writes the session report and its per-exercise rows in one
// transaction.
func (r *Repository) SaveReport(ctx context.Context, report Report) error {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin report transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback report transaction",
				slog.Any("error", err))
		}
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO session_reports (user_id, completed_at, total_kcal, total_minutes, skipped_count, rating)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.userID, time.Now(), report.TotalKcal, report.TotalMinutes, len(report.Skipped), report.Rating.String())
	if err != nil {
		return errors.Wrap(err, "insert session report")
	}
	reportID, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "read session report id")
	}

	for i, exercise := range report.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_report_exercises (report_id, position, name, active_minutes, rest_minutes, kcal, rating)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			reportID, i, exercise.Name, exercise.ActiveMinutes, exercise.RestMinutes,
			exercise.CaloriesKcal, exercise.Rating.String())
		if err != nil {
			return errors.Wrap(err, "insert session report exercise", slog.String("exercise", exercise.Name))
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit report transaction")
	}
	return nil
}

// CompletedThisWeek counts sessions finished since the start of the current
// ISO week (Monday 00:00 local time).
func (r *Repository) CompletedThisWeek(ctx context.Context) (int, error) {
	var count int
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM session_reports WHERE user_id = ? AND completed_at >= ?`,
		r.userID, startOfWeek(time.Now())).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count completed sessions")
	}
	return count, nil
}

func startOfWeek(now time.Time) time.Time {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	year, month, day := now.AddDate(0, 0, -daysSinceMonday).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}
