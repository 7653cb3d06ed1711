package workout

import (
	"context"
	"log/slog"

	"github.com/myrjola/kuntoapp/internal/errors"
)

// State of a running session. The machine is linear:
// Loading -> Preview -> Exercise(i) <-> Rest -> Report, with Error reachable
// from Loading only.
type State int

const (
	StateLoading State = iota
	StatePreview
	StateExercise
	StateRest
	StateReport
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePreview:
		return "preview"
	case StateExercise:
		return "exercise"
	case StateRest:
		return "rest"
	case StateReport:
		return "report"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ReportSink consumes the final session report. The sqlite-backed Repository
// implements it.
type ReportSink interface {
	SaveReport(ctx context.Context, report Report) error
}

var (
	ErrInvalidTransition = errors.NewSentinel("invalid session state transition")
	ErrNoSkipsLeft       = errors.NewSentinel("skip budget exhausted")
)

const (
	defaultSkipBudget = 3

	// Post-session timing assumes 80% of the measured exercise time was
	// active work and 20% incidental rest. A plausible heuristic carried
	// over unchanged, not re-derived.
	activeShare = 0.8

	restExtendSeconds = 10
)

// Session drives a user through the generated exercises. It is logically
// single-threaded: exactly one state is active and all mutations happen on
// the caller's goroutine. Time advances only through Tick, so tests run
// without wall time.
type Session struct {
	logger     *slog.Logger
	controller *Controller
	sink       ReportSink
	weightKg   float64

	state      State
	errMessage string
	exercises  []SelectedExercise

	index          int
	setNumber      int
	elapsedSeconds int
	restRemaining  int

	results   []ExerciseResult
	skipped   []string
	skipsLeft int

	report        *Report
	reportPending bool
	cancelled     bool
}

func newSession(controller *Controller, sink ReportSink, weightKg float64, logger *slog.Logger) *Session {
	return &Session{ //nolint:exhaustruct // remaining fields start at zero values
		logger:     logger,
		controller: controller,
		sink:       sink,
		weightKg:   weightKg,
		state:      StateLoading,
		skipsLeft:  defaultSkipBudget,
	}
}

// ready moves Loading to Preview with the generated exercise list.
func (s *Session) ready(exercises []SelectedExercise) {
	s.exercises = exercises
	s.state = StatePreview
}

// fail moves Loading to the terminal Error state.
func (s *Session) fail(message string) {
	s.errMessage = message
	s.state = StateError
}

// State returns the current session state.
func (s *Session) State() State { return s.state }

// ErrorMessage returns the user-facing message of the Error state.
func (s *Session) ErrorMessage() string { return s.errMessage }

// Exercises returns a copy of the session's exercise list.
func (s *Session) Exercises() []SelectedExercise {
	exercises := make([]SelectedExercise, len(s.exercises))
	copy(exercises, s.exercises)
	return exercises
}

// CurrentIndex returns the index of the active exercise.
func (s *Session) CurrentIndex() int { return s.index }

// SetNumber returns the 1-based number of the active set.
func (s *Session) SetNumber() int { return s.setNumber }

// ElapsedSeconds returns the seconds counted against the active exercise.
func (s *Session) ElapsedSeconds() int { return s.elapsedSeconds }

// RestRemaining returns the seconds left on the rest countdown.
func (s *Session) RestRemaining() int { return s.restRemaining }

// SkipsLeft returns the remaining skip budget.
func (s *Session) SkipsLeft() int { return s.skipsLeft }

// CanSkip reports whether the skip budget allows another skip.
func (s *Session) CanSkip() bool { return s.skipsLeft > 0 }

// Start moves Preview to the first exercise.
func (s *Session) Start() error {
	if s.state != StatePreview {
		return errors.Wrap(ErrInvalidTransition, "start session", slog.String("state", s.state.String()))
	}
	if len(s.exercises) == 0 {
		return errors.Wrap(ErrInvalidTransition, "start session without exercises")
	}
	s.enterExercise(0)
	return nil
}

// Tick advances session time by one second. The elapsed counter only runs
// while an Exercise state is active; the rest countdown only while resting.
// Reaching zero rest auto-advances to the next exercise.
func (s *Session) Tick() {
	switch s.state {
	case StateExercise:
		s.elapsedSeconds++
	case StateRest:
		s.restRemaining--
		if s.restRemaining <= 0 {
			s.enterExercise(s.index)
		}
	case StateLoading, StatePreview, StateReport, StateError:
	}
}

// CompleteSet finishes the active set. With sets remaining it increments the
// set counter in place. On the final set it stops the timer, splits the
// measured time 80/20 into active/rest, computes calories from the actual
// active minutes, feeds the rating into the difficulty controller, and
// advances to Rest or Report.
func (s *Session) CompleteSet(ctx context.Context, rating SetRating) error {
	if s.state != StateExercise {
		return errors.Wrap(ErrInvalidTransition, "complete set", slog.String("state", s.state.String()))
	}

	exercise := s.exercises[s.index]
	if s.setNumber < exercise.Sets {
		s.setNumber++
		return nil
	}

	totalMinutes := float64(s.elapsedSeconds) / 60
	activeMinutes := totalMinutes * activeShare
	restMinutes := totalMinutes - activeMinutes

	s.controller.RateExercise(ctx, exercise.Exercise.Name, rating)

	s.results = append(s.results, ExerciseResult{
		Name:          exercise.Exercise.Name,
		ActiveMinutes: activeMinutes,
		RestMinutes:   restMinutes,
		CaloriesKcal:  actualCalories(exercise.Exercise.CaloriesPerKgPerHour, s.weightKg, activeMinutes),
		Rating:        rating,
	})
	s.advance(exercise.RestSeconds)
	return nil
}

// Previous moves back to the preceding exercise. Its set counter and elapsed
// timer start over.
func (s *Session) Previous() error {
	if s.state != StateExercise {
		return errors.Wrap(ErrInvalidTransition, "previous exercise", slog.String("state", s.state.String()))
	}
	if s.index == 0 {
		return errors.Wrap(ErrInvalidTransition, "previous exercise from first")
	}
	s.enterExercise(s.index - 1)
	return nil
}

// Skip records the exercise as skipped without a result and advances. The
// skip budget is 3 per session; an exhausted budget rejects the skip.
func (s *Session) Skip(ctx context.Context) error {
	if s.state != StateExercise {
		return errors.Wrap(ErrInvalidTransition, "skip exercise", slog.String("state", s.state.String()))
	}
	if s.skipsLeft <= 0 {
		return errors.Wrap(ErrNoSkipsLeft, "skip exercise")
	}
	exercise := s.exercises[s.index]
	s.skipped = append(s.skipped, exercise.Exercise.Name)
	s.skipsLeft--

	s.logger.LogAttrs(ctx, slog.LevelDebug, "skipped exercise",
		slog.String("exercise", exercise.Exercise.Name),
		slog.Int("skipsLeft", s.skipsLeft))

	s.advance(exercise.RestSeconds)
	return nil
}

// SkipRest jumps straight to the next exercise.
func (s *Session) SkipRest() error {
	if s.state != StateRest {
		return errors.Wrap(ErrInvalidTransition, "skip rest", slog.String("state", s.state.String()))
	}
	s.enterExercise(s.index)
	return nil
}

// ExtendRest adds ten seconds to the rest countdown.
func (s *Session) ExtendRest() error {
	if s.state != StateRest {
		return errors.Wrap(ErrInvalidTransition, "extend rest", slog.String("state", s.state.String()))
	}
	s.restRemaining += restExtendSeconds
	return nil
}

// Report returns the final report once the session reached the Report state.
func (s *Session) Report() (Report, bool) {
	if s.state != StateReport || s.report == nil {
		return Report{}, false //nolint:exhaustruct // zero value on miss
	}
	return *s.report, true
}

// SubmitReport applies the aggregate session rating to the difficulty
// controller and hands the report to the sink. A sink failure is logged and
// the report kept for FlushReport; it is never surfaced to the user.
func (s *Session) SubmitReport(ctx context.Context, rating SessionRating) error {
	if s.state != StateReport || s.report == nil {
		return errors.Wrap(ErrInvalidTransition, "submit report", slog.String("state", s.state.String()))
	}
	s.controller.RateSession(ctx, rating)
	s.report.Rating = rating

	if err := s.sink.SaveReport(ctx, *s.report); err != nil {
		s.reportPending = true
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist session report",
			slog.Any("error", err))
		return nil
	}
	s.reportPending = false
	return nil
}

// HasPendingReport reports whether a submitted report still awaits
// persistence.
func (s *Session) HasPendingReport() bool { return s.reportPending }

// FlushReport retries a pending report write.
func (s *Session) FlushReport(ctx context.Context) {
	if !s.reportPending || s.report == nil {
		return
	}
	if err := s.sink.SaveReport(ctx, *s.report); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist session report",
			slog.Any("error", err))
		return
	}
	s.reportPending = false
}

// Cancel abandons the session and discards the accumulated results.
// Difficulty adjustments from already finished exercises stay applied since
// each is individually durable.
func (s *Session) Cancel() {
	s.results = nil
	s.skipped = nil
	s.report = nil
	s.cancelled = true
}

// Cancelled reports whether the session was abandoned.
func (s *Session) Cancelled() bool { return s.cancelled }

func (s *Session) enterExercise(index int) {
	s.index = index
	s.setNumber = 1
	s.elapsedSeconds = 0
	s.restRemaining = 0
	s.state = StateExercise
}

// advance moves to the rest before the next exercise, or to the report after
// the last one.
func (s *Session) advance(restSeconds int) {
	if s.index >= len(s.exercises)-1 {
		s.buildReport()
		return
	}
	s.index++
	s.restRemaining = restSeconds
	s.state = StateRest
}

func (s *Session) buildReport() {
	report := Report{ //nolint:exhaustruct // rating set on submit
		Results: s.results,
		Skipped: s.skipped,
	}
	for _, result := range s.results {
		report.TotalKcal += result.CaloriesKcal
		report.TotalMinutes += result.ActiveMinutes + result.RestMinutes
	}
	s.report = &report
	s.state = StateReport
}

// actualCalories burns calories from measured active time, never estimates:
// caloriesPerKgPerHour/60 * weight * activeMinutes, at least 1 kcal.
func actualCalories(caloriesPerKgPerHour, weightKg, activeMinutes float64) int {
	kcal := int(caloriesPerKgPerHour / 60 * weightKg * activeMinutes)
	if kcal < 1 {
		return 1
	}
	return kcal
}
