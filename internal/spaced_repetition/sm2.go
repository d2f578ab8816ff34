package spaced_repetition

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/example/drillbot/internal/config"
	"github.com/example/drillbot/pkg/models"
)

// ErrInvalidGrade is returned for grades outside [0, 5]. Check with errors.Is.
var ErrInvalidGrade = errors.New("spaced_repetition: invalid grade")

// Grade represents the quality of recall in SM-2, from complete blackout (0)
// to a perfect response (5).
type Grade int

const (
	// Complete blackout, unable to recall
	GradeBlackout Grade = 0
	// Incorrect response but remembered upon seeing the correct answer
	GradeIncorrect Grade = 1
	// Incorrect response but the correct answer felt familiar
	GradeIncorrectFamiliar Grade = 2
	// Correct response but required significant effort
	GradeCorrectDifficult Grade = 3
	// Correct response after some hesitation
	GradeCorrectHesitation Grade = 4
	// Perfect response with no hesitation
	GradePerfect Grade = 5
)

// IsValid reports whether g is within the SM-2 grade scale.
func (g Grade) IsValid() bool {
	return g >= GradeBlackout && g <= GradePerfect
}

// SM2 implements the SuperMemo-2 algorithm with a graduation ladder for
// cards that have not yet entered full interval scheduling. All fields are
// set at construction and never change; Review is a pure function, safe to
// call concurrently.
type SM2 struct {
	// Grades at or above this threshold count as passing.
	PassThreshold Grade
	// Maximum review interval in days.
	MaxInterval int
	// Lower bound for the ease factor.
	EaseFloor float64
	// Upper bound for the ease factor; 0 means unbounded.
	EaseCeiling float64
	// Lapse count at which a card is flagged as a leech.
	LeechThreshold int
	// Graduation ladder step durations. The final step is the one-day
	// graduation into Review scheduling.
	LadderSteps []time.Duration
}

// NewSM2 creates an engine with the default tuning.
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:  GradeCorrectDifficult, // Grades 3 and above count as passing.
		MaxInterval:    models.MaxIntervalDays,
		EaseFloor:      models.MinEaseFactor,
		LeechThreshold: 8,
		LadderSteps:    []time.Duration{time.Minute, 10 * time.Minute, 24 * time.Hour},
	}
}

// FromConfig creates an engine from an externally supplied configuration.
func FromConfig(cfg config.SchedulerConfig) *SM2 {
	steps := make([]time.Duration, len(cfg.LadderSteps))
	copy(steps, cfg.LadderSteps)
	return &SM2{
		PassThreshold:  Grade(cfg.PassThreshold),
		MaxInterval:    cfg.MaxIntervalDays,
		EaseFloor:      cfg.EaseFloor,
		EaseCeiling:    cfg.EaseCeiling,
		LeechThreshold: cfg.LeechThreshold,
		LadderSteps:    steps,
	}
}

// Review applies one graded review to the card at the given time and returns
// the updated card. The input card is never mutated. Returns ErrInvalidGrade
// for grades outside [0, 5]; otherwise the returned card satisfies every
// data-model invariant.
func (sm *SM2) Review(card models.Flashcard, grade Grade, now time.Time) (models.Flashcard, error) {
	if !grade.IsValid() {
		return models.Flashcard{}, fmt.Errorf("%w: card %s: grade %d", ErrInvalidGrade, card.ID, int(grade))
	}

	c := card.Clone()
	switch {
	case grade < sm.PassThreshold:
		sm.lapse(&c, now)
	case c.InLadder():
		sm.advanceLadder(&c, grade, now)
	default:
		sm.reviewPass(&c, grade, now)
	}

	// The leech flag is a sticky overlay: once the lapse count crosses the
	// threshold the state reads Leech regardless of scheduling phase.
	if c.Lapses >= sm.LeechThreshold {
		c.State = models.StateLeech
	}
	c.UpdatedAt = now
	return c, nil
}

// lapse handles any failing grade: back to the start of the ladder with the
// lapse counted. The ease factor only moves on passing reviews.
func (sm *SM2) lapse(c *models.Flashcard, now time.Time) {
	c.Repetitions = 0
	c.LearningStep = 0
	c.Lapses++
	c.IntervalDays = models.MinIntervalDays
	c.State = models.StateLearning
	c.DueAt = now.Add(sm.LadderSteps[0])
}

// advanceLadder moves a ladder-phase card one step on a pass. A perfect
// grade graduates immediately; otherwise reaching the final (day-long) step
// is the graduation.
func (sm *SM2) advanceLadder(c *models.Flashcard, grade Grade, now time.Time) {
	next := c.LearningStep + 1
	if grade == GradePerfect || next >= len(sm.LadderSteps)-1 {
		sm.graduate(c, grade, now)
		return
	}
	c.LearningStep = next
	c.IntervalDays = models.MinIntervalDays
	c.State = models.StateLearning
	c.DueAt = now.Add(sm.LadderSteps[next])
}

// graduate moves a card out of the ladder into Review scheduling. A card
// that has never graduated still carries its initial ease, so the first
// graduation starts from the configured base; the passing grade's ease
// adjustment applies on top of it.
func (sm *SM2) graduate(c *models.Flashcard, grade Grade, now time.Time) {
	c.EaseFactor = sm.nextEase(c.EaseFactor, grade)
	c.Repetitions = 1
	c.LearningStep = 0
	c.IntervalDays = models.MinIntervalDays
	c.State = models.StateReview
	c.DueAt = now.Add(24 * time.Hour)
}

// reviewPass applies the SM-2 formula to a card already in Review.
func (sm *SM2) reviewPass(c *models.Flashcard, grade Grade, now time.Time) {
	c.EaseFactor = sm.nextEase(c.EaseFactor, grade)
	interval := int(math.Round(float64(c.IntervalDays) * c.EaseFactor))
	if interval < models.MinIntervalDays {
		interval = models.MinIntervalDays
	}
	if interval > sm.MaxInterval {
		interval = sm.MaxInterval
	}
	c.IntervalDays = interval
	c.Repetitions++
	c.State = models.StateReview
	c.DueAt = now.Add(time.Duration(interval) * 24 * time.Hour)
}

// nextEase applies the SM-2 ease adjustment for a passing grade, clamped
// to the configured bounds.
func (sm *SM2) nextEase(ease float64, grade Grade) float64 {
	q := float64(grade)
	next := ease + (0.1 - (5.0-q)*(0.08+(5.0-q)*0.02))
	if next < sm.EaseFloor {
		next = sm.EaseFloor
	}
	if sm.EaseCeiling > 0 && next > sm.EaseCeiling {
		next = sm.EaseCeiling
	}
	return next
}

// IsMastered reports whether a card counts as mastered: at least five
// successful repetitions, a month-or-longer interval and no leech flag.
func (sm *SM2) IsMastered(c models.Flashcard) bool {
	return c.Repetitions >= 5 && c.IntervalDays >= 30 && c.State != models.StateLeech
}
