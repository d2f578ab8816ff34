package models

import (
	"errors"
	"fmt"
	"time"
)

// Scheduling bounds every stored flashcard must satisfy.
const (
	MinEaseFactor   = 1.3
	MinIntervalDays = 1
	MaxIntervalDays = 365
	DefaultEase     = 2.5
)

// ErrCorruptRecord marks a flashcard loaded from the store that is missing
// an invariant-bearing field. Check with errors.Is.
var ErrCorruptRecord = errors.New("models: corrupt flashcard record")

// Flashcard is a unit of knowledge with its SM-2 scheduling state.
// The store owns the record; the scheduler works on copies and returns
// new values, it never mutates a stored card in place.
type Flashcard struct {
	ID           string    `json:"id" db:"id"`
	DeckID       string    `json:"deck_id" db:"deck_id"`
	Front        string    `json:"front" db:"front"`
	Back         string    `json:"back" db:"back"`
	Topic        string    `json:"topic" db:"topic"`
	Difficulty   int       `json:"difficulty" db:"difficulty"` // 1-5 scale, drives base XP
	EaseFactor   float64   `json:"ease_factor" db:"ease_factor"`
	IntervalDays int       `json:"interval_days" db:"interval_days"`
	Repetitions  int       `json:"repetitions" db:"repetitions"`
	Lapses       int       `json:"lapses" db:"lapses"`
	LearningStep int       `json:"learning_step" db:"learning_step"` // position in the graduation ladder
	DueAt        time.Time `json:"due_at" db:"due_at"`
	State        CardState `json:"state" db:"state"`
	Position     int       `json:"position" db:"position"` // insertion order within the deck
	Version      int64     `json:"version" db:"version"`   // optimistic concurrency counter
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NewFlashcard creates a card in the New state, due immediately.
func NewFlashcard(id, deckID, front, back, topic string, difficulty int, now time.Time) Flashcard {
	return Flashcard{
		ID:           id,
		DeckID:       deckID,
		Front:        front,
		Back:         back,
		Topic:        topic,
		Difficulty:   difficulty,
		EaseFactor:   DefaultEase,
		IntervalDays: MinIntervalDays,
		State:        StateNew,
		DueAt:        now,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a copy of the card. Flashcard has no reference fields, so a
// value copy is a deep copy; the method exists to make the copy explicit at
// call sites that hand cards to the scheduler.
func (c Flashcard) Clone() Flashcard {
	return c
}

// InLadder reports whether the card is in the graduation ladder rather than
// full SM-2 scheduling. A card has repetitions > 0 exactly from graduation
// until its next lapse, so repetitions == 0 identifies the ladder phase even
// for cards carrying the sticky Leech state.
func (c Flashcard) InLadder() bool {
	return c.Repetitions == 0
}

// Validate checks the invariant-bearing fields. A failing card must be
// excluded from due-selection and reported as degraded, not scheduled.
func (c Flashcard) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: empty id", ErrCorruptRecord)
	case c.DeckID == "":
		return fmt.Errorf("%w: card %s: empty deck id", ErrCorruptRecord, c.ID)
	case !c.State.IsValid():
		return fmt.Errorf("%w: card %s: state %d", ErrCorruptRecord, c.ID, int(c.State))
	case c.EaseFactor < MinEaseFactor:
		return fmt.Errorf("%w: card %s: ease factor %.3f below %.1f", ErrCorruptRecord, c.ID, c.EaseFactor, MinEaseFactor)
	case c.IntervalDays < MinIntervalDays || c.IntervalDays > MaxIntervalDays:
		return fmt.Errorf("%w: card %s: interval %d days out of [%d, %d]", ErrCorruptRecord, c.ID, c.IntervalDays, MinIntervalDays, MaxIntervalDays)
	case c.Repetitions < 0:
		return fmt.Errorf("%w: card %s: negative repetitions %d", ErrCorruptRecord, c.ID, c.Repetitions)
	case c.Lapses < 0:
		return fmt.Errorf("%w: card %s: negative lapses %d", ErrCorruptRecord, c.ID, c.Lapses)
	case c.Difficulty < 1 || c.Difficulty > 5:
		return fmt.Errorf("%w: card %s: difficulty %d out of [1, 5]", ErrCorruptRecord, c.ID, c.Difficulty)
	case c.DueAt.IsZero():
		return fmt.Errorf("%w: card %s: zero due date", ErrCorruptRecord, c.ID)
	case c.Version < 1:
		return fmt.Errorf("%w: card %s: version %d", ErrCorruptRecord, c.ID, c.Version)
	}
	return nil
}
