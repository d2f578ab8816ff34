package models

import "time"

// ActivityResult records one graded review. Immutable once committed.
type ActivityResult struct {
	ID           string    `json:"id" db:"id"`
	SessionID    string    `json:"session_id" db:"session_id"`
	CardID       string    `json:"card_id" db:"card_id"`
	Topic        string    `json:"topic" db:"topic"`
	Grade        int       `json:"grade" db:"grade"` // 0-5 recall quality
	XPAwarded    int       `json:"xp_awarded" db:"xp_awarded"`
	IntervalDays int       `json:"interval_days" db:"interval_days"` // resulting interval
	EaseFactor   float64   `json:"ease_factor" db:"ease_factor"`     // resulting ease
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// TrainingSession is one review batch for one agent. It exists while the
// batch is being graded and becomes immutable history on commit.
type TrainingSession struct {
	ID        string           `json:"id" db:"id"`
	AgentID   string           `json:"agent_id" db:"agent_id"`
	Results   []ActivityResult `json:"results" db:"-"`
	StartedAt time.Time        `json:"started_at" db:"started_at"`
	EndedAt   time.Time        `json:"ended_at" db:"ended_at"`
}
