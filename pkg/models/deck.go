package models

import "time"

// FlashcardDeck groups flashcards for one agent. CardIDs preserves
// insertion order, which breaks ties between cards due at the same time.
type FlashcardDeck struct {
	ID        string    `json:"id" db:"id"`
	AgentID   string    `json:"agent_id" db:"agent_id"`
	Name      string    `json:"name" db:"name"`
	CardIDs   []string  `json:"card_ids" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DeckStatistics are per-agent aggregates computed by the store.
type DeckStatistics struct {
	AgentID         string  `json:"agent_id" db:"agent_id"`
	TotalCards      int     `json:"total_cards" db:"total_cards"`
	CardsDue        int     `json:"cards_due" db:"cards_due"`
	CardsMastered   int     `json:"cards_mastered" db:"cards_mastered"`
	LeechCards      int     `json:"leech_cards" db:"leech_cards"`
	AvgEaseFactor   float64 `json:"avg_ease_factor" db:"avg_ease_factor"`
	AvgIntervalDays float64 `json:"avg_interval_days" db:"avg_interval_days"`
}
