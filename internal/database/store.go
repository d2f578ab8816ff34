package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/drillbot/internal/config"
	"github.com/example/drillbot/pkg/models"
)

// Store owns every persisted record. Card writes are guarded by optimistic
// concurrency: a write succeeds only when the caller's observed version
// matches the stored one, otherwise the whole batch fails with ErrConflict.
type Store interface {
	// SaveProfile creates or replaces an agent profile. The profile is
	// validated before it is written.
	SaveProfile(ctx context.Context, p *models.AgentProfile) error
	// GetProfile loads and validates an agent profile.
	GetProfile(ctx context.Context, agentID string) (*models.AgentProfile, error)

	// CreateDeck stores a new deck.
	CreateDeck(ctx context.Context, d *models.FlashcardDeck) error
	// GetDeck loads a deck with its card ids in insertion order.
	GetDeck(ctx context.Context, id string) (*models.FlashcardDeck, error)
	// GetDeckByName loads an agent's deck by name, or ErrNotFound.
	GetDeckByName(ctx context.Context, agentID, name string) (*models.FlashcardDeck, error)

	// CreateCard stores a new card, assigning its position within the deck.
	CreateCard(ctx context.Context, c *models.Flashcard) error
	// GetCard loads a single card.
	GetCard(ctx context.Context, id string) (*models.Flashcard, error)
	// DueCards returns the agent's cards with due_at <= now, ordered by
	// due_at ascending, ties broken by deck insertion order. Corrupt
	// records are returned as-is; the caller decides how to degrade.
	DueCards(ctx context.Context, agentID string, now time.Time) ([]models.Flashcard, error)

	// CommitReview atomically writes the session, its results and the new
	// card states. Every card write checks the observed version; any
	// mismatch rolls the whole batch back with ErrConflict and nothing is
	// persisted. On success each card's version has advanced by one.
	CommitReview(ctx context.Context, session *models.TrainingSession, cards []models.Flashcard) error

	// GetProgress loads the agent's progress, creating an empty record on
	// first access.
	GetProgress(ctx context.Context, agentID string) (*models.AgentProgress, error)
	// SaveProgress persists the agent's progress.
	SaveProgress(ctx context.Context, p *models.AgentProgress) error

	// SessionHistory returns the agent's committed sessions with their
	// results, most recent first.
	SessionHistory(ctx context.Context, agentID string) ([]models.TrainingSession, error)
	// Statistics computes per-agent deck aggregates.
	Statistics(ctx context.Context, agentID string) (*models.DeckStatistics, error)
	// DueCounts returns the number of due cards per agent, for reminders.
	DueCounts(ctx context.Context, now time.Time) (map[string]int, error)

	Close() error
}

// New builds a Store for the configured driver.
func New(cfg config.DatabaseConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "postgres":
		return NewSQLStore(cfg, log)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("database: unknown driver %q", cfg.Driver)
	}
}
