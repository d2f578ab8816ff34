package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/example/drillbot/internal/config"
	"github.com/example/drillbot/pkg/models"
)

// SQLStore is the sqlx-backed Store for sqlite and postgres.
type SQLStore struct {
	db  *sqlx.DB
	log *zap.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens the database, applies connection settings and creates
// the schema if needed.
func NewSQLStore(cfg config.DatabaseConfig, log *zap.Logger) (*SQLStore, error) {
	var driver, dsn string
	switch cfg.Driver {
	case "sqlite":
		driver = "sqlite3"
		dsn = cfg.DSN
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("database: create data directory: %w", err)
			}
		}
	case "postgres":
		driver = "postgres"
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("database: unsupported sql driver %q", cfg.Driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrStorageUnavailable, cfg.Driver, err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("database: enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &SQLStore{db: db, log: log}
	if err := s.initializeSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// initializeSchema creates necessary tables if they don't exist.
func (s *SQLStore) initializeSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decks (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(agent_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			deck_id TEXT NOT NULL,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			difficulty INTEGER NOT NULL DEFAULT 1,
			ease_factor REAL NOT NULL DEFAULT 2.5,
			interval_days INTEGER NOT NULL DEFAULT 1,
			repetitions INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			learning_step INTEGER NOT NULL DEFAULT 0,
			due_at TIMESTAMP NOT NULL,
			state INTEGER NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			FOREIGN KEY (deck_id) REFERENCES decks(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(deck_id, due_at)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activity_results (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			card_id TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			grade INTEGER NOT NULL,
			xp_awarded INTEGER NOT NULL,
			interval_days INTEGER NOT NULL,
			ease_factor REAL NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_progress (
			agent_id TEXT PRIMARY KEY,
			total_xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			total_reviews INTEGER NOT NULL DEFAULT 0,
			badges TEXT NOT NULL DEFAULT '[]',
			topic_stats TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("database: initialize schema: %w", err)
		}
	}
	return nil
}

// SaveProfile creates or replaces an agent profile.
func (s *SQLStore) SaveProfile(ctx context.Context, p *models.AgentProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	query := s.db.Rebind(`
		INSERT INTO agents (agent_id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET display_name = excluded.display_name, updated_at = excluded.updated_at
	`)
	if _, err := s.db.ExecContext(ctx, query, p.AgentID, p.DisplayName, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("%w: save profile %s: %v", ErrStorageUnavailable, p.AgentID, err)
	}
	return nil
}

// GetProfile loads and validates an agent profile.
func (s *SQLStore) GetProfile(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	var p models.AgentProfile
	query := s.db.Rebind(`SELECT * FROM agents WHERE agent_id = ?`)
	err := s.db.GetContext(ctx, &p, query, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: agent %s", ErrNotFound, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile %s: %v", ErrStorageUnavailable, agentID, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateDeck stores a new deck.
func (s *SQLStore) CreateDeck(ctx context.Context, d *models.FlashcardDeck) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	query := s.db.Rebind(`
		INSERT INTO decks (id, agent_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := s.db.ExecContext(ctx, query, d.ID, d.AgentID, d.Name, d.CreatedAt, d.UpdatedAt); err != nil {
		return fmt.Errorf("%w: create deck %s: %v", ErrStorageUnavailable, d.Name, err)
	}
	return nil
}

// GetDeck loads a deck with its card ids in insertion order.
func (s *SQLStore) GetDeck(ctx context.Context, id string) (*models.FlashcardDeck, error) {
	var d models.FlashcardDeck
	query := s.db.Rebind(`SELECT * FROM decks WHERE id = ?`)
	err := s.db.GetContext(ctx, &d, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: deck %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get deck %s: %v", ErrStorageUnavailable, id, err)
	}
	if err := s.loadDeckCardIDs(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDeckByName loads an agent's deck by name.
func (s *SQLStore) GetDeckByName(ctx context.Context, agentID, name string) (*models.FlashcardDeck, error) {
	var d models.FlashcardDeck
	query := s.db.Rebind(`SELECT * FROM decks WHERE agent_id = ? AND name = ?`)
	err := s.db.GetContext(ctx, &d, query, agentID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: deck %q for agent %s", ErrNotFound, name, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get deck %q: %v", ErrStorageUnavailable, name, err)
	}
	if err := s.loadDeckCardIDs(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLStore) loadDeckCardIDs(ctx context.Context, d *models.FlashcardDeck) error {
	query := s.db.Rebind(`SELECT id FROM cards WHERE deck_id = ? ORDER BY position ASC`)
	if err := s.db.SelectContext(ctx, &d.CardIDs, query, d.ID); err != nil {
		return fmt.Errorf("%w: load deck cards %s: %v", ErrStorageUnavailable, d.ID, err)
	}
	return nil
}

// CreateCard stores a new card at the end of its deck.
func (s *SQLStore) CreateCard(ctx context.Context, c *models.Flashcard) error {
	var position int
	query := s.db.Rebind(`SELECT COALESCE(MAX(position) + 1, 0) FROM cards WHERE deck_id = ?`)
	if err := s.db.GetContext(ctx, &position, query, c.DeckID); err != nil {
		return fmt.Errorf("%w: next card position: %v", ErrStorageUnavailable, err)
	}
	c.Position = position
	if c.Version < 1 {
		c.Version = 1
	}
	query = s.db.Rebind(`
		INSERT INTO cards (
			id, deck_id, front, back, topic, difficulty,
			ease_factor, interval_days, repetitions, lapses, learning_step,
			due_at, state, position, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.DeckID, c.Front, c.Back, c.Topic, c.Difficulty,
		c.EaseFactor, c.IntervalDays, c.Repetitions, c.Lapses, c.LearningStep,
		c.DueAt, c.State, c.Position, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: create card %s: %v", ErrStorageUnavailable, c.ID, err)
	}
	return nil
}

// GetCard loads a single card.
func (s *SQLStore) GetCard(ctx context.Context, id string) (*models.Flashcard, error) {
	var c models.Flashcard
	query := s.db.Rebind(`SELECT * FROM cards WHERE id = ?`)
	err := s.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: card %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get card %s: %v", ErrStorageUnavailable, id, err)
	}
	return &c, nil
}

// DueCards returns the agent's due cards, earliest first, ties broken by
// deck insertion order.
func (s *SQLStore) DueCards(ctx context.Context, agentID string, now time.Time) ([]models.Flashcard, error) {
	var cards []models.Flashcard
	query := s.db.Rebind(`
		SELECT c.* FROM cards c
		JOIN decks d ON c.deck_id = d.id
		WHERE d.agent_id = ? AND c.due_at <= ?
		ORDER BY c.due_at ASC, c.position ASC, c.id ASC
	`)
	if err := s.db.SelectContext(ctx, &cards, query, agentID, now); err != nil {
		return nil, fmt.Errorf("%w: due cards for %s: %v", ErrStorageUnavailable, agentID, err)
	}
	return cards, nil
}

// CommitReview writes the session, its results and the new card states in
// one transaction. Any version mismatch rolls the whole batch back.
func (s *SQLStore) CommitReview(ctx context.Context, session *models.TrainingSession, cards []models.Flashcard) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin commit: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	cardQuery := tx.Rebind(`
		UPDATE cards SET
			ease_factor = ?, interval_days = ?, repetitions = ?, lapses = ?,
			learning_step = ?, due_at = ?, state = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`)
	for i := range cards {
		c := &cards[i]
		res, err := tx.ExecContext(ctx, cardQuery,
			c.EaseFactor, c.IntervalDays, c.Repetitions, c.Lapses,
			c.LearningStep, c.DueAt, c.State, c.Version+1, c.UpdatedAt,
			c.ID, c.Version,
		)
		if err != nil {
			return fmt.Errorf("%w: write card %s: %v", ErrStorageUnavailable, c.ID, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: write card %s: %v", ErrStorageUnavailable, c.ID, err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: card %s: observed version %d is stale", ErrConflict, c.ID, c.Version)
		}
	}

	sessionQuery := tx.Rebind(`
		INSERT INTO sessions (id, agent_id, started_at, ended_at)
		VALUES (?, ?, ?, ?)
	`)
	if _, err := tx.ExecContext(ctx, sessionQuery, session.ID, session.AgentID, session.StartedAt, session.EndedAt); err != nil {
		return fmt.Errorf("%w: write session %s: %v", ErrStorageUnavailable, session.ID, err)
	}

	resultQuery := tx.Rebind(`
		INSERT INTO activity_results (
			id, session_id, card_id, topic, grade, xp_awarded,
			interval_days, ease_factor, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, r := range session.Results {
		if _, err := tx.ExecContext(ctx, resultQuery,
			r.ID, r.SessionID, r.CardID, r.Topic, r.Grade, r.XPAwarded,
			r.IntervalDays, r.EaseFactor, r.Timestamp,
		); err != nil {
			return fmt.Errorf("%w: write result for card %s: %v", ErrStorageUnavailable, r.CardID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit session %s: %v", ErrStorageUnavailable, session.ID, err)
	}
	for i := range cards {
		cards[i].Version++
	}
	return nil
}

// progressRow is the persisted shape of AgentProgress; badges and topic
// stats are stored as JSON.
type progressRow struct {
	AgentID      string    `db:"agent_id"`
	TotalXP      int       `db:"total_xp"`
	Level        int       `db:"level"`
	TotalReviews int       `db:"total_reviews"`
	Badges       string    `db:"badges"`
	TopicStats   string    `db:"topic_stats"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// GetProgress loads the agent's progress, creating an empty record on first
// access.
func (s *SQLStore) GetProgress(ctx context.Context, agentID string) (*models.AgentProgress, error) {
	var row progressRow
	query := s.db.Rebind(`SELECT * FROM agent_progress WHERE agent_id = ?`)
	err := s.db.GetContext(ctx, &row, query, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewAgentProgress(agentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get progress %s: %v", ErrStorageUnavailable, agentID, err)
	}

	p := &models.AgentProgress{
		AgentID:      row.AgentID,
		TotalXP:      row.TotalXP,
		Level:        row.Level,
		TotalReviews: row.TotalReviews,
		UpdatedAt:    row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Badges), &p.Badges); err != nil {
		return nil, fmt.Errorf("database: decode badges for %s: %w", agentID, err)
	}
	if err := json.Unmarshal([]byte(row.TopicStats), &p.TopicStats); err != nil {
		return nil, fmt.Errorf("database: decode topic stats for %s: %w", agentID, err)
	}
	return p, nil
}

// SaveProgress persists the agent's progress.
func (s *SQLStore) SaveProgress(ctx context.Context, p *models.AgentProgress) error {
	badges, err := json.Marshal(p.Badges)
	if err != nil {
		return fmt.Errorf("database: encode badges for %s: %w", p.AgentID, err)
	}
	stats, err := json.Marshal(p.TopicStats)
	if err != nil {
		return fmt.Errorf("database: encode topic stats for %s: %w", p.AgentID, err)
	}
	query := s.db.Rebind(`
		INSERT INTO agent_progress (agent_id, total_xp, level, total_reviews, badges, topic_stats, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			total_xp = excluded.total_xp,
			level = excluded.level,
			total_reviews = excluded.total_reviews,
			badges = excluded.badges,
			topic_stats = excluded.topic_stats,
			updated_at = excluded.updated_at
	`)
	if _, err := s.db.ExecContext(ctx, query,
		p.AgentID, p.TotalXP, p.Level, p.TotalReviews, string(badges), string(stats), p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("%w: save progress %s: %v", ErrStorageUnavailable, p.AgentID, err)
	}
	return nil
}

// SessionHistory returns the agent's committed sessions, most recent first.
func (s *SQLStore) SessionHistory(ctx context.Context, agentID string) ([]models.TrainingSession, error) {
	var sessions []models.TrainingSession
	query := s.db.Rebind(`SELECT * FROM sessions WHERE agent_id = ? ORDER BY started_at DESC`)
	if err := s.db.SelectContext(ctx, &sessions, query, agentID); err != nil {
		return nil, fmt.Errorf("%w: session history %s: %v", ErrStorageUnavailable, agentID, err)
	}
	resultQuery := s.db.Rebind(`SELECT * FROM activity_results WHERE session_id = ? ORDER BY timestamp ASC`)
	for i := range sessions {
		if err := s.db.SelectContext(ctx, &sessions[i].Results, resultQuery, sessions[i].ID); err != nil {
			return nil, fmt.Errorf("%w: session results %s: %v", ErrStorageUnavailable, sessions[i].ID, err)
		}
	}
	return sessions, nil
}

// Statistics computes per-agent deck aggregates.
func (s *SQLStore) Statistics(ctx context.Context, agentID string) (*models.DeckStatistics, error) {
	stats := models.DeckStatistics{AgentID: agentID}
	query := s.db.Rebind(`
		SELECT
			COUNT(*) AS total_cards,
			COALESCE(SUM(CASE WHEN c.due_at <= ? THEN 1 ELSE 0 END), 0) AS cards_due,
			COALESCE(SUM(CASE WHEN c.repetitions >= 5 AND c.interval_days >= 30 AND c.state != ? THEN 1 ELSE 0 END), 0) AS cards_mastered,
			COALESCE(SUM(CASE WHEN c.state = ? THEN 1 ELSE 0 END), 0) AS leech_cards,
			COALESCE(AVG(c.ease_factor), 0) AS avg_ease_factor,
			COALESCE(AVG(c.interval_days), 0) AS avg_interval_days
		FROM cards c
		JOIN decks d ON c.deck_id = d.id
		WHERE d.agent_id = ?
	`)
	err := s.db.GetContext(ctx, &stats, query, time.Now().UTC(), models.StateLeech, models.StateLeech, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: statistics for %s: %v", ErrStorageUnavailable, agentID, err)
	}
	return &stats, nil
}

// DueCounts returns the number of due cards per agent.
func (s *SQLStore) DueCounts(ctx context.Context, now time.Time) (map[string]int, error) {
	rows := []struct {
		AgentID string `db:"agent_id"`
		Count   int    `db:"count"`
	}{}
	query := s.db.Rebind(`
		SELECT d.agent_id AS agent_id, COUNT(*) AS count
		FROM cards c
		JOIN decks d ON c.deck_id = d.id
		WHERE c.due_at <= ?
		GROUP BY d.agent_id
	`)
	if err := s.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("%w: due counts: %v", ErrStorageUnavailable, err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.AgentID] = r.Count
	}
	return counts, nil
}
