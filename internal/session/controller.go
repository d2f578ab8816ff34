package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/drillbot/internal/config"
	"github.com/example/drillbot/internal/database"
	"github.com/example/drillbot/internal/spaced_repetition"
	"github.com/example/drillbot/internal/telemetry"
	"github.com/example/drillbot/pkg/models"
)

// Sentinel errors for the session controller. Check with errors.Is.
var (
	// ErrSessionActive: the agent already has an open session.
	ErrSessionActive = errors.New("session: agent session already active")
	// ErrSessionClosed: the submitted session is not the agent's open one.
	ErrSessionClosed = errors.New("session: session is not active")
	// ErrUnknownCard: a grade references a card outside the session.
	ErrUnknownCard = errors.New("session: graded card not in session")
	// ErrEmptyBatch: no grades were submitted.
	ErrEmptyBatch = errors.New("session: empty grade batch")
)

// maxCommitAttempts bounds retries of a conflicted batch commit.
const maxCommitAttempts = 3

// DegradedCard reports a card excluded from a session because its stored
// record failed validation.
type DegradedCard struct {
	CardID string
	Reason string
}

// Session is one open review batch for an agent.
type Session struct {
	ID        string
	AgentID   string
	StartedAt time.Time
	// Cards due for review, earliest first, ties broken by deck
	// insertion order.
	Cards []models.Flashcard
	// Degraded lists corrupt records excluded from the batch.
	Degraded []DegradedCard
}

// ProgressApplier folds committed results into agent progress.
type ProgressApplier interface {
	ApplyResults(ctx context.Context, agentID string, results []models.ActivityResult) (*models.AgentProgress, error)
}

// Controller drives review sessions: it selects due cards, runs the
// scheduler per graded card, awards XP and commits the batch atomically.
// At most one session per agent may be open at a time; sessions for
// different agents are independent.
type Controller struct {
	store    database.Store
	engine   *spaced_repetition.SM2
	xp       config.XPConfig
	progress ProgressApplier
	emitter  telemetry.Emitter
	log      *zap.Logger

	mu     sync.Mutex
	active map[string]string // agent id -> open session id
}

// NewController wires a controller. The XP config is copied and treated as
// immutable from here on.
func NewController(store database.Store, engine *spaced_repetition.SM2, xp config.XPConfig,
	progress ProgressApplier, emitter telemetry.Emitter, log *zap.Logger) *Controller {
	if emitter == nil {
		emitter = telemetry.NopEmitter{}
	}
	return &Controller{
		store:    store,
		engine:   engine,
		xp:       xp,
		progress: progress,
		emitter:  emitter,
		log:      log,
		active:   map[string]string{},
	}
}

// StartSession opens a review batch for the agent with every card due at
// now. Corrupt records are excluded and reported in Session.Degraded rather
// than failing the session. Fails with ErrSessionActive while the agent has
// another open session.
func (c *Controller) StartSession(ctx context.Context, agentID string, now time.Time) (*Session, error) {
	profile, err := c.store.GetProfile(ctx, agentID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if open, ok := c.active[agentID]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: agent %s, session %s", ErrSessionActive, agentID, open)
	}
	id := uuid.NewString()
	c.active[agentID] = id
	c.mu.Unlock()

	due, err := c.store.DueCards(ctx, agentID, now)
	if err != nil {
		c.release(agentID, id)
		return nil, err
	}

	s := &Session{ID: id, AgentID: agentID, StartedAt: now}
	for _, card := range due {
		if verr := card.Validate(); verr != nil {
			s.Degraded = append(s.Degraded, DegradedCard{CardID: card.ID, Reason: verr.Error()})
			c.log.Warn("excluding corrupt card from session",
				zap.String("agent_id", agentID),
				zap.String("card_id", card.ID),
				zap.Error(verr))
			continue
		}
		s.Cards = append(s.Cards, card)
	}

	c.log.Info("session started",
		zap.String("agent_id", profile.AgentID),
		zap.String("session_id", id),
		zap.Int("due_cards", len(s.Cards)),
		zap.Int("degraded_cards", len(s.Degraded)))
	return s, nil
}

// Abandon closes an open session without committing anything.
func (c *Controller) Abandon(s *Session) {
	c.release(s.AgentID, s.ID)
}

// SubmitGrades grades a batch of the session's cards and commits it
// atomically: on any version conflict or storage failure nothing is
// persisted, no XP is awarded and the session stays open for a retry. On
// success the new card states are written, one telemetry event is emitted
// per card, the results are folded into agent progress and the session is
// closed.
func (c *Controller) SubmitGrades(ctx context.Context, s *Session, grades map[string]spaced_repetition.Grade, now time.Time) (*models.TrainingSession, *models.AgentProgress, error) {
	if err := c.checkOpen(s); err != nil {
		return nil, nil, err
	}
	if len(grades) == 0 {
		return nil, nil, fmt.Errorf("%w: session %s", ErrEmptyBatch, s.ID)
	}

	// Validate the whole batch before touching any card state.
	byID := make(map[string]*models.Flashcard, len(s.Cards))
	for i := range s.Cards {
		byID[s.Cards[i].ID] = &s.Cards[i]
	}
	for cardID, grade := range grades {
		if _, ok := byID[cardID]; !ok {
			return nil, nil, fmt.Errorf("%w: card %s in session %s", ErrUnknownCard, cardID, s.ID)
		}
		if !grade.IsValid() {
			return nil, nil, fmt.Errorf("%w: card %s: grade %d", spaced_repetition.ErrInvalidGrade, cardID, int(grade))
		}
	}

	batch := models.TrainingSession{
		ID:        s.ID,
		AgentID:   s.AgentID,
		StartedAt: s.StartedAt,
		EndedAt:   now,
	}
	updated := make([]models.Flashcard, 0, len(grades))
	// Iterate session order so results and writes are deterministic.
	for _, card := range s.Cards {
		grade, ok := grades[card.ID]
		if !ok {
			continue
		}
		next, err := c.engine.Review(card, grade, now)
		if err != nil {
			return nil, nil, err
		}
		updated = append(updated, next)
		batch.Results = append(batch.Results, models.ActivityResult{
			ID:           uuid.NewString(),
			SessionID:    s.ID,
			CardID:       card.ID,
			Topic:        card.Topic,
			Grade:        int(grade),
			XPAwarded:    c.xpFor(card, grade),
			IntervalDays: next.IntervalDays,
			EaseFactor:   next.EaseFactor,
			Timestamp:    now,
		})
	}

	if err := c.store.CommitReview(ctx, &batch, updated); err != nil {
		c.log.Error("batch commit failed",
			zap.String("agent_id", s.AgentID),
			zap.String("session_id", s.ID),
			zap.Int("batch_size", len(updated)),
			zap.Error(err))
		return nil, nil, err
	}
	c.release(s.AgentID, s.ID)

	for _, r := range batch.Results {
		c.emitter.Emit(telemetry.ReviewEvent{
			CardID:       r.CardID,
			Grade:        r.Grade,
			IntervalDays: r.IntervalDays,
			EaseFactor:   r.EaseFactor,
			XPAwarded:    r.XPAwarded,
			Timestamp:    r.Timestamp,
		})
	}

	progress, err := c.progress.ApplyResults(ctx, s.AgentID, batch.Results)
	if err != nil {
		// The batch is already durable; progress aggregation is retried on
		// the next commit, so report but do not fail the submission.
		c.log.Error("progress aggregation failed",
			zap.String("agent_id", s.AgentID),
			zap.String("session_id", s.ID),
			zap.Error(err))
		return &batch, nil, nil
	}

	c.log.Info("session committed",
		zap.String("agent_id", s.AgentID),
		zap.String("session_id", s.ID),
		zap.Int("cards_reviewed", len(batch.Results)),
		zap.Int("total_xp", progress.TotalXP))
	return &batch, progress, nil
}

// SubmitGradesWithRetry retries a conflicted commit up to maxCommitAttempts
// times, re-reading each card to pick up fresh versions before recomputing
// the batch. Non-conflict errors are returned immediately.
func (c *Controller) SubmitGradesWithRetry(ctx context.Context, s *Session, grades map[string]spaced_repetition.Grade, now time.Time) (*models.TrainingSession, *models.AgentProgress, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		batch, progress, err := c.SubmitGrades(ctx, s, grades, now)
		if err == nil {
			return batch, progress, nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return nil, nil, err
		}
		lastErr = err
		c.log.Warn("retrying conflicted batch",
			zap.String("session_id", s.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if err := c.refreshCards(ctx, s); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, lastErr
}

// refreshCards re-reads the session's cards to pick up current versions.
func (c *Controller) refreshCards(ctx context.Context, s *Session) error {
	for i := range s.Cards {
		fresh, err := c.store.GetCard(ctx, s.Cards[i].ID)
		if err != nil {
			return err
		}
		s.Cards[i] = *fresh
	}
	return nil
}

// xpFor computes the XP award for one graded card. A failing grade still
// earns the participation award so progress never fully stalls.
func (c *Controller) xpFor(card models.Flashcard, grade spaced_repetition.Grade) int {
	if grade < c.engine.PassThreshold {
		if c.xp.ParticipationXP < 1 {
			return 1
		}
		return c.xp.ParticipationXP
	}
	base := 10
	if i := card.Difficulty - 1; i >= 0 && i < len(c.xp.BaseXP) {
		base = c.xp.BaseXP[i]
	}
	mult := 1.0
	if g := int(grade); g >= 0 && g < len(c.xp.GradeMultipliers) {
		mult = c.xp.GradeMultipliers[g]
	}
	xp := int(math.Round(float64(base) * mult))
	if xp < 1 {
		xp = 1
	}
	return xp
}

func (c *Controller) checkOpen(s *Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if open, ok := c.active[s.AgentID]; !ok || open != s.ID {
		return fmt.Errorf("%w: session %s", ErrSessionClosed, s.ID)
	}
	return nil
}

func (c *Controller) release(agentID, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if open, ok := c.active[agentID]; ok && open == sessionID {
		delete(c.active, agentID)
	}
}
