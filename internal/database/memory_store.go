package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/example/drillbot/pkg/models"
)

// MemoryStore is an in-process Store with the same optimistic-concurrency
// semantics as the SQL store. Every value crossing the boundary is deep
// copied, so callers can never alias stored records.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.AgentProfile
	decks    map[string]*models.FlashcardDeck
	cards    map[string]*models.Flashcard
	sessions map[string]*models.TrainingSession
	progress map[string]*models.AgentProgress
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: map[string]*models.AgentProfile{},
		decks:    map[string]*models.FlashcardDeck{},
		cards:    map[string]*models.Flashcard{},
		sessions: map[string]*models.TrainingSession{},
		progress: map[string]*models.AgentProgress{},
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// SaveProfile creates or replaces an agent profile.
func (s *MemoryStore) SaveProfile(_ context.Context, p *models.AgentProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.profiles[p.AgentID] = &cp
	return nil
}

// GetProfile loads and validates an agent profile.
func (s *MemoryStore) GetProfile(_ context.Context, agentID string) (*models.AgentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: agent %s", ErrNotFound, agentID)
	}
	cp := *p
	return &cp, nil
}

// CreateDeck stores a new deck.
func (s *MemoryStore) CreateDeck(_ context.Context, d *models.FlashcardDeck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decks[d.ID]; exists {
		return fmt.Errorf("database: deck %s already exists", d.ID)
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.decks[d.ID] = deepcopy.Copy(d).(*models.FlashcardDeck)
	return nil
}

// GetDeck loads a deck with its card ids in insertion order.
func (s *MemoryStore) GetDeck(_ context.Context, id string) (*models.FlashcardDeck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decks[id]
	if !ok {
		return nil, fmt.Errorf("%w: deck %s", ErrNotFound, id)
	}
	return s.deckWithCards(d), nil
}

// GetDeckByName loads an agent's deck by name.
func (s *MemoryStore) GetDeckByName(_ context.Context, agentID, name string) (*models.FlashcardDeck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.decks {
		if d.AgentID == agentID && d.Name == name {
			return s.deckWithCards(d), nil
		}
	}
	return nil, fmt.Errorf("%w: deck %q for agent %s", ErrNotFound, name, agentID)
}

// deckWithCards copies the deck and fills CardIDs in position order.
// Callers must hold at least the read lock.
func (s *MemoryStore) deckWithCards(d *models.FlashcardDeck) *models.FlashcardDeck {
	cp := deepcopy.Copy(d).(*models.FlashcardDeck)
	var cards []*models.Flashcard
	for _, c := range s.cards {
		if c.DeckID == d.ID {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Position < cards[j].Position })
	cp.CardIDs = make([]string, len(cards))
	for i, c := range cards {
		cp.CardIDs[i] = c.ID
	}
	return cp
}

// CreateCard stores a new card at the end of its deck.
func (s *MemoryStore) CreateCard(_ context.Context, c *models.Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cards[c.ID]; exists {
		return fmt.Errorf("database: card %s already exists", c.ID)
	}
	position := 0
	for _, other := range s.cards {
		if other.DeckID == c.DeckID && other.Position >= position {
			position = other.Position + 1
		}
	}
	c.Position = position
	if c.Version < 1 {
		c.Version = 1
	}
	cp := c.Clone()
	s.cards[c.ID] = &cp
	return nil
}

// GetCard loads a single card.
func (s *MemoryStore) GetCard(_ context.Context, id string) (*models.Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	if !ok {
		return nil, fmt.Errorf("%w: card %s", ErrNotFound, id)
	}
	cp := c.Clone()
	return &cp, nil
}

// PutCard force-writes a card, bypassing version checks. Test seam for
// provoking conflicts and corrupt records.
func (s *MemoryStore) PutCard(c models.Flashcard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c.Clone()
	s.cards[c.ID] = &cp
}

// DueCards returns the agent's due cards, earliest first, ties broken by
// deck insertion order.
func (s *MemoryStore) DueCards(_ context.Context, agentID string, now time.Time) ([]models.Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []models.Flashcard
	for _, c := range s.cards {
		d, ok := s.decks[c.DeckID]
		if !ok || d.AgentID != agentID {
			continue
		}
		if !c.DueAt.After(now) {
			due = append(due, c.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].DueAt.Before(due[j].DueAt)
		}
		if due[i].Position != due[j].Position {
			return due[i].Position < due[j].Position
		}
		return due[i].ID < due[j].ID
	})
	return due, nil
}

// CommitReview applies the batch atomically: all version checks run before
// any write, so a conflict leaves the store untouched.
func (s *MemoryStore) CommitReview(_ context.Context, session *models.TrainingSession, cards []models.Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("database: session %s already committed", session.ID)
	}
	for i := range cards {
		stored, ok := s.cards[cards[i].ID]
		if !ok {
			return fmt.Errorf("%w: card %s", ErrNotFound, cards[i].ID)
		}
		if stored.Version != cards[i].Version {
			return fmt.Errorf("%w: card %s: observed version %d, stored %d",
				ErrConflict, cards[i].ID, cards[i].Version, stored.Version)
		}
	}
	for i := range cards {
		cards[i].Version++
		cp := cards[i].Clone()
		s.cards[cp.ID] = &cp
	}
	s.sessions[session.ID] = deepcopy.Copy(session).(*models.TrainingSession)
	return nil
}

// GetProgress loads the agent's progress, creating an empty record on first
// access.
func (s *MemoryStore) GetProgress(_ context.Context, agentID string) (*models.AgentProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[agentID]
	if !ok {
		return models.NewAgentProgress(agentID), nil
	}
	return deepcopy.Copy(p).(*models.AgentProgress), nil
}

// SaveProgress persists the agent's progress.
func (s *MemoryStore) SaveProgress(_ context.Context, p *models.AgentProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[p.AgentID] = deepcopy.Copy(p).(*models.AgentProgress)
	return nil
}

// SessionHistory returns the agent's committed sessions, most recent first.
func (s *MemoryStore) SessionHistory(_ context.Context, agentID string) ([]models.TrainingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []models.TrainingSession
	for _, sess := range s.sessions {
		if sess.AgentID == agentID {
			sessions = append(sessions, *deepcopy.Copy(sess).(*models.TrainingSession))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// Statistics computes per-agent deck aggregates.
func (s *MemoryStore) Statistics(_ context.Context, agentID string) (*models.DeckStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.DeckStatistics{AgentID: agentID}
	now := time.Now().UTC()
	var easeSum, intervalSum float64
	for _, c := range s.cards {
		d, ok := s.decks[c.DeckID]
		if !ok || d.AgentID != agentID {
			continue
		}
		stats.TotalCards++
		easeSum += c.EaseFactor
		intervalSum += float64(c.IntervalDays)
		if !c.DueAt.After(now) {
			stats.CardsDue++
		}
		if c.Repetitions >= 5 && c.IntervalDays >= 30 && c.State != models.StateLeech {
			stats.CardsMastered++
		}
		if c.State == models.StateLeech {
			stats.LeechCards++
		}
	}
	if stats.TotalCards > 0 {
		stats.AvgEaseFactor = easeSum / float64(stats.TotalCards)
		stats.AvgIntervalDays = intervalSum / float64(stats.TotalCards)
	}
	return &stats, nil
}

// DueCounts returns the number of due cards per agent.
func (s *MemoryStore) DueCounts(_ context.Context, now time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	for _, c := range s.cards {
		if c.DueAt.After(now) {
			continue
		}
		if d, ok := s.decks[c.DeckID]; ok {
			counts[d.AgentID]++
		}
	}
	return counts, nil
}
