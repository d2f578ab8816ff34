package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/drillbot/pkg/models"
)

func seedMemoryAgent(t *testing.T, store *MemoryStore, agentID string) *models.FlashcardDeck {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveProfile(ctx, &models.AgentProfile{AgentID: agentID, DisplayName: "Ada"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	deck := &models.FlashcardDeck{ID: agentID + "-deck", AgentID: agentID, Name: "default"}
	if err := store.CreateDeck(ctx, deck); err != nil {
		t.Fatalf("create deck: %v", err)
	}
	return deck
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	deck := seedMemoryAgent(t, store, "agent-1")

	card := models.NewFlashcard("c1", deck.ID, "front", "back", "go", 1, testNow)
	if err := store.CreateCard(ctx, &card); err != nil {
		t.Fatalf("create card: %v", err)
	}

	// Mutating a loaded card must not leak into the store.
	loaded, err := store.GetCard(ctx, "c1")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	loaded.EaseFactor = 99
	loaded.Version = 42

	again, err := store.GetCard(ctx, "c1")
	if err != nil {
		t.Fatalf("get card again: %v", err)
	}
	if again.EaseFactor != models.DefaultEase || again.Version != 1 {
		t.Errorf("stored card mutated through returned copy: %+v", again)
	}

	// Same for progress records.
	p, _ := store.GetProgress(ctx, "agent-1")
	p.TotalXP = 10
	p.TopicStats["go"] = &models.TopicStat{Attempts: 1, Correct: 1, Recent: []bool{true}}
	if err := store.SaveProgress(ctx, p); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	p.TopicStats["go"].Attempts = 500

	reloaded, _ := store.GetProgress(ctx, "agent-1")
	if reloaded.TopicStats["go"].Attempts != 1 {
		t.Errorf("stored progress mutated through saved pointer: %+v", reloaded.TopicStats["go"])
	}
}

func TestMemoryStoreDueOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	deck := seedMemoryAgent(t, store, "agent-1")

	times := map[string]time.Time{
		"a": testNow.Add(-time.Hour),
		"b": testNow.Add(-2 * time.Hour),
		"c": testNow.Add(-time.Hour),
		"d": testNow.Add(time.Hour),
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		card := models.NewFlashcard(id, deck.ID, "front", "back", "go", 1, times[id])
		if err := store.CreateCard(ctx, &card); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	due, err := store.DueCards(ctx, "agent-1", testNow)
	if err != nil {
		t.Fatalf("DueCards: %v", err)
	}
	want := []string{"b", "a", "c"}
	if len(due) != len(want) {
		t.Fatalf("due = %d cards, want %d", len(due), len(want))
	}
	for i := range want {
		if due[i].ID != want[i] {
			t.Errorf("due[%d] = %s, want %s", i, due[i].ID, want[i])
		}
	}
}

func TestMemoryStoreCommitIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	deck := seedMemoryAgent(t, store, "agent-1")

	var cards []models.Flashcard
	for _, id := range []string{"c1", "c2", "c3"} {
		card := models.NewFlashcard(id, deck.ID, "front", "back", "go", 1, testNow)
		if err := store.CreateCard(ctx, &card); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		cards = append(cards, card)
	}

	// The last card in the batch is stale: even cards listed before it must
	// stay untouched.
	cards[2].Version = 5
	session := &models.TrainingSession{ID: "sess-1", AgentID: "agent-1", StartedAt: testNow, EndedAt: testNow}
	err := store.CommitReview(ctx, session, cards)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("CommitReview = %v, want ErrConflict", err)
	}
	for _, id := range []string{"c1", "c2"} {
		c, _ := store.GetCard(ctx, id)
		if c.Version != 1 {
			t.Errorf("%s version = %d, want 1", id, c.Version)
		}
	}
	if history, _ := store.SessionHistory(ctx, "agent-1"); len(history) != 0 {
		t.Errorf("history = %d sessions, want 0", len(history))
	}

	// With fresh versions the same batch commits.
	cards[2].Version = 1
	if err := store.CommitReview(ctx, session, cards); err != nil {
		t.Fatalf("CommitReview retry: %v", err)
	}
	for _, id := range []string{"c1", "c2", "c3"} {
		c, _ := store.GetCard(ctx, id)
		if c.Version != 2 {
			t.Errorf("%s version = %d, want 2", id, c.Version)
		}
	}

	// A committed session id cannot be committed twice.
	if err := store.CommitReview(ctx, session, nil); err == nil {
		t.Error("recommitting session succeeded, want error")
	}
}

func TestMemoryStorePutCardBypassesVersions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	deck := seedMemoryAgent(t, store, "agent-1")

	card := models.NewFlashcard("c1", deck.ID, "front", "back", "go", 1, testNow)
	if err := store.CreateCard(ctx, &card); err != nil {
		t.Fatalf("create card: %v", err)
	}
	card.Version = 7
	store.PutCard(card)

	c, err := store.GetCard(ctx, "c1")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if c.Version != 7 {
		t.Errorf("version = %d, want 7", c.Version)
	}
}

func TestMemoryStoreStatistics(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	deck := seedMemoryAgent(t, store, "agent-1")

	due := models.NewFlashcard("due", deck.ID, "front", "back", "go", 1, testNow)
	if err := store.CreateCard(ctx, &due); err != nil {
		t.Fatalf("create due: %v", err)
	}
	leech := models.NewFlashcard("leech", deck.ID, "front", "back", "go", 1, testNow)
	leech.Lapses = 8
	leech.State = models.StateLeech
	leech.DueAt = time.Now().UTC().Add(24 * time.Hour)
	if err := store.CreateCard(ctx, &leech); err != nil {
		t.Fatalf("create leech: %v", err)
	}

	stats, err := store.Statistics(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalCards != 2 || stats.CardsDue != 1 || stats.LeechCards != 1 {
		t.Errorf("stats = %+v, want 2 total, 1 due, 1 leech", stats)
	}

	counts, err := store.DueCounts(ctx, testNow)
	if err != nil {
		t.Fatalf("DueCounts: %v", err)
	}
	if counts["agent-1"] != 1 {
		t.Errorf("due counts = %v, want agent-1:1", counts)
	}
}
