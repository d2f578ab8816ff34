package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/drillbot/internal/database"
	"github.com/example/drillbot/pkg/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func newImportStore(t *testing.T) *database.MemoryStore {
	t.Helper()
	store := database.NewMemoryStore()
	err := store.SaveProfile(context.Background(), &models.AgentProfile{AgentID: "agent-1", DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
	return store
}

func TestImportDeckFromCSV(t *testing.T) {
	store := newImportStore(t)
	path := writeCSV(t, `front,back,topic,difficulty
what is a goroutine,a lightweight thread,concurrency,3
what does cap return,slice capacity,slices,
,orphan back,slices,2
what is a channel,a typed conduit,concurrency,9
`)

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.DeckName = "go basics"

	result, err := ImportDeck(context.Background(), store, "agent-1", cfg, testNow)
	if err != nil {
		t.Fatalf("ImportDeck: %v", err)
	}
	if !result.DeckCreated {
		t.Error("deck was not created")
	}
	if result.TotalProcessed != 4 || result.Created != 2 || result.Skipped != 2 {
		t.Errorf("result = %+v, want 4 processed, 2 created, 2 skipped", result)
	}
	if len(result.Errors) != 2 {
		t.Errorf("errors = %v, want 2 entries", result.Errors)
	}

	deck, err := store.GetDeckByName(context.Background(), "agent-1", "go basics")
	if err != nil {
		t.Fatalf("GetDeckByName: %v", err)
	}
	if len(deck.CardIDs) != 2 {
		t.Fatalf("deck cards = %d, want 2", len(deck.CardIDs))
	}

	card, err := store.GetCard(context.Background(), deck.CardIDs[0])
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.Front != "what is a goroutine" || card.Topic != "concurrency" || card.Difficulty != 3 {
		t.Errorf("card = %+v, want first csv row", card)
	}
	if card.State != models.StateNew || card.EaseFactor != models.DefaultEase {
		t.Errorf("card = state %s ease %v, want fresh scheduling state", card.State, card.EaseFactor)
	}

	// Missing difficulty falls back to 1.
	second, _ := store.GetCard(context.Background(), deck.CardIDs[1])
	if second.Difficulty != 1 {
		t.Errorf("difficulty = %d, want default 1", second.Difficulty)
	}
}

func TestImportAppendsToExistingDeck(t *testing.T) {
	store := newImportStore(t)
	ctx := context.Background()

	deck := &models.FlashcardDeck{ID: "deck-1", AgentID: "agent-1", Name: "go basics"}
	if err := store.CreateDeck(ctx, deck); err != nil {
		t.Fatalf("create deck: %v", err)
	}
	existing := models.NewFlashcard("c1", deck.ID, "old front", "old back", "go", 1, testNow)
	if err := store.CreateCard(ctx, &existing); err != nil {
		t.Fatalf("create card: %v", err)
	}

	cfg := DefaultImportConfig()
	cfg.FilePath = writeCSV(t, "front,back,topic,difficulty\nnew front,new back,go,2\n")
	cfg.DeckName = "go basics"

	result, err := ImportDeck(ctx, store, "agent-1", cfg, testNow)
	if err != nil {
		t.Fatalf("ImportDeck: %v", err)
	}
	if result.DeckCreated {
		t.Error("existing deck reported as created")
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1", result.Created)
	}

	loaded, _ := store.GetDeck(ctx, deck.ID)
	if len(loaded.CardIDs) != 2 || loaded.CardIDs[0] != "c1" {
		t.Errorf("deck cards = %v, want existing card first", loaded.CardIDs)
	}
}

func TestImportWithoutHeader(t *testing.T) {
	store := newImportStore(t)

	cfg := DefaultImportConfig()
	cfg.FilePath = writeCSV(t, "front a,back a\nfront b,back b\n")
	cfg.DeckName = "raw"
	cfg.SkipHeader = false

	result, err := ImportDeck(context.Background(), store, "agent-1", cfg, testNow)
	if err != nil {
		t.Fatalf("ImportDeck: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("created = %d, want 2", result.Created)
	}
}

func TestImportRejectsUnknownExtension(t *testing.T) {
	store := newImportStore(t)

	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "deck.txt")
	cfg.DeckName = "nope"

	if _, err := ImportDeck(context.Background(), store, "agent-1", cfg, testNow); err == nil {
		t.Error("ImportDeck(.txt) succeeded, want error")
	}
}
