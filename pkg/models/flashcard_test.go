package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewFlashcardDefaults(t *testing.T) {
	c := NewFlashcard("c1", "d1", "front", "back", "go", 2, testNow)
	if c.State != StateNew {
		t.Errorf("state = %s, want New", c.State)
	}
	if c.EaseFactor != DefaultEase {
		t.Errorf("ease = %v, want %v", c.EaseFactor, DefaultEase)
	}
	if c.Repetitions != 0 || c.Lapses != 0 {
		t.Errorf("repetitions = %d, lapses = %d, want 0, 0", c.Repetitions, c.Lapses)
	}
	if !c.DueAt.Equal(testNow) {
		t.Errorf("due = %s, want %s (immediately reviewable)", c.DueAt, testNow)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("fresh card failed validation: %v", err)
	}
}

func TestFlashcardJSONRoundTrip(t *testing.T) {
	c := NewFlashcard("c1", "d1", "front", "back", "go", 4, testNow)
	c.State = StateReview
	c.EaseFactor = 2.18
	c.IntervalDays = 42
	c.Repetitions = 6
	c.Lapses = 2
	c.Version = 9

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Flashcard
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != c {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, c)
	}
}

func TestCardStateMarshalling(t *testing.T) {
	tests := []struct {
		state CardState
		want  string
	}{
		{StateNew, `"New"`},
		{StateLearning, `"Learning"`},
		{StateReview, `"Review"`},
		{StateLeech, `"Leech"`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.state)
		if err != nil {
			t.Fatalf("marshal %s: %v", tt.state, err)
		}
		if string(data) != tt.want {
			t.Errorf("marshal %s = %s, want %s", tt.state, data, tt.want)
		}
		var back CardState
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != tt.state {
			t.Errorf("unmarshal %s = %v, want %v", data, back, tt.state)
		}
	}
}

func TestCardStateInvalid(t *testing.T) {
	if _, err := json.Marshal(CardState(99)); err == nil {
		t.Errorf("marshal of invalid state should fail")
	}
	var s CardState
	if err := json.Unmarshal([]byte(`"Suspended"`), &s); err == nil {
		t.Errorf("unmarshal of unknown state should fail")
	}
	if got := CardState(99).String(); got != "CardState(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestFlashcardValidate(t *testing.T) {
	base := NewFlashcard("c1", "d1", "front", "back", "go", 3, testNow)
	tests := []struct {
		name   string
		mutate func(*Flashcard)
		detail string
	}{
		{"empty id", func(c *Flashcard) { c.ID = "" }, "empty id"},
		{"empty deck", func(c *Flashcard) { c.DeckID = "" }, "deck"},
		{"bad state", func(c *Flashcard) { c.State = 0 }, "state"},
		{"low ease", func(c *Flashcard) { c.EaseFactor = 1.1 }, "ease"},
		{"zero interval", func(c *Flashcard) { c.IntervalDays = 0 }, "interval"},
		{"huge interval", func(c *Flashcard) { c.IntervalDays = 400 }, "interval"},
		{"negative repetitions", func(c *Flashcard) { c.Repetitions = -1 }, "repetitions"},
		{"negative lapses", func(c *Flashcard) { c.Lapses = -2 }, "lapses"},
		{"bad difficulty", func(c *Flashcard) { c.Difficulty = 6 }, "difficulty"},
		{"zero due", func(c *Flashcard) { c.DueAt = time.Time{} }, "due"},
		{"zero version", func(c *Flashcard) { c.Version = 0 }, "version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("Validate() = %v, want ErrCorruptRecord", err)
			}
			if !strings.Contains(err.Error(), tt.detail) {
				t.Errorf("error %q missing %q", err, tt.detail)
			}
		})
	}
}

func TestAgentProfileValidate(t *testing.T) {
	ok := AgentProfile{AgentID: "a1", DisplayName: "Ada"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid profile rejected: %v", err)
	}
	for _, p := range []AgentProfile{
		{DisplayName: "Ada"},
		{AgentID: "a1"},
	} {
		if err := p.Validate(); !errors.Is(err, ErrProfileInvalid) {
			t.Errorf("Validate(%+v) = %v, want ErrProfileInvalid", p, err)
		}
	}
}
