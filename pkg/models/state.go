package models

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// CardState represents the scheduling stage of a flashcard.
type CardState int

const (
	StateNew      CardState = iota + 1 // Never reviewed, at the start of the graduation ladder.
	StateLearning                      // Inside the graduation ladder.
	StateReview                        // Entered full SM-2 interval scheduling.
	StateLeech                         // Chronically failed; sticky advisory flag, still scheduled.
)

var (
	stateNames = [...]string{
		StateNew:      "New",
		StateLearning: "Learning",
		StateReview:   "Review",
		StateLeech:    "Leech",
	}
	stateByName = map[string]CardState{
		"New":      StateNew,
		"Learning": StateLearning,
		"Review":   StateReview,
		"Leech":    StateLeech,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = CardState(0)
	_ json.Marshaler           = CardState(0)
	_ json.Unmarshaler         = (*CardState)(nil)
	_ encoding.TextMarshaler   = CardState(0)
	_ encoding.TextUnmarshaler = (*CardState)(nil)
)

// IsValid reports whether s is a known card state.
func (s CardState) IsValid() bool {
	return s >= StateNew && s <= StateLeech
}

// String returns the name of the state ("New", "Learning", "Review", "Leech").
// For invalid values it returns "CardState(n)".
func (s CardState) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("CardState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s CardState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("models: invalid card state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CardState) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("models: invalid card state: %q", text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. CardState serializes as a JSON string.
func (s CardState) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (s *CardState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("models: invalid card state: %s", data)
	}
	return s.UnmarshalText([]byte(str))
}
