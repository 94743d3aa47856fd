package domain

import (
	"regexp"
	"time"
)

var flagPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// Flag is one feature toggle. Flags are advisory configuration, not
// safety-critical state.
type Flag struct {
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Note      string    `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ValidateFlagName(name string) error {
	if name == "" || !flagPattern.MatchString(name) {
		return ErrInvalidFlag
	}
	return nil
}
