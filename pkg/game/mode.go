package game

import "fmt"

// Mode identifies the rule set a session plays.
type Mode string

const (
	// ModeTower is the symbol race against a shared tower card.
	ModeTower Mode = "tower"
	// ModeWell is reserved; no engine exists for it yet.
	ModeWell Mode = "well"
)

// ParseMode converts a wire string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTower:
		return ModeTower, nil
	case ModeWell:
		return ModeWell, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidParams, s)
}

func (m Mode) String() string { return string(m) }
