package server

import (
	"fmt"

	"spotrace-backend/pkg/game"
)

// Config enumerates every tunable of the coordinator. Each parameter is
// validated at load; a bad value aborts startup with a descriptive error.
type Config struct {
	// DesignOrder is the prime order of the shared deck design.
	DesignOrder int
	// DefaultMaxPlayers applies when CreateGame omits maxPlayers.
	DefaultMaxPlayers int
	// DefaultMaxRounds applies when CreateGame omits maxRounds.
	DefaultMaxRounds int
	// MinPlayers/MaxPlayers bound the per-session player cap.
	MinPlayers int
	MaxPlayers int
	// MinRounds/MaxRounds bound the per-session round cap.
	MinRounds int
	MaxRounds int
	// ShuffleDeck randomizes the per-game deck order.
	ShuffleDeck bool
	// RandomSeed makes every engine deterministic when non-zero.
	RandomSeed int64
	// MaxInboundMessageBytes caps a single inbound websocket message.
	MaxInboundMessageBytes int64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DesignOrder:            7,
		DefaultMaxPlayers:      4,
		DefaultMaxRounds:       10,
		MinPlayers:             2,
		MaxPlayers:             game.CapMaxPlayers,
		MinRounds:              1,
		MaxRounds:              game.CapMaxRounds,
		ShuffleDeck:            true,
		MaxInboundMessageBytes: 32 * 1024,
	}
}

// Validate checks every parameter and returns the first violation found.
func (c Config) Validate() error {
	if c.DesignOrder < 2 {
		return fmt.Errorf("design order must be >= 2, got %d", c.DesignOrder)
	}
	if c.MinPlayers < 2 {
		return fmt.Errorf("min players must be >= 2, got %d", c.MinPlayers)
	}
	if c.MaxPlayers < c.MinPlayers || c.MaxPlayers > game.CapMaxPlayers {
		return fmt.Errorf("max players must be in [%d,%d], got %d",
			c.MinPlayers, game.CapMaxPlayers, c.MaxPlayers)
	}
	if c.DefaultMaxPlayers < c.MinPlayers || c.DefaultMaxPlayers > c.MaxPlayers {
		return fmt.Errorf("default max players must be in [%d,%d], got %d",
			c.MinPlayers, c.MaxPlayers, c.DefaultMaxPlayers)
	}
	if c.MinRounds < 1 {
		return fmt.Errorf("min rounds must be >= 1, got %d", c.MinRounds)
	}
	if c.MaxRounds < c.MinRounds || c.MaxRounds > game.CapMaxRounds {
		return fmt.Errorf("max rounds must be in [%d,%d], got %d",
			c.MinRounds, game.CapMaxRounds, c.MaxRounds)
	}
	if c.DefaultMaxRounds < c.MinRounds || c.DefaultMaxRounds > c.MaxRounds {
		return fmt.Errorf("default max rounds must be in [%d,%d], got %d",
			c.MinRounds, c.MaxRounds, c.DefaultMaxRounds)
	}
	if c.RandomSeed < 0 {
		return fmt.Errorf("random seed must be nonnegative, got %d", c.RandomSeed)
	}
	if c.MaxInboundMessageBytes <= 0 {
		return fmt.Errorf("max inbound message bytes must be positive, got %d", c.MaxInboundMessageBytes)
	}
	return nil
}
