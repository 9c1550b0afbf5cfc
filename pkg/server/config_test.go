package server

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotrace-backend/pkg/game"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		cfg := DefaultConfig()
		f(&cfg)
		return cfg
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"order too small", mutate(func(c *Config) { c.DesignOrder = 1 })},
		{"min players below floor", mutate(func(c *Config) { c.MinPlayers = 1 })},
		{"max players above cap", mutate(func(c *Config) { c.MaxPlayers = game.CapMaxPlayers + 1 })},
		{"max below min players", mutate(func(c *Config) { c.MaxPlayers = 2; c.MinPlayers = 3 })},
		{"default players out of range", mutate(func(c *Config) { c.DefaultMaxPlayers = 99 })},
		{"min rounds zero", mutate(func(c *Config) { c.MinRounds = 0 })},
		{"max rounds above cap", mutate(func(c *Config) { c.MaxRounds = game.CapMaxRounds + 1 })},
		{"default rounds out of range", mutate(func(c *Config) { c.DefaultMaxRounds = 0; c.MinRounds = 1 })},
		{"negative seed", mutate(func(c *Config) { c.RandomSeed = -1 })},
		{"zero message cap", mutate(func(c *Config) { c.MaxInboundMessageBytes = 0 })},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestValidatorChecks(t *testing.T) {
	now := time.Now().UTC()
	v := NewValidator(DefaultConfig())
	s, err := game.ScheduleSession(uuid.New(), game.ModeTower, 2, 5, now)
	require.NoError(t, err)

	require.NoError(t, v.EnsurePlayerCanJoin(s, "alice"))
	require.NoError(t, s.AddParticipant("alice", now))

	assert.ErrorIs(t, v.EnsurePlayerCanJoin(s, "alice"), game.ErrDuplicate)
	assert.ErrorIs(t, v.EnsureSessionCanStart(s), game.ErrNotEnoughPlayers)

	require.NoError(t, s.AddParticipant("bob", now))
	assert.ErrorIs(t, v.EnsurePlayerCanJoin(s, "carol"), game.ErrCapacity)
	require.NoError(t, v.EnsureSessionCanStart(s))

	assert.ErrorIs(t, v.EnsureAttemptAllowed(s, "mallory"), game.ErrNotParticipant)
	require.NoError(t, v.EnsureAttemptAllowed(s, "alice"))

	require.NoError(t, s.Start(now))
	assert.ErrorIs(t, v.EnsurePlayerCanJoin(s, "carol"), game.ErrAlreadyStarted)
	assert.ErrorIs(t, v.EnsureSessionCanStart(s), game.ErrAlreadyStarted)

	require.NoError(t, s.Complete(now))
	assert.ErrorIs(t, v.EnsurePlayerCanJoin(s, "carol"), game.ErrAlreadyCompleted)
	assert.ErrorIs(t, v.EnsureSessionCanStart(s), game.ErrAlreadyCompleted)
}
