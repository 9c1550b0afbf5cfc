package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned for tokens that are malformed or fail
// verification.
var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated identity behind a connection.
type Principal struct {
	ID string
}

// TokenValidator checks the token presented during the connection upgrade.
type TokenValidator interface {
	Validate(token string) (Principal, error)
}

// TokenMinter issues tokens accepted by the paired validator.
type TokenMinter interface {
	Mint(playerID string) string
}

// HMACValidator verifies tokens of the form "<playerID>.<hex mac>" where the
// mac is HMAC-SHA256 over the player id under a shared secret.
type HMACValidator struct {
	secret []byte
}

// NewHMACValidator creates a validator with the given shared secret.
func NewHMACValidator(secret string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret)}
}

// Mint issues a token for the given player id.
func (v *HMACValidator) Mint(playerID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(playerID))
	return playerID + "." + hex.EncodeToString(mac.Sum(nil))
}

// Validate checks the token's mac and returns the embedded principal.
func (v *HMACValidator) Validate(token string) (Principal, error) {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return Principal{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}
	playerID, macHex := token[:idx], token[idx+1:]

	want, err := hex.DecodeString(macHex)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: malformed mac", ErrInvalidToken)
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(playerID))
	if !hmac.Equal(mac.Sum(nil), want) {
		return Principal{}, fmt.Errorf("%w: bad mac", ErrInvalidToken)
	}
	return Principal{ID: playerID}, nil
}

// AllowAll accepts any non-empty token as the principal id itself. Intended
// for local development and tests only.
type AllowAll struct{}

// Validate treats the token as the principal id.
func (AllowAll) Validate(token string) (Principal, error) {
	if token == "" {
		return Principal{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	return Principal{ID: token}, nil
}

// Mint returns the player id itself; AllowAll accepts it back verbatim.
func (AllowAll) Mint(playerID string) string {
	return playerID
}
