package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

// OperatorKey holds the identity data for a validated till API key. The key
// ID doubles as the operator identity stamped onto finalized sales.
type OperatorKey struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides lookup of operator keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*OperatorKey, error)
}
