// Package verifications records consumed verification tokens so a token
// can be redeemed once.
package verifications

import (
	"context"
	"time"
)

// Store marks a token id as consumed. Consume reports false when the id
// was already marked.
type Store interface {
	Consume(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}

// NoopStore accepts every token, so replays within the token lifetime succeed.
type NoopStore struct{}

func (NoopStore) Consume(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
