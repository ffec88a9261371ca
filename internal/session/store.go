// Package session holds per-client state: the authentication slots written
// by the auth engine and the attempt log used by the rate limiter.
package session

import (
	"context"
	"encoding/json"

	"github.com/koustreak/gardien/internal/errs"
)

// Slot names used by the auth engine and the rate limiter.
const (
	SlotAuthenticated = "authenticated"
	SlotLogin         = "login"
	SlotUser          = "user"
	SlotAttempts      = "attempts"
)

// Store is a key/value store partitioned by client id. Values are JSON
// encoded, so Get decodes into dst the same way json.Unmarshal would.
type Store interface {
	// Get decodes the value of key into dst. It reports false when the
	// client or the key is unknown.
	Get(ctx context.Context, clientID, key string, dst any) (bool, error)

	// Set stores value under key.
	Set(ctx context.Context, clientID, key string, value any) error

	// Delete removes keys. Unknown keys are ignored.
	Delete(ctx context.Context, clientID string, keys ...string) error

	// Clear drops everything held for clientID.
	Clear(ctx context.Context, clientID string) error
}

func encode(key string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "encode session value "+key, err)
	}
	return raw, nil
}

func decode(key string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "decode session value "+key, err)
	}
	return nil
}
