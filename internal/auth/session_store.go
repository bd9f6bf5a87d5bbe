package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pepper/internal/cache"
)

const sessionKeyPrefix = "session:"

// SessionStoreInterface defines server-side session record operations.
type SessionStoreInterface interface {
	Create(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (userID string, err error)
	Delete(ctx context.Context, sessionID string) error
}

// SessionStore keeps session records in Redis with a TTL, so sessions survive
// restarts and are shared across instances.
type SessionStore struct {
	cache *cache.Client
}

var _ SessionStoreInterface = (*SessionStore)(nil)

// NewSessionStore creates a new session store.
func NewSessionStore(cache *cache.Client) *SessionStore {
	return &SessionStore{cache: cache}
}

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Create stores a session record under the session ID with TTL.
func (s *SessionStore) Create(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error {
	payload, err := json.Marshal(sessionRecord{
		UserID:    userID.String(),
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	return s.cache.Set(ctx, sessionKeyPrefix+sessionID, payload, ttl)
}

// Get returns the user ID for a live session, or an error when the session
// does not exist or has expired.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	data, err := s.cache.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	if data == nil {
		return "", fmt.Errorf("session not found")
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return "", fmt.Errorf("unmarshal session record: %w", err)
	}
	return record.UserID, nil
}

// Delete removes a session record, logging the user out everywhere the cookie
// is presented.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+sessionID)
}
