package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionKeySuffix = "session"
	pendingKeySuffix = "pending_state"

	// pendingStateTTL bounds how long an initiated login stays redeemable.
	pendingStateTTL = 10 * time.Minute
)

// RedisStore persists the session and pending nonce in Redis, for
// shared-workstation setups where the client's data folder is not durable.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. The caller owns the connection.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) sessionKey() string { return s.keyPrefix + sessionKeySuffix }
func (s *RedisStore) pendingKey() string { return s.keyPrefix + pendingKeySuffix }

func (s *RedisStore) SaveSession(ctx context.Context, session Session) error {
	blob, err := json.Marshal(persistedSession{
		Version:      schemaVersion,
		ID:           session.ID,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		UserID:       session.UserID,
		Email:        session.Email,
		StoredAt:     session.StoredAt,
	})
	if err != nil {
		return fmt.Errorf("[RedisStore SaveSession] failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, s.sessionKey(), blob, 0).Err(); err != nil {
		return fmt.Errorf("[RedisStore SaveSession] %w", err)
	}
	return nil
}

func (s *RedisStore) LoadSession(ctx context.Context) (*Session, error) {
	blob, err := s.client.Get(ctx, s.sessionKey()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisStore LoadSession] %w", err)
	}

	var persisted persistedSession
	if err := json.Unmarshal(blob, &persisted); err != nil {
		log.Warn().Err(err).Msg("Persisted session is not decodable, treating as absent")
		return nil, nil
	}
	if persisted.Version != schemaVersion {
		log.Warn().Int("version", persisted.Version).Msg("Persisted session has unknown schema version, treating as absent")
		return nil, nil
	}

	return &Session{
		ID:           persisted.ID,
		AccessToken:  persisted.AccessToken,
		RefreshToken: persisted.RefreshToken,
		UserID:       persisted.UserID,
		Email:        persisted.Email,
		StoredAt:     persisted.StoredAt,
	}, nil
}

func (s *RedisStore) ClearSession(ctx context.Context) error {
	if err := s.client.Del(ctx, s.sessionKey()).Err(); err != nil {
		return fmt.Errorf("[RedisStore ClearSession] %w", err)
	}
	return nil
}

func (s *RedisStore) SavePendingState(ctx context.Context, nonce string) error {
	if nonce == "" {
		return fmt.Errorf("[RedisStore SavePendingState] nonce cannot be empty")
	}
	if err := s.client.Set(ctx, s.pendingKey(), nonce, pendingStateTTL).Err(); err != nil {
		return fmt.Errorf("[RedisStore SavePendingState] %w", err)
	}
	return nil
}

func (s *RedisStore) LoadPendingState(ctx context.Context) (string, error) {
	nonce, err := s.client.Get(ctx, s.pendingKey()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("[RedisStore LoadPendingState] %w", err)
	}
	return nonce, nil
}

func (s *RedisStore) ClearPendingState(ctx context.Context) error {
	if err := s.client.Del(ctx, s.pendingKey()).Err(); err != nil {
		return fmt.Errorf("[RedisStore ClearPendingState] %w", err)
	}
	return nil
}
