package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "session:"

// record is the JSON document stored in Redis per session.
type record struct {
	Values     map[string]string `json:"values"`
	Persistent bool              `json:"persistent"`
}

// Manager stores sessions in Redis. Non-persistent sessions expire after
// ttl; persistent ones ("remember me") after persistentTTL.
type Manager struct {
	client        *goredis.Client
	log           zerolog.Logger
	ttl           time.Duration
	persistentTTL time.Duration
}

func NewManager(client *goredis.Client, log zerolog.Logger, ttl, persistentTTL time.Duration) *Manager {
	return &Manager{
		client:        client,
		log:           log,
		ttl:           ttl,
		persistentTTL: persistentTTL,
	}
}

// Load fetches the session with the given ID. A missing or undecodable
// session yields (nil, nil): the caller should treat it as absent.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	data, err := m.client.Get(ctx, keyPrefix+id).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		m.log.Warn().Err(err).Str("session_id", id).Msg("dropping undecodable session")
		return nil, nil
	}
	return restore(id, rec.Values, rec.Persistent), nil
}

// Save writes the session back with a TTL matching its persistence flag.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(record{Values: s.values, Persistent: s.persistent})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.client.Set(ctx, keyPrefix+s.ID, data, m.TTLFor(s)).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Destroy removes the session from Redis.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if err := m.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// TTLFor returns the expiry applied to the session on save.
func (m *Manager) TTLFor(s *Session) time.Duration {
	if s.persistent {
		return m.persistentTTL
	}
	return m.ttl
}
