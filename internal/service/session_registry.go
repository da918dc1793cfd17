package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable indica un fallo del key-value store compartido.
// Nunca se traduce silenciosamente en "no autenticado" ni "no limitado".
var ErrStoreUnavailable = errors.New("key-value store unavailable")

// SessionRegistry registra las sesiones de refresh vivas, con índice
// inverso por usuario para revocación masiva. Una sesión existe en el
// registro si y solo si su refresh token no fue consumido, revocado ni
// expiró.
type SessionRegistry interface {
	Register(ctx context.Context, jti, userID string, ttl time.Duration) error
	IsLive(ctx context.Context, jti string) (bool, error)
	// Consume revoca la sesión solo si sigue viva, en una sola operación
	// atómica, y devuelve el userID dueño. ok=false si ya no existía.
	Consume(ctx context.Context, jti string) (userID string, ok bool, err error)
	Revoke(ctx context.Context, jti string) error
	RevokeAll(ctx context.Context, userID string) error
}

const (
	refreshKeyPrefix     = "refresh:"
	userRefreshKeyPrefix = "user_refresh:"
)

// GET+DEL+SREM en un solo paso para que dos canjes concurrentes del mismo
// refresh token no puedan pasar ambos la verificación de vigencia.
const consumeSessionScript = `
local owner = redis.call("GET", KEYS[1])
if not owner then
  return false
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. owner, ARGV[2])
return owner
`

type redisSessionRegistry struct {
	client *redis.Client
}

// NewRedisSessionRegistry crea un registro de sesiones respaldado en Redis
// con claves refresh:<jti> y user_refresh:<userID>.
func NewRedisSessionRegistry(client *redis.Client) SessionRegistry {
	if client == nil {
		return nil
	}
	return &redisSessionRegistry{client: client}
}

func (r *redisSessionRegistry) Register(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	if err := r.client.Set(ctx, refreshKeyPrefix+jti, userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := r.client.SAdd(ctx, userRefreshKeyPrefix+userID, jti).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// El índice hereda el TTL de la sesión más reciente; con sesiones
	// concurrentes de vidas distintas esto puede acortar la visibilidad
	// de una entrada más longeva en el índice, no la sesión en sí.
	if err := r.client.Expire(ctx, userRefreshKeyPrefix+userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *redisSessionRegistry) IsLive(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, refreshKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func (r *redisSessionRegistry) Consume(ctx context.Context, jti string) (string, bool, error) {
	if strings.TrimSpace(jti) == "" {
		return "", false, nil
	}
	res, err := r.client.Eval(ctx, consumeSessionScript,
		[]string{refreshKeyPrefix + jti},
		userRefreshKeyPrefix, jti,
	).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	owner, _ := res.(string)
	return owner, true, nil
}

func (r *redisSessionRegistry) Revoke(ctx context.Context, jti string) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	owner, err := r.client.Get(ctx, refreshKeyPrefix+jti).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if owner != "" {
		if err := r.client.SRem(ctx, userRefreshKeyPrefix+owner, jti).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if err := r.client.Del(ctx, refreshKeyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *redisSessionRegistry) RevokeAll(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	indexKey := userRefreshKeyPrefix + userID
	jtis, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, refreshKeyPrefix+jti)
	}
	keys = append(keys, indexKey)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

type memorySessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	byUser   map[string]map[string]struct{}
}

// NewMemorySessionRegistry crea un registro en memoria con la misma
// semántica que el de Redis, pensado para tests.
func NewMemorySessionRegistry() SessionRegistry {
	return &memorySessionRegistry{
		sessions: make(map[string]memorySession),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (m *memorySessionRegistry) Register(_ context.Context, jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[jti] = memorySession{userID: userID, expiresAt: time.Now().UTC().Add(ttl)}
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]struct{})
	}
	m.byUser[userID][jti] = struct{}{}
	return nil
}

func (m *memorySessionRegistry) IsLive(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[jti]
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(sess.expiresAt) {
		m.remove(jti, sess.userID)
		return false, nil
	}
	return true, nil
}

func (m *memorySessionRegistry) Consume(_ context.Context, jti string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[jti]
	if !ok || time.Now().UTC().After(sess.expiresAt) {
		return "", false, nil
	}
	m.remove(jti, sess.userID)
	return sess.userID, true, nil
}

func (m *memorySessionRegistry) Revoke(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[jti]; ok {
		m.remove(jti, sess.userID)
	}
	return nil
}

func (m *memorySessionRegistry) RevokeAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for jti := range m.byUser[userID] {
		delete(m.sessions, jti)
	}
	delete(m.byUser, userID)
	return nil
}

func (m *memorySessionRegistry) remove(jti, userID string) {
	delete(m.sessions, jti)
	if set, ok := m.byUser[userID]; ok {
		delete(set, jti)
		if len(set) == 0 {
			delete(m.byUser, userID)
		}
	}
}
