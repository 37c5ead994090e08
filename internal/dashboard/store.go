package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store persists session state and the per-session busy flag.
type Store interface {
	Load(ctx context.Context, sessionID string) (State, bool, error)
	Save(ctx context.Context, sessionID string, state State) error
	AcquireBusy(ctx context.Context, sessionID string) (token string, ok bool, err error)
	ReleaseBusy(ctx context.Context, sessionID, token string) error
}

// releaseScript deletes the busy key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps dashboard state next to the session in Redis.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	busyTTL time.Duration
}

// NewRedisStore constructs a RedisStore. State expires after ttl; a busy flag that is
// never released expires after busyTTL.
func NewRedisStore(client *redis.Client, ttl, busyTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, busyTTL: busyTTL}
}

// Load returns the stored state. ok is false when the session has none. A busy
// marker whose lock has expired is cleared.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (State, bool, error) {
	payload, err := s.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("dashboard: load state: %w", err)
	}
	state := NewState()
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, false, fmt.Errorf("dashboard: decode state: %w", err)
	}
	if state.Busy {
		held, err := s.client.Exists(ctx, busyKey(sessionID)).Result()
		if err != nil {
			return State{}, false, fmt.Errorf("dashboard: check busy: %w", err)
		}
		if held == 0 {
			state.Busy = false
			state.Pending = KindNone
		}
	}
	return state, true, nil
}

// Save writes the state and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, sessionID string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("dashboard: encode state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("dashboard: save state: %w", err)
	}
	return nil
}

// AcquireBusy sets the busy flag if it is clear. The returned token releases it.
func (s *RedisStore) AcquireBusy(ctx context.Context, sessionID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, busyKey(sessionID), token, s.busyTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("dashboard: acquire busy: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseBusy clears the busy flag held under token.
func (s *RedisStore) ReleaseBusy(ctx context.Context, sessionID, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{busyKey(sessionID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("dashboard: release busy: %w", err)
	}
	return nil
}

func stateKey(sessionID string) string {
	return "dashboard:state:" + sessionID
}

func busyKey(sessionID string) string {
	return "dashboard:busy:" + sessionID
}
