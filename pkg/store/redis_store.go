// verge/pkg/store/redis_store.go

package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"verge/pkg/logging"
	"verge/pkg/payload"
)

var ctx = context.Background()

const keyPrefix = "verge:payload:"

// RedisStore keeps dev-channel payloads in Redis so offline work
// survives dev-server restarts.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and returns the store. Connection
// failure is fatal: the caller asked for a persistent backend.
func NewRedisStore(addr, password string, db int) *RedisStore {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	logging.Logger.Info().Msg("Successfully connected to Redis")
	return &RedisStore{client: client}
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetPayload(serviceID string, env *payload.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Logger.Error().Err(err).Str("service", serviceID).Msg("Failed to marshal payload envelope")
		return err
	}
	return s.client.Set(ctx, keyPrefix+serviceID, data, 0).Err()
}

func (s *RedisStore) GetPayload(serviceID string) (*payload.Envelope, error) {
	data, err := s.client.Get(ctx, keyPrefix+serviceID).Result()
	if err == redis.Nil {
		logging.Logger.Debug().Str("service", serviceID).Msg("No payload in Redis")
		return nil, nil
	} else if err != nil {
		logging.Logger.Error().Err(err).Str("service", serviceID).Msg("Failed to get payload from Redis")
		return nil, err
	}

	var env payload.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		logging.Logger.Error().Err(err).Str("service", serviceID).Msg("Failed to unmarshal payload envelope")
		return nil, err
	}
	return &env, nil
}
