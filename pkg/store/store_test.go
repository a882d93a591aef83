// verge/pkg/store/store_test.go

package store

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verge/pkg/payload"
)

func testEnvelope() *payload.Envelope {
	return &payload.Envelope{
		Version:     "1.0.0",
		DeployedAt:  "2026-01-02T03:04:05Z",
		RulesPacked: "H4sIAAAAAAAA/w==",
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	env, err := s.GetPayload("svc1")
	require.NoError(t, err)
	assert.Nil(t, env)

	require.NoError(t, s.SetPayload("svc1", testEnvelope()))

	got, err := s.GetPayload("svc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "H4sIAAAAAAAA/w==", got.RulesPacked)

	// Stored envelopes are copies: mutating the result must not leak
	// back into the store.
	got.RulesPacked = "mutated"
	again, err := s.GetPayload("svc1")
	require.NoError(t, err)
	assert.Equal(t, "H4sIAAAAAAAA/w==", again.RulesPacked)
}

func TestMemoryStoreIsolatesServices(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetPayload("svc1", testEnvelope()))

	env, err := s.GetPayload("svc2")
	require.NoError(t, err)
	assert.Nil(t, env)
}

func newMiniredisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreWithClient(client)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newMiniredisStore(t)

	env, err := s.GetPayload("svc1")
	require.NoError(t, err)
	assert.Nil(t, env)

	require.NoError(t, s.SetPayload("svc1", testEnvelope()))

	got, err := s.GetPayload("svc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, "H4sIAAAAAAAA/w==", got.RulesPacked)
}

func TestRedisStoreOverwrite(t *testing.T) {
	s := newMiniredisStore(t)
	require.NoError(t, s.SetPayload("svc1", testEnvelope()))

	updated := testEnvelope()
	updated.RulesPacked = "bmV3"
	require.NoError(t, s.SetPayload("svc1", updated))

	got, err := s.GetPayload("svc1")
	require.NoError(t, err)
	assert.Equal(t, "bmV3", got.RulesPacked)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client)

	require.NoError(t, s.SetPayload("svc1", testEnvelope()))
	assert.True(t, mr.Exists("verge:payload:svc1"))
}
