// verge/cmd/verged/main_test.go

package main

import (
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verge/pkg/store"
)

func TestParseConfig(t *testing.T) {
	configFile, err := os.CreateTemp("", "verge_config.json")
	require.NoError(t, err)
	defer os.Remove(configFile.Name())

	configContent := `{
		"server.port": 9999,
		"logging.level": "debug",
		"logging.output": "stderr",
		"store.backend": "redis",
		"redis.address": "localhost:6400",
		"redis.password": "secret",
		"redis.database": 2
	}`
	_, err = configFile.WriteString(configContent)
	require.NoError(t, err)
	configFile.Close()

	args := []string{"verged", "--config", configFile.Name()}
	config, err := parseConfig(args)
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Port)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "stderr", config.LogDestination)
	assert.Equal(t, "redis", config.StoreBackend)
	assert.Equal(t, "localhost:6400", config.RedisAddress)
	assert.Equal(t, "secret", config.RedisPassword)
	assert.Equal(t, 2, config.RedisDB)
}

func TestParseConfigDefaults(t *testing.T) {
	args := []string{"verged"}
	config, err := parseConfig(args)
	require.NoError(t, err)

	assert.Equal(t, "memory", config.StoreBackend)
	assert.NotZero(t, config.Port)
}

func TestStoreFactoryMemory(t *testing.T) {
	st, err := (&RealStoreFactory{}).NewStore(&Config{StoreBackend: "memory"})
	require.NoError(t, err)
	_, ok := st.(*store.MemoryStore)
	assert.True(t, ok)
}

func TestStoreFactoryRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	st, err := (&RealStoreFactory{}).NewStore(&Config{
		StoreBackend: "redis",
		RedisAddress: mr.Addr(),
	})
	require.NoError(t, err)
	_, ok := st.(*store.RedisStore)
	assert.True(t, ok)
}

func TestStoreFactoryRejectsUnknownBackend(t *testing.T) {
	_, err := (&RealStoreFactory{}).NewStore(&Config{StoreBackend: "sqlite"})
	assert.Error(t, err)
}
