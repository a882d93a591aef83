// verge/cmd/verged/main.go

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"verge/pkg/devserver"
	"verge/pkg/logging"
	"verge/pkg/store"
)

// Config represents the application configuration
type Config struct {
	Port           int
	LogLevel       string
	LogDestination string
	StoreBackend   string
	RedisAddress   string
	RedisPassword  string
	RedisDB        int
}

// StoreFactory is an interface for creating a payload store
type StoreFactory interface {
	NewStore(config *Config) (store.Store, error)
}

func main() {
	if err := run(os.Args, &RealStoreFactory{}); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func run(args []string, storeFactory StoreFactory) error {
	config, err := parseConfig(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := logging.ConfigureLogger(config.LogLevel, config.LogDestination); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	st, err := storeFactory.NewStore(config)
	if err != nil {
		return fmt.Errorf("failed to setup payload store: %w", err)
	}

	log.Info().Int("port", config.Port).Str("store", config.StoreBackend).Msg("Verge development channel started")
	return devserver.New(st, config.Port).Start()
}

func parseConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("server.port", 7676)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "console")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.database", 0)

	if *configFile == "" {
		v.SetConfigName("verge_config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.verge")
		v.AddConfigPath("/etc/verge")
	} else {
		v.SetConfigFile(*configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || *configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No configuration file found, using defaults")
	}

	return &Config{
		Port:           v.GetInt("server.port"),
		LogLevel:       v.GetString("logging.level"),
		LogDestination: v.GetString("logging.output"),
		StoreBackend:   v.GetString("store.backend"),
		RedisAddress:   v.GetString("redis.address"),
		RedisPassword:  v.GetString("redis.password"),
		RedisDB:        v.GetInt("redis.database"),
	}, nil
}

// RealStoreFactory implements StoreFactory
type RealStoreFactory struct{}

func (f *RealStoreFactory) NewStore(config *Config) (store.Store, error) {
	switch config.StoreBackend {
	case "redis":
		return store.NewRedisStore(config.RedisAddress, config.RedisPassword, config.RedisDB), nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.StoreBackend)
	}
}
