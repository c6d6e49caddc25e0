package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig selects the backing for the persistent key-value scope.
// The ephemeral scope is always process-local memory.
type StorageConfig struct {
	Driver string // "redis" or "postgres"
}

type SecurityConfig struct {
	PBKDF2Iterations int
	SessionTTL       time.Duration // ephemeral session lifetime
	RememberTTL      time.Duration // persistent ("remember me") session lifetime
	IdentitySecret   string        // HMAC secret of the external identity-provider tokens
	ImportToken      string        // shared secret for the recipe import endpoint
}

type CacheConfig struct {
	Prefix     string
	Version    string
	DefaultTTL time.Duration
	RatingTTL  time.Duration
	RecipeTTL  time.Duration
	UserTTL    time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Cache            CacheConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("NUTRIPLAN")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.driver", "redis")

	v.SetDefault("security.pbkdf2iterations", 100000)
	v.SetDefault("security.sessionttl", "24h")
	v.SetDefault("security.rememberttl", "720h") // 30 days

	v.SetDefault("cache.prefix", "nutriplan_")
	v.SetDefault("cache.version", "1.0.0")
	v.SetDefault("cache.defaultttl", "24h")
	v.SetDefault("cache.ratingttl", "5m")
	v.SetDefault("cache.recipettl", "1h")
	v.SetDefault("cache.userttl", "30m")
}
