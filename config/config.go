package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server    ServerConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Presence  PresenceConfig
	WebSocket WebSocketConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds
	WriteTimeout int // Seconds
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int // Seconds
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	JWKSURL         string
	Issuer          string
	TokenQueryParam string
}

type PresenceConfig struct {
	TimeoutMs       int // Liveness timeout; entries older than this are evicted
	SweepIntervalMs int // Sweeper tick period, independent of the timeout
}

type WebSocketConfig struct {
	MessageSizeLimit int // Bytes
	HandshakeTimeout int // Seconds
	PingInterval     int // Seconds
	WriteTimeout     int // Seconds
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("PRESENCE")

		setDefaults()
		bindEnvVars()

		if err := viper.ReadInConfig(); err != nil {
			initErr = fmt.Errorf("config file error: %w", err)
			return
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
