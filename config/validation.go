package config

import (
	"errors"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Redis.Address == "" {
		return errors.New("redis address must be specified")
	}

	if c.Postgres.Host == "" || c.Postgres.Database == "" {
		return errors.New("postgres host and database must be specified")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers must be specified when kafka is enabled")
	}

	if c.Auth.JWKSURL == "" {
		return errors.New("auth.jwksUrl must be configured")
	}
	if c.Auth.Issuer == "" {
		return errors.New("auth.issuer must be configured")
	}
	if c.Auth.TokenQueryParam == "" {
		return errors.New("auth.tokenQueryParam must be configured")
	}

	if c.Presence.TimeoutMs < 1 {
		return errors.New("presence timeout must be positive")
	}
	// A sweep interval coarser than the timeout is allowed; eviction is then
	// delayed by at most one tick.
	if c.Presence.SweepIntervalMs < 1 {
		return errors.New("presence sweep interval must be positive")
	}

	if c.WebSocket.MessageSizeLimit < 1 {
		return errors.New("message size limit must be positive")
	}
	if c.WebSocket.HandshakeTimeout < 1 {
		return errors.New("handshake timeout must be at least 1 second")
	}
	if c.WebSocket.PingInterval < 1 {
		return errors.New("ping interval must be at least 1 second")
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "PRESENCE_PORT")

	// Redis
	viper.BindEnv("redis.address", "PRESENCE_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "PRESENCE_REDIS_PASSWORD")
	viper.BindEnv("redis.db", "PRESENCE_REDIS_DB")

	// Postgres
	viper.BindEnv("postgres.host", "PRESENCE_DB_HOST")
	viper.BindEnv("postgres.port", "PRESENCE_DB_PORT")
	viper.BindEnv("postgres.user", "PRESENCE_DB_USER")
	viper.BindEnv("postgres.password", "PRESENCE_DB_PASSWORD")
	viper.BindEnv("postgres.database", "PRESENCE_DB_DATABASE")
	viper.BindEnv("postgres.sslMode", "PRESENCE_DB_SSLMODE")

	// Kafka
	viper.BindEnv("kafka.enabled", "PRESENCE_KAFKA_ENABLED")
	viper.BindEnv("kafka.brokers", "PRESENCE_KAFKA_BROKERS")
	viper.BindEnv("kafka.topic", "PRESENCE_KAFKA_TOPIC")

	// Auth
	viper.BindEnv("auth.jwksUrl", "PRESENCE_AUTH_JWKS_URL")
	viper.BindEnv("auth.issuer", "PRESENCE_AUTH_ISSUER")
	viper.BindEnv("auth.tokenQueryParam", "PRESENCE_AUTH_TOKEN_PARAM")

	// Presence
	viper.BindEnv("presence.timeoutMs", "PRESENCE_TIMEOUT_MS")
	viper.BindEnv("presence.sweepIntervalMs", "PRESENCE_SWEEP_INTERVAL_MS")

	// Logging
	viper.BindEnv("log.level", "PRESENCE_LOG_LEVEL")
}
