package config

import "github.com/spf13/viper"

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 15)
	viper.SetDefault("server.writeTimeout", 15)

	// Redis
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 100)
	viper.SetDefault("redis.poolTimeout", 5)

	// Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "presence")
	viper.SetDefault("postgres.database", "presence")
	viper.SetDefault("postgres.sslMode", "require")

	// Kafka (activity history)
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.topic", "user-activity-history")

	// Auth
	viper.SetDefault("auth.tokenQueryParam", "Authorization")

	// Presence
	viper.SetDefault("presence.timeoutMs", 90000)
	viper.SetDefault("presence.sweepIntervalMs", 30000)

	// WebSocket
	viper.SetDefault("websocket.messageSizeLimit", 4096)
	viper.SetDefault("websocket.handshakeTimeout", 10)
	viper.SetDefault("websocket.pingInterval", 25)
	viper.SetDefault("websocket.writeTimeout", 10)

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", false)
}
