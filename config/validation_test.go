package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 15, WriteTimeout: 15},
		Redis:    RedisConfig{Address: "localhost:6379"},
		Postgres: PostgresConfig{Host: "localhost", Database: "presence"},
		Kafka:    KafkaConfig{Enabled: false},
		Auth: AuthConfig{
			JWKSURL:         "http://localhost/jwks",
			Issuer:          "http://localhost",
			TokenQueryParam: "Authorization",
		},
		Presence:  PresenceConfig{TimeoutMs: 90000, SweepIntervalMs: 30000},
		WebSocket: WebSocketConfig{MessageSizeLimit: 4096, HandshakeTimeout: 10, PingInterval: 25, WriteTimeout: 10},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *AppConfig) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing redis address",
			mutate:  func(c *AppConfig) { c.Redis.Address = "" },
			wantErr: "redis address",
		},
		{
			name:    "missing postgres database",
			mutate:  func(c *AppConfig) { c.Postgres.Database = "" },
			wantErr: "postgres host and database",
		},
		{
			name: "kafka enabled without brokers",
			mutate: func(c *AppConfig) {
				c.Kafka.Enabled = true
				c.Kafka.Brokers = nil
			},
			wantErr: "kafka brokers",
		},
		{
			name: "kafka enabled with brokers",
			mutate: func(c *AppConfig) {
				c.Kafka.Enabled = true
				c.Kafka.Brokers = []string{"localhost:9092"}
			},
		},
		{
			name:    "missing jwks url",
			mutate:  func(c *AppConfig) { c.Auth.JWKSURL = "" },
			wantErr: "auth.jwksUrl",
		},
		{
			name:    "missing issuer",
			mutate:  func(c *AppConfig) { c.Auth.Issuer = "" },
			wantErr: "auth.issuer",
		},
		{
			name:    "zero presence timeout",
			mutate:  func(c *AppConfig) { c.Presence.TimeoutMs = 0 },
			wantErr: "presence timeout",
		},
		{
			name:    "zero sweep interval",
			mutate:  func(c *AppConfig) { c.Presence.SweepIntervalMs = 0 },
			wantErr: "sweep interval",
		},
		{
			name: "sweep interval coarser than timeout is allowed",
			mutate: func(c *AppConfig) {
				c.Presence.TimeoutMs = 1000
				c.Presence.SweepIntervalMs = 60000
			},
		},
		{
			name:    "zero message size limit",
			mutate:  func(c *AppConfig) { c.WebSocket.MessageSizeLimit = 0 },
			wantErr: "message size limit",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}
