package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/auth"
	"github.com/PageNow/presence-api/config"
	"github.com/PageNow/presence-api/graph"
	"github.com/PageNow/presence-api/history"
	"github.com/PageNow/presence-api/metrics"
	"github.com/PageNow/presence-api/presence"
	"github.com/PageNow/presence-api/server"
	"github.com/PageNow/presence-api/store"
	ws "github.com/PageNow/presence-api/websocket"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to initialize config")
	}
	cfg := config.Get()

	log := newLogger(&cfg.Log)
	log.Info().Str("environment", env).Msg("starting presence-api")

	// Shared state store
	redisClient, err := store.NewRedisClient(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.PoolTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	st := store.NewRedisStore(redisClient)

	// Social graph
	friendGraph, err := graph.NewPostgres(graph.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, log.With().Str("component", "graph").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer friendGraph.Close()

	// Activity history sink
	var recorder presence.HistoryRecorder = history.Nop{}
	if cfg.Kafka.Enabled {
		kafkaRecorder, err := history.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			log.With().Str("component", "history").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka history recorder")
		}
		defer kafkaRecorder.Close()
		recorder = kafkaRecorder
	}

	// Token verification
	verifier, err := auth.NewJWKSVerifier(cfg.Auth.JWKSURL, cfg.Auth.Issuer,
		log.With().Str("component", "auth").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token verifier")
	}
	defer verifier.Close()

	// Presence core
	manager := ws.NewManager(log.With().Str("component", "manager").Logger())
	registry := presence.NewRegistry(st)
	activity := presence.NewActivity(st)
	liveness := presence.NewLiveness(st)
	notifier := presence.NewNotifier(registry, manager,
		log.With().Str("component", "notifier").Logger())
	coordinator := presence.NewCoordinator(st, registry, activity, liveness, notifier,
		friendGraph, recorder, log.With().Str("component", "coordinator").Logger())

	sweeper := presence.NewSweeper(coordinator,
		time.Duration(cfg.Presence.TimeoutMs)*time.Millisecond,
		time.Duration(cfg.Presence.SweepIntervalMs)*time.Millisecond,
		log.With().Str("component", "sweeper").Logger())
	go sweeper.Run(ctx)

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path,
			log.With().Str("component", "metrics").Logger())
	}

	handler := ws.NewHandler(manager, coordinator, verifier, &cfg.Auth, &cfg.WebSocket,
		log.With().Str("component", "websocket").Logger())
	api := server.NewAPI(coordinator, verifier, log.With().Str("component", "api").Logger())
	srv := server.NewServer(&cfg.Server, handler.HandleWebSocket, api,
		log.With().Str("component", "server").Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	manager.CloseAll("server shutting down")
	log.Info().Msg("presence-api stopped")
}

func newLogger(cfg *config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := zerolog.New(os.Stdout)
	if cfg.Pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return out.Level(level).With().Timestamp().Logger()
}
