package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"rehearsal-scheduler-api/internal/engine"
	"rehearsal-scheduler-api/internal/httpapi"
	"rehearsal-scheduler-api/internal/notify"
	"rehearsal-scheduler-api/internal/store"
	"rehearsal-scheduler-api/internal/store/memory"
	"rehearsal-scheduler-api/internal/store/postgres"
)

const sweepInterval = time.Minute

func main() {
	_ = godotenv.Load()

	log := newLogger()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	port := env("PORT", "8080")

	st, cleanup := openStore(log)
	defer cleanup()

	notifier := newNotifier(log)
	eng := engine.New(st, engine.StoreGate{Store: st}, engine.Config{
		Notifier: notifier,
		Logger:   log.With().Str("component", "engine").Logger(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go eng.RunSweeper(ctx, sweepInterval)

	h := httpapi.New(eng, st, secret, log.With().Str("component", "http").Logger())
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: h.Routes(),
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// openStore picks postgres when DATABASE_URL is set, otherwise the
// in-memory store (dev mode, nothing survives a restart).
func openStore(log zerolog.Logger) (store.Store, func()) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping")
	}
	log.Info().Msg("connected to postgres")

	if migration, err := os.ReadFile("db/migrations/001_init.sql"); err != nil {
		log.Warn().Err(err).Msg("migration file not found, skipping")
	} else if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
		log.Warn().Err(err).Msg("migration")
	} else {
		log.Info().Msg("migration applied")
	}

	return postgres.New(pool), pool.Close
}

func newNotifier(log zerolog.Logger) notify.Notifier {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return notify.Log{Logger: log.With().Str("component", "events").Logger()}
	}
	n, err := notify.NewMQTT(broker, env("MQTT_CLIENT_ID", "rehearsal-scheduler"), log.With().Str("component", "mqtt").Logger())
	if err != nil {
		// events are best-effort, a dead broker must not stop the server
		log.Warn().Err(err).Msg("mqtt unavailable, falling back to log events")
		return notify.Log{Logger: log.With().Str("component", "events").Logger()}
	}
	return n
}

func newLogger() zerolog.Logger {
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(writer).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
