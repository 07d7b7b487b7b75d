package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hive-api/internal/config"
	"github.com/hive-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/hive-api/internal/infrastructure/jwt"
	"github.com/hive-api/internal/infrastructure/memory"
	mongoinfra "github.com/hive-api/internal/infrastructure/mongo"
	"github.com/hive-api/internal/infrastructure/smtp"
	"github.com/hive-api/internal/infrastructure/sns"
	transporthttp "github.com/hive-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogger(cfg)

	ctx := context.Background()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("JWT provider not available", "err", err)
		os.Exit(1)
	}

	deps := &transporthttp.Deps{
		Mailer:      smtp.NewMailer(cfg),
		JWTProvider: jwtProvider,
	}
	closeStore, err := wireStore(ctx, cfg, deps)
	if err != nil {
		slog.Error("store not available", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// Friend events are optional; without a topic they are dropped.
	if cfg.FriendEventsTopicARN != "" {
		if pub, err := sns.NewPublisher(cfg); err == nil {
			deps.Publisher = pub
		} else {
			slog.Warn("SNS publisher not available", "err", err)
		}
	}

	router, stopRouter := transporthttp.NewRouter(cfg, deps)
	defer stopRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	slog.Info("server stopped")
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

// wireStore fills the repositories of deps for the configured driver and
// returns a function that releases the connection.
func wireStore(ctx context.Context, cfg *config.Config, deps *transporthttp.Deps) (func(), error) {
	switch cfg.DBDriver {
	case "dynamo":
		client := dynamo.NewClient(cfg)
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		deps.UserRepo = dynamo.NewUserRepo(client, cfg.DynamoTables.Users)
		deps.SessionRepo = dynamo.NewSessionRepo(client, cfg.DynamoTables.Sessions)
		deps.OTPRepo = dynamo.NewOTPRepo(client, cfg.DynamoTables.OTPs)
		return func() {}, nil
	case "mongo":
		client, err := mongoinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB)
		mongoinfra.Bootstrap(ctx, db)
		deps.UserRepo = mongoinfra.NewUserRepo(client, db)
		deps.SessionRepo = mongoinfra.NewSessionRepo(db)
		deps.OTPRepo = mongoinfra.NewOTPRepo(db)
		return func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Warn("mongo disconnect failed", "err", err)
			}
		}, nil
	case "memory":
		slog.Warn("using the in-memory store; data is lost on restart")
		deps.UserRepo = memory.NewUserRepo()
		deps.SessionRepo = memory.NewSessionRepo()
		deps.OTPRepo = memory.NewOTPRepo()
		return func() {}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}
