package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sweetshop/internal/config"
	"sweetshop/internal/database"
	"sweetshop/internal/metrics"
	"sweetshop/internal/repositories"
	"sweetshop/internal/server"
	"sweetshop/internal/services"
	"sweetshop/pkg/logger"
	"sweetshop/pkg/rabbitmq"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// store bundles a repository with the hooks main needs around it.
type store struct {
	repo  repositories.SweetRepository
	ping  func(ctx context.Context) error
	close func() error
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open store")
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error().Err(err).Msg("error closing store")
		}
	}()
	log.Info().Str("driver", cfg.DBDriver).Msg("store ready")

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// --- RabbitMQ (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
		}, logger.Named(log, "rabbitmq"))
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, inventory events disabled")
		} else {
			defer mqClient.Close()
			publisher = mqClient

			alerter := services.NewStockAlerter(cfg.LowStockThreshold, m, logger.Named(log, "stock_alerter"))
			if err := mqClient.Consume(ctx, rabbitmq.DefaultQueue, alerter.HandleEvent); err != nil {
				log.Warn().Err(err).Msg("failed to start low stock consumer")
			}
		}
	}

	// --- Services ---
	sweetService := services.NewSweetService(st.repo, publisher, m, logger.Named(log, "sweet_service"))

	var authService *services.AuthService
	if cfg.Auth.Enabled {
		authService = services.NewAuthService(cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		log.Info().Str("username", cfg.Auth.AdminUsername).Msg("staff auth enabled")
	}

	// --- HTTP ---
	app := server.NewApp(server.Options{
		SweetService:   sweetService,
		AuthService:    authService,
		Gatherer:       registry,
		Log:            logger.Named(log, "http"),
		AccessLog:      os.Stdout,
		HealthCheck:    st.ping,
		StoreName:      cfg.DBDriver,
		StaticDir:      cfg.StaticDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	go func() {
		log.Info().Str("port", cfg.AppPort).Msg("starting server")
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server gracefully stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.DBDriver {
	case database.DriverPostgres, database.DriverSQLite:
		db, err := database.OpenGORM(cfg.DBDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &store{
			repo:  repositories.NewGORMSweetRepository(db),
			ping:  sqlDB.PingContext,
			close: func() error { return database.CloseGORM(db) },
		}, nil

	case database.DriverMongo:
		client, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repositories.EnsureMongoSchema(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &store{
			repo:  repositories.NewMongoSweetRepository(db),
			ping:  func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close: func() error { return client.Disconnect(context.Background()) },
		}, nil

	case database.DriverMemory:
		return &store{
			repo:  repositories.NewMemorySweetRepository(),
			close: func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.DBDriver)
}
