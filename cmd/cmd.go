package cmd

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gnarhub-backend/internal/config"
	"gnarhub-backend/internal/handlers"
	"gnarhub-backend/internal/notify"
	"gnarhub-backend/internal/repository"
	"gnarhub-backend/internal/repository/memory"
	"gnarhub-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	wsHub := services.NewWSHub()

	// Notification sinks
	sinks := []notify.Sink{notify.LogSink{}}
	var closers []func() error

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinks = append(sinks, kafkaSink)
		closers = append(closers, kafkaSink.Close)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka notifications enabled")
	}

	if cfg.Redis.Addr != "" {
		// events fan out through redis so every instance's hub sees them
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		sinks = append(sinks, notify.NewRedisSink(rdb, cfg.Redis.Channel))
		closers = append(closers, rdb.Close)

		relay := notify.NewRedisRelay(rdb, cfg.Redis.Channel, wsHub)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Redis relay stopped")
			}
		}()
	} else {
		sinks = append(sinks, wsHub)
	}

	if cfg.AWS.S3Bucket != "" {
		s3Client, err := notify.NewS3Client(ctx, notify.S3Options{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.S3Bucket,
			Prefix:    cfg.AWS.ArchivePrefix,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		sinks = append(sinks, notify.NewS3Archive(s3Client, cfg.AWS.S3Bucket, cfg.AWS.ArchivePrefix))
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Event archive enabled")
	}

	dispatcher := notify.NewDispatcher(notify.Options{
		QueueSize:       cfg.Notify.QueueSize,
		Workers:         cfg.Notify.Workers,
		DeliveryTimeout: cfg.Notify.DeliveryTimeout,
	}, sinks...)

	// Initialize services
	userService := services.NewUserService(store, cfg.JWT.Secret, cfg.Auth.AdminEmails)
	sessionService := services.NewSessionService(store, dispatcher)
	conversationService := services.NewConversationService(store)
	bookingService := services.NewBookingService(store, conversationService, dispatcher)
	reviewService := services.NewReviewService(store)

	if cfg.Reminders.Enabled {
		go services.NewReminderJob(sessionService, cfg.Reminders.DaysAhead).Run(ctx, cfg.Reminders.Interval)
	}

	router := handlers.NewRouter(handlers.Services{
		Users:         userService,
		Sessions:      sessionService,
		Bookings:      bookingService,
		Conversations: conversationService,
		Reviews:       reviewService,
		Hub:           wsHub,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("store", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain queued notifications before closing the sinks they go to
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Notification queue not drained")
	}
	wsHub.CloseAll()
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("Failed to close notification sink")
		}
	}

	log.Info().Msg("Server exited")
}

// openStore connects the configured persistence backend
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func()) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}

	// Connect to database
	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Test database connection
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	store := repository.NewPostgresStore(db, cfg.Booking.TxMaxAttempts)
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		log.Info().Msg("Database schema applied")
	}
	return store, db.Close
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
