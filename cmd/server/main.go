package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/config"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/database"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/event"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/handler"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/logger"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/metrics"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/repository"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/router"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/service"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/timer"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/validator"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("session_store", cfg.SessionStore).
		Msg("Starting exam session engine")

	validator.Setup()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	var pool *pgxpool.Pool
	if cfg.SessionStore == config.StoreDriverPostgres {
		if cfg.AutoMigrate {
			if err := database.MigrateUp(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		}
		var err error
		pool, err = database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	// Required alongside Postgres; optional in memory mode.
	var rdb *redis.Client
	if client, err := database.NewRedisClient(ctx, cfg, log); err != nil {
		if pool != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Warn().Err(err).Msg("Redis unavailable, running without cache or relay")
	} else {
		rdb = client
		defer rdb.Close()
	}

	// ─── Stores ────────────────────────────────────────────────────────
	var (
		store     repository.SessionStore
		questions service.QuestionBank
	)
	if pool != nil {
		store = repository.NewExamSessionRepository(pool)
		questions = service.NewQuestionBankService(repository.NewQuestionRepository(pool), rdb, cfg.QuestionCacheTTL, log)
	} else {
		store = repository.NewMemorySessionStore()
		questions = service.StaticQuestionBank{}
	}

	// ─── Event Bus & Timers ────────────────────────────────────────────
	bus := event.NewBus(cfg.EventBufferSize, log)
	timers := timer.NewCoordinator(timer.Config{Tick: cfg.TimerTick, Publisher: bus, Log: log})

	sessionService := service.NewExamSessionService(service.ExamSessionConfig{
		Store:              store,
		Questions:          questions,
		Timers:             timers,
		Bus:                bus,
		SecondsPerQuestion: cfg.SecondsPerQuestion,
		Log:                log,
	})

	g, gctx := errgroup.WithContext(ctx)

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	if rdb != nil {
		bus.Handle(event.NewRedisRelay(rdb, log).Handle)
	}
	if pool != nil && rdb != nil {
		resultsWorker := worker.NewResultsWorker(repository.NewSessionResultRepository(pool), rdb, log)
		bus.Handle(resultsWorker.Enqueue)
		g.Go(func() error {
			resultsWorker.Start(gctx)
			return nil
		})

		monitorService := service.NewMonitorService(repository.NewMonitorRepository(pool))
		handlers.Monitor = handler.NewMonitorHandler(rdb, monitorService, log)
	}

	// Timed sessions that were running before a restart get their countdown back.
	if err := sessionService.RestoreTimers(ctx); err != nil {
		log.Error().Err(err).Msg("Timer restore incomplete")
	}

	// ─── HTTP Server ───────────────────────────────────────────────────
	r := router.SetupRouter(service.NewAuthService(cfg), handlers, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// 1. Stop accepting requests; open streams end with their contexts.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		// 2. Halt countdowns. Anchors are persisted, so restart resumes them.
		timers.Shutdown()
		// 3. Let in-flight handlers (relay, results enqueue) finish.
		bus.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}
