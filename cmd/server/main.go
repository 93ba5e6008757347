// Command server is the composition root: it wires configuration,
// Postgres (the durable mirror), Redis (the fast store and pub/sub
// fan-out), every session-lifecycle subsystem, and the HTTP/WebSocket
// surface together, then serves until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/audit"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/config"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/handler"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/metrics"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/recovery"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/repository"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/submission"
	"github.com/dinhkhaphancs/quiz-orchestration-core/pkg/auth"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.NewPostgresDB(cfg.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()
	if err := repository.RunMigrations(db, "file://internal/repository/migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("connected to postgres")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.GetAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	quizRepo := repository.NewPostgresQuizRepository(db)
	sessionRepo := repository.NewPostgresSessionRepository(db)
	participantRepo := repository.NewPostgresParticipantRepository(db)
	answerRepo := repository.NewPostgresAnswerRepository(db)
	auditRepo := repository.NewPostgresAuditLogRepository(db)

	store := faststore.New(rdb)
	router := fanout.NewRouter(rdb, logger)
	auditLogger := audit.New(auditRepo, logger)
	metricsBroadcaster := metrics.New(router, logger, cfg.Metrics.BroadcastInterval)

	registry := handler.NewRegistry(store, router, auditLogger, metricsBroadcaster, logger, cfg.Session, sessionRepo, participantRepo, answerRepo)

	onAllAnswered := func(sessionID, questionID string) {
		if actor, ok := registry.Get(sessionID); ok {
			actor.NotifyAllAnswered(questionID)
		}
	}
	submissionPipeline := submission.New(store, router, logger, cfg.Session.ReconnectGraceWindow, onAllAnswered)
	recoveryService := recovery.New(store, router, auditLogger, logger, registry.Get, cfg.Session.ReconnectGraceWindow)

	jwtManager := auth.NewJWTManager(cfg.JWT)

	sessionHandler := handler.NewSessionHandler(store, quizRepo, sessionRepo, registry, jwtManager, logger)
	wsHandler := handler.NewWSHandler(registry, router, jwtManager, submissionPipeline, recoveryService, logger)

	ginRouter := handler.SetupRouter(sessionHandler, wsHandler)
	ginRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      ginRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exiting")
}
