// cmd/server/main.go
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
	"github.com/redis/go-redis/v9"

	"github.com/mediaseal/mediaseal-backend/internal/config"
	"github.com/mediaseal/mediaseal-backend/internal/database"
	"github.com/mediaseal/mediaseal-backend/internal/hashing"
	"github.com/mediaseal/mediaseal-backend/internal/jobs"
	"github.com/mediaseal/mediaseal-backend/internal/media"
	"github.com/mediaseal/mediaseal-backend/internal/router"
	"github.com/mediaseal/mediaseal-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Initialize job queue. Redis when configured, in-process otherwise.
	var queue jobs.Queue
	var statuses jobs.StatusStore
	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		queue = jobs.NewRedisQueue(client)
		statuses = jobs.NewRedisStatusStore(client)
		log.Printf("Using redis job queue at %s", addr)
	} else {
		queue = jobs.NewMemoryQueue()
		statuses = jobs.NewMemoryStatusStore()
		log.Println("REDIS_HOST not set, using in-process job queue")
	}

	// Start the verification worker pool
	engine := hashing.NewEngine()
	if cfg.Hashing.PerceptualStride > 0 {
		engine.PerceptualStride = cfg.Hashing.PerceptualStride
	}
	storage, err := services.NewStorageService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}
	notifier := services.NewNotificationService(cfg)
	decoder := media.NewStreamDecoder()

	worker := jobs.NewWorker(db, queue, statuses, engine, decoder,
		storage, notifier, jobs.WorkerOptions{
			Timeout:     time.Duration(cfg.Worker.TimeoutMinutes) * time.Minute,
			MaxAttempts: cfg.Worker.MaxAttempts,
			BackoffBase: time.Duration(cfg.Worker.BackoffSeconds) * time.Second,
			PollTimeout: time.Duration(cfg.Worker.PollSeconds) * time.Second,
		})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		worker.Start(workerCtx, cfg.Worker.Count)
		close(workersDone)
	}()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(db, cfg, engine, decoder, storage, notifier, queue, statuses)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop accepting new jobs, then drain HTTP connections
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	select {
	case <-workersDone:
	case <-ctx.Done():
		log.Println("Timed out waiting for workers to drain")
	}

	log.Println("Server exited")
}
