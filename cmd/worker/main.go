package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kidshive/internal/attendance"
	"kidshive/internal/config"
	"kidshive/internal/queue"
	"kidshive/internal/store"
)

const dailyLogQueueKey = "kidshive:daily-logs"

// Worker acknowledges discarded daily log notifications from the queue in the audit table.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[INFO] shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis, got %q; the memory backend is drained inside the api process", cfg.QueueBackend)
	}

	db, err := store.NewDB(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	gdb, err := db.Gorm(cfg.SlowQuery)
	if err != nil {
		log.Fatalf("gorm init failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	if redisClient == nil {
		log.Fatal("REDIS_ADDR is required for the worker")
	}
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("[WARN] redis at %s not reachable yet; will keep retrying", cfg.RedisAddr)
	}

	metricsSrv := &http.Server{Addr: cfg.WorkerAddr, Handler: metricsMux(db, redisClient), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[WARN] metrics listener: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	audit := attendance.NewAuditLog(gdb)
	q := queue.NewRedisQueue(redisClient.Client, dailyLogQueueKey)

	log.Printf("[INFO] worker started on queue %s, metrics on %s", dailyLogQueueKey, cfg.WorkerAddr)
	if err := audit.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[ERROR] worker stopped: %v", err)
	}
	log.Println("[INFO] worker stopped")
}

func metricsMux(db *store.DB, rdb *store.Redis) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !db.Healthy(r.Context()) || !rdb.Healthy(r.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
