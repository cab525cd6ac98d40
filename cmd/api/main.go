package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kidshive/internal/attendance"
	"kidshive/internal/auth"
	"kidshive/internal/child"
	"kidshive/internal/config"
	"kidshive/internal/httpmiddleware"
	"kidshive/internal/queue"
	"kidshive/internal/store"
)

const dailyLogQueueKey = "kidshive:daily-logs"

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// app holds the wired dependencies of the HTTP server.
type app struct {
	cfg        config.App
	db         *store.DB
	redis      *store.Redis
	queue      queue.Queue
	limiter    httpmiddleware.Limiter
	children   *child.Service
	attendance *attendance.Service
	audit      *attendance.AuditLog
}

func newApp(ctx context.Context, cfg config.App) (*app, error) {
	db, err := store.NewDB(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	gdb, err := db.Gorm(cfg.SlowQuery)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("gorm: %w", err)
	}

	a := &app{cfg: cfg, db: db, redis: store.NewRedis(cfg.RedisAddr)}
	a.queue = a.newQueue()
	a.limiter = a.newLimiter()
	a.children = child.NewService(child.NewStore(gdb))
	a.audit = attendance.NewAuditLog(gdb)
	a.attendance = attendance.NewService(attendance.NewRepository(db.Client), a.queue, cfg.Location())
	return a, nil
}

func (a *app) newQueue() queue.Queue {
	switch a.cfg.QueueBackend {
	case "memory":
		return queue.NewInMemory(256)
	case "none":
		return queue.Discard{}
	default:
		if a.redis == nil {
			log.Println("[WARN] QUEUE_BACKEND=redis but REDIS_ADDR is empty; discard events are dropped")
			return queue.Discard{}
		}
		return queue.NewRedisQueue(a.redis.Client, dailyLogQueueKey)
	}
}

func (a *app) newLimiter() httpmiddleware.Limiter {
	if a.cfg.RateLimitBackend == "redis" && a.redis != nil {
		return httpmiddleware.NewRedisWindow(a.redis.Client, a.cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewTokenBucket(a.cfg.RateLimitPerMin, a.cfg.RateLimitPerMin)
}

func (a *app) close() {
	_ = a.redis.Close()
	_ = a.db.Close()
}

func (a *app) router() *gin.Engine {
	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(cors.New(corsConfig(a.cfg.AllowedOrigins)))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		dbHealthy := a.db.Healthy(ctx)
		redisHealthy := a.redis.Healthy(ctx)
		status := http.StatusOK
		if !dbHealthy || (a.redis != nil && !redisHealthy) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "db": dbHealthy, "redis": redisHealthy})
	})

	v1 := r.Group("/v1",
		auth.BearerAuth(a.cfg.JWTSigningKey, a.cfg.JWTIssuer),
		httpmiddleware.RateLimit(a.limiter),
	)
	child.RegisterRoutes(v1, child.NewHandler(a.children))
	attendance.RegisterRoutes(v1, attendance.NewHandler(a.attendance, a.audit), a.children)
	return r
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// deferred after a.close, so it runs first and no audit write is in flight when the DB closes
	defer a.startAuditConsumer(ctx)()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      a.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] starting server on :%s (db=%s queue=%s)", cfg.HTTPPort, cfg.DatabaseDriver, cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("[INFO] shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] server forced shutdown: %v", err)
	}
	log.Println("[INFO] server exited")
	return nil
}

// startAuditConsumer acknowledges discard notifications in-process when the memory queue is
// used, since nothing else can read it. The returned func stops the consumer and waits for it.
func (a *app) startAuditConsumer(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	if a.cfg.QueueBackend != "memory" {
		close(done)
	} else {
		go func() {
			defer close(done)
			if err := a.audit.Run(ctx, a.queue); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[ERROR] in-process audit consumer stopped: %v", err)
			}
		}()
	}
	return func() {
		cancel()
		<-done
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		// browsers reject credentials with a wildcard origin
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
