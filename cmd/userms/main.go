// User/authentication service for the logistics platform.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/example/levelsliving/internal/config"
	"github.com/example/levelsliving/internal/dbmigrate"
	"github.com/example/levelsliving/internal/middleware"
	"github.com/example/levelsliving/internal/revocation"
	"github.com/example/levelsliving/internal/token"
	"github.com/example/levelsliving/internal/userms"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewUser()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store userms.Store
	switch cfg.DBAdapter {
	case "sqlite":
		s, err := userms.NewSQLiteStore(cfg.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		defer s.Close()
		store = s
	case "postgres":
		dsn, err := cfg.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}
		log.Println("Applying database migrations...")
		if err := dbmigrate.Apply(cfg.MigrationsDir, dsn); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		p, err := userms.NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		defer p.Close()
		store = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		store = userms.NewMemStore()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", cfg.DBAdapter)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	registry := revocation.NewRedis(rdb, time.Second)
	if err := registry.Ping(context.Background()); err != nil {
		// Logout will fail until redis comes back; validation fails open.
		log.Printf("redis unreachable at startup: %v", err)
	} else {
		log.Println("Redis connected successfully")
	}

	tokens := token.New([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, registry)
	auth := userms.NewAuthenticator(store, cfg.MaxLoginAttempts, cfg.LockoutDuration)
	limiter := middleware.NewIPRateLimiter(cfg.LoginRatePerMinute)
	app := userms.NewApp(store, auth, tokens, registry, limiter)

	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + cfg.ServicePort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Println("Starting user service on", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("Server exited properly")
}
