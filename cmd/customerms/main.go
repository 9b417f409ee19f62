// Customer-record service for the logistics platform.
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
	"github.com/example/levelsliving/internal/customerms"
	"github.com/example/levelsliving/internal/middleware"
	"github.com/example/levelsliving/internal/revocation"
	"github.com/example/levelsliving/internal/token"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewCustomer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store customerms.Store
	var users middleware.UserResolver
	switch cfg.DBAdapter {
	case "postgres":
		dsn, err := cfg.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}
		// Schema is owned by the user service; this one expects it present.
		p, err := customerms.NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		defer p.Close()
		store, users = p, p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		m := customerms.NewMemStore()
		store, users = m, m
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, memory)", cfg.DBAdapter)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	registry := revocation.NewRedis(rdb, time.Second)
	if err := registry.Ping(context.Background()); err != nil {
		log.Printf("redis unreachable at startup: %v", err)
	} else {
		log.Println("Redis connected successfully")
	}

	tokens := token.New([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, registry)
	app := customerms.NewApp(store, users, tokens, registry, cfg.DefaultPageSize, cfg.MaxPageSize)

	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + cfg.ServicePort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Println("Starting customer service on", cfg.ServicePort)
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
