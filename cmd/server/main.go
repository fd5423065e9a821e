package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sofra-app/api/internal/config"
	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/notify"
	"github.com/sofra-app/api/internal/payment"
	"github.com/sofra-app/api/internal/router"
	"github.com/sofra-app/api/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	runMigrations(cfg)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Redis only accelerates webhook dedup; the DB constraint is the
		// real guard, so a missing Redis is not fatal.
		log.Printf("WARNING: redis unavailable at %s: %v", cfg.RedisAddr, err)
		rdb = nil
	}

	hub := ws.NewHub()
	go hub.Run()

	gateway := payment.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey)
	sender := notify.NewHTTPSender(cfg.PushSenderURL, cfg.PushSenderKey)

	r := router.New(cfg, queries, pool, rdb, hub, gateway, sender)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}

func runMigrations(cfg *config.Config) {
	m, err := migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to init migrations: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations up to date")
}
