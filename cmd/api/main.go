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

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/cache"
	"zapchasti.org/internal/catalog"
	"zapchasti.org/internal/config"
	"zapchasti.org/internal/httpapi"
	"zapchasti.org/internal/obs"
	"zapchasti.org/internal/orders"
	"zapchasti.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// Local .env is optional; real deployments set the environment.
	_ = godotenv.Load()
	cfg := config.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	// The catalog cache is optional: without Redis every read goes to
	// the store.
	var cacheClient cache.Client
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			obs.LogError("redis unavailable, running without cache", err, map[string]any{"addr": cfg.RedisAddr})
		} else {
			cacheClient = redisClient
			defer redisClient.Close()
		}
	}

	tokens, err := auth.NewTokens(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	accounts, err := auth.NewAccounts(store)
	if err != nil {
		log.Fatalf("accounts: %v", err)
	}
	catalogSvc, err := catalog.NewService(store, cacheClient, cfg.CacheTTL)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	orderSvc, err := orders.NewService(store, store)
	if err != nil {
		log.Fatalf("orders: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Version:        version,
		Production:     cfg.Production(),
		Tokens:         tokens,
		Accounts:       accounts,
		Identities:     store,
		Catalog:        catalogSvc,
		Orders:         orderSvc,
		AuditLog:       store,
		ReadyProbe:     httpapi.ReadyProbe{DB: store.DB()},
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RatePerSecond:  cfg.RateLimitPerSecond,
		RateBurst:      cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting zapchasti-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
