package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quarterly/api/internal/app"
	"quarterly/api/internal/blob"
	"quarterly/api/internal/config"
	"quarterly/api/internal/identity"
	"quarterly/api/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	migrator := store.NewMigrator(db, cfg.MigrationsDir)

	var provider identity.Provider
	switch cfg.AuthMode {
	case "public":
		provider = identity.NewPublicProvider(cfg.OwnerOpenID, cfg.OwnerName)
	case "session":
		var registry identity.Registry
		if strings.TrimSpace(cfg.RedisURL) != "" {
			log.Printf("Using Redis for session storage")
			redisRegistry, err := identity.NewRedisRegistry(cfg.RedisURL)
			if err != nil {
				log.Fatalf("redis connection failed: %v", err)
			}
			defer redisRegistry.Close()
			registry = redisRegistry
		} else {
			log.Printf("Using PostgreSQL for session storage")
			registry = identity.NewPostgresRegistry(dataStore)
		}
		provider = identity.NewSessionProvider(registry)
	default:
		log.Fatalf("unknown AUTH_MODE %q", cfg.AuthMode)
	}

	var blobs *blob.Service
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err = blob.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			log.Fatalf("minio bucket setup failed: %v", err)
		}
	} else {
		log.Printf("WARNING: MinIO not configured, audio uploads disabled")
	}

	var blobStore app.BlobStore
	if blobs != nil {
		blobStore = blobs
	}
	service := app.New(cfg, dataStore, provider, blobStore, migrator)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Quarterly review API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
