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

	"teamhub/api/internal/app"
	"teamhub/api/internal/blob"
	"teamhub/api/internal/config"
	"teamhub/api/internal/email"
	"teamhub/api/internal/search"
	"teamhub/api/internal/session"
	"teamhub/api/internal/store"
)

func main() {
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

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}
	go searchService.ReindexAllFromPG(ctx)

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if emailService.IsConfigured() {
		log.Printf("Email sending enabled via %s", cfg.SMTPHost)
	} else {
		log.Printf("Email not configured, verification tokens returned in responses")
	}

	var blobService *blob.Service
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobService, err = blob.NewService(ctx, blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		log.Printf("Attachment uploads enabled via %s", cfg.MinioEndpoint)
	} else {
		log.Printf("Attachment uploads disabled (MINIO_ENDPOINT not set)")
	}

	var redisStore *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: redis unavailable, falling back to PostgreSQL sessions: %v", err)
			redisStore = nil
		} else {
			log.Printf("Using Redis for refresh token storage")
			defer redisStore.Close()
		}
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
	}

	service := app.NewWithDeps(cfg, dataStore, redisStore, searchService, emailService, blobService)

	// Presence decay runs on a timer in-process; the guarded endpoint
	// exists for external schedulers.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if swept, err := service.SweepPresence(sweepCtx); err != nil {
					log.Printf("presence sweep failed: %v", err)
				} else if swept > 0 {
					log.Printf("presence sweep: %d users marked offline", swept)
				}
			}
		}
	}()

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
		log.Printf("TeamHub API listening on %s", cfg.Addr)
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
