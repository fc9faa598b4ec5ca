package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/cmd/middleware"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/api"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/api/handlers"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/configuration"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/coordinator"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/engine"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/filestore"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/oauth"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/services"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/storage"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/youtube"
)

func main() {
	cfg, err := configuration.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when configured, in-memory otherwise.
	var store storage.Store
	if cfg.Database.Host != "" {
		pg := &storage.PostgresStore{}
		if err := pg.Connect(cfg.Database.ConnectionString()); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		store = pg
		log.Println("Connected to Postgres")
	} else {
		store = storage.NewMemoryStore()
		log.Println("DB_HOST not set, using in-memory store")
	}

	minioSvc, err := services.NewMinioService(
		cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
		cfg.MinIO.BucketName, cfg.MinIO.UseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	var events *services.EventPublisher
	if cfg.NATSURL != "" {
		events, err = services.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Printf("Warning: NATS unavailable, events disabled: %v", err)
		}
	}
	defer events.Close()

	scanner := services.NewScanner(cfg.CLAMAVURL, minioSvc, store)
	if scanner == nil {
		log.Println("CLAMAV_URL not set, virus scanning disabled")
	}

	files := filestore.New(store, minioSvc, events, scannerOrNil(scanner),
		cfg.Upload.MaxFileSize, cfg.Upload.ReferenceTTL)
	files.StartReaper(ctx, cfg.Upload.ReaperInterval)

	tokens := oauth.NewManager(store,
		cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURI,
		cfg.OAuth.RefreshMargin)

	remote := youtube.NewClient(cfg.Upload.ChunkTimeout)
	eng := engine.New(remote, tokens, engine.Config{
		ChunkSize:      cfg.Upload.ChunkSize,
		MaxRetries:     cfg.Upload.MaxRetries,
		BandwidthLimit: cfg.Upload.BandwidthLimit,
	})

	coord := coordinator.New(store, files, eng, events, coordinator.Config{
		MaxConcurrent:     int(cfg.Upload.MaxConcurrent),
		SchedulerInterval: cfg.Upload.SchedulerInterval,
	})
	coord.Run(ctx)

	if cfg.OIDCIssuerURL != "" {
		if err := middleware.InitAuth(cfg.OIDCIssuerURL); err != nil {
			log.Fatalf("Failed to initialize OIDC: %v", err)
		}
	} else {
		log.Println("OIDC_ISSUER_URL not set, trusting X-User-ID header (dev mode)")
	}

	r := gin.Default()
	api.RegisterRoutes(r, handlers.New(files, coord, tokens), middleware.RequireAuth())

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: r}
	go func() {
		log.Printf("Server starting on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// scannerOrNil keeps the typed-nil *Scanner from masquerading as a non-nil
// filestore.Scanner interface value.
func scannerOrNil(s *services.Scanner) filestore.Scanner {
	if s == nil {
		return nil
	}
	return s
}
