package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/lumierelabs/prewedding-api/internal/config"
	"github.com/lumierelabs/prewedding-api/internal/database"
	"github.com/lumierelabs/prewedding-api/internal/httpapi"
	"github.com/lumierelabs/prewedding-api/internal/imagegen"
	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/internal/service"
	"github.com/lumierelabs/prewedding-api/internal/storage"
	"github.com/lumierelabs/prewedding-api/internal/watermark"
	"github.com/lumierelabs/prewedding-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	templates := repository.NewTemplateRepository(db)
	tokens := repository.NewTokenRepository(db)
	generations := repository.NewGenerationRepository(db)
	contacts := repository.NewContactRepository(db)

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	generator := imagegen.NewClient(cfg, logr)
	marker := watermark.New(watermark.Config{
		LogoPath:        cfg.WatermarkLogoPath,
		LogoSizePercent: cfg.WatermarkLogoSizePct,
		Padding:         cfg.WatermarkPadding,
		Opacity:         cfg.WatermarkOpacity,
		AddBackground:   cfg.WatermarkAddBackground,
		TileText:        cfg.WatermarkTileText,
		TileSpacing:     cfg.WatermarkTileSpacing,
	}, logr)

	authSvc := service.NewAuthService(cfg, users)
	entitlement := service.NewEntitlementService(tokens)
	generation := service.NewGenerationService(logr, templates, tokens, generations, entitlement, generator, marker, uploader)
	payments := service.NewPaymentService(cfg, logr, tokens, templates)
	contactSvc := service.NewContactService(contacts)

	var guard *httpapi.AbuseGuard
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		guard = httpapi.NewAbuseGuard(rdb, logr, cfg.AbuseMaxFailures, cfg.AbuseBlockDuration)
	} else {
		logr.Warn("REDIS_URL not set, abuse guard disabled")
	}

	server := httpapi.NewServer(cfg, logr, authSvc, templates, entitlement, generation, payments, contactSvc, guard)

	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}

	logr.Info("shutdown complete")
}
