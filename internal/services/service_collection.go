package services

import (
	"context"
	"fmt"

	"zudlik/internal/cache"
	"zudlik/internal/config"
	"zudlik/internal/database"
	"zudlik/internal/events"
	"zudlik/internal/repositories"

	"go.uber.org/zap"
)

// ServiceCollection wires repositories, infrastructure, and services
// together and owns their lifecycle.
type ServiceCollection struct {
	AuthService         AuthService
	ProblemService      ProblemService
	CommentService      CommentService
	NotificationService NotificationService
	EmailService        EmailService
	FileService         FileService

	Cache    cache.Cache
	Bus      events.Bus
	Logger   *zap.Logger
	Config   *config.Config
	Database *database.Manager

	counterHandler *CounterHandler
}

// NewServiceCollection builds the full service graph, starts the event bus,
// and registers the counter and notification handlers on it.
func NewServiceCollection(
	dbManager *database.Manager,
	cfg *config.Config,
	logger *zap.Logger,
) (*ServiceCollection, error) {
	if dbManager == nil {
		return nil, fmt.Errorf("database manager is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cacheConfig := cache.DefaultConfig()
	if cfg.Redis.URL != "" {
		cacheConfig.Provider = cache.ProviderRedis
		cacheConfig.RedisURL = cfg.Redis.URL
		cacheConfig.RedisPassword = cfg.Redis.Password
		cacheConfig.RedisDB = cfg.Redis.DB
	}
	cacheInstance, err := cache.NewCache(cacheConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	bus := events.NewInMemoryBus(events.DefaultConfig(), logger)
	if err := bus.Start(); err != nil {
		return nil, fmt.Errorf("start event bus: %w", err)
	}

	userRepo := repositories.NewUserRepository(dbManager, logger)
	problemRepo := repositories.NewProblemRepository(dbManager, logger)
	commentRepo := repositories.NewCommentRepository(dbManager, logger)
	notificationRepo := repositories.NewNotificationRepository(dbManager, logger)

	emailService := NewEmailService(cfg.Email, nil, logger)
	fileService, err := NewFileService(cfg.Cloudinary, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("create file service: %w", err)
	}

	authService := NewAuthService(userRepo, emailService, fileService, cfg.Auth, logger)
	problemService := NewProblemService(problemRepo, userRepo, nil, logger)
	commentService := NewCommentService(commentRepo, problemRepo, userRepo, cacheInstance, bus, nil, logger)
	notificationService := NewNotificationService(notificationRepo, problemRepo, commentRepo, cacheInstance, nil, logger)

	counterHandler := NewCounterHandler(problemRepo, commentRepo, logger)
	counterHandler.Subscribe(bus)
	notificationService.Subscribe(bus)

	logger.Info("service collection initialized")

	return &ServiceCollection{
		AuthService:         authService,
		ProblemService:      problemService,
		CommentService:      commentService,
		NotificationService: notificationService,
		EmailService:        emailService,
		FileService:         fileService,
		Cache:               cacheInstance,
		Bus:                 bus,
		Logger:              logger,
		Config:              cfg,
		Database:            dbManager,
		counterHandler:      counterHandler,
	}, nil
}

// Shutdown stops the event bus and closes the cache. The database manager is
// closed by its owner.
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	if err := sc.Bus.Stop(); err != nil {
		sc.Logger.Warn("event bus shutdown failed", zap.Error(err))
	}
	if err := sc.Cache.Close(); err != nil {
		sc.Logger.Warn("cache shutdown failed", zap.Error(err))
	}
	return nil
}
