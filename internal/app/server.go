// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"tenantcore-service/internal/config"
	"tenantcore-service/internal/db"
	"tenantcore-service/internal/events"
	accessHandler "tenantcore-service/internal/handlers/access"
	authHandler "tenantcore-service/internal/handlers/auth"
	eventsHandler "tenantcore-service/internal/handlers/events"
	planHandler "tenantcore-service/internal/handlers/plan"
	subscriptionHandler "tenantcore-service/internal/handlers/subscription"
	"tenantcore-service/internal/middleware"
	"tenantcore-service/internal/pkg/jwt"
	"tenantcore-service/internal/pkg/session"
	"tenantcore-service/internal/repository/postgres"
	accessService "tenantcore-service/internal/service/access"
	authService "tenantcore-service/internal/service/auth"
	planService "tenantcore-service/internal/service/plan"
	subscriptionService "tenantcore-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client
	sweeper     *subscriptionService.ExpirationSweeper
	hubCancel   context.CancelFunc

	authService *authService.AuthService
}

func NewServer() *Server {
	cfg := config.Load()
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(db.PostgresConfig{
		DSN:      s.cfg.PostgresDSN,
		MaxConns: s.cfg.PostgresMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.redisClient = redisClient
	logger.Info("connected to postgres and redis")

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	identityRepo := postgres.NewIdentityRepository(dbWrapper)
	planRepo := postgres.NewPlanRepository(dbWrapper)
	planModuleRepo := postgres.NewPlanModuleRepository(dbWrapper)
	subscriptionRepo := postgres.NewSubscriptionRepository(dbWrapper)
	moduleAccessRepo := postgres.NewModuleAccessRepository(dbWrapper)

	// ----- Event Hub -----
	hub := events.NewHub(jwtManager.Verifier, sessionManager, logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	s.hubCancel = hubCancel
	go hub.Run(hubCtx)

	// ----- Services -----
	entitlementCache := accessService.NewRedisEntitlementCache(redisClient)

	authSvc := authService.NewAuthService(identityRepo, jwtManager, sessionManager, rateLimiter, logger)
	s.authService = authSvc

	planSvc := planService.NewPlanService(planRepo, planModuleRepo, logger)
	subscriptionSvc := subscriptionService.NewSubscriptionService(
		subscriptionRepo,
		planRepo,
		planModuleRepo,
		entitlementCache,
		hub,
		logger,
		s.cfg.TrialDays,
	)
	accessSvc := accessService.NewAccessService(
		moduleAccessRepo,
		subscriptionRepo,
		planModuleRepo,
		entitlementCache,
		logger,
	)

	// ----- Expiration Sweeper -----
	s.sweeper = subscriptionService.NewExpirationSweeper(
		subscriptionSvc,
		subscriptionRepo,
		logger,
		s.cfg.SweepInterval,
		s.cfg.SweepBatch,
	)
	go s.sweeper.Run(hubCtx)

	// ----- Initialize Super Admin -----
	if err := s.initializeSuperAdmin(); err != nil {
		logger.Error("failed to initialize super admin", zap.Error(err))
		// Don't fail startup, just log the error
	}

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authSvc)
	planHandlerInst := planHandler.NewPlanHandler(planSvc)
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(subscriptionSvc)
	accessHandlerInst := accessHandler.NewAccessHandler(accessSvc)
	eventsHandlerInst := eventsHandler.NewEventsHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	s.engine.Use(
		middleware.Recovery(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:         authHandlerInst,
		PlanHandler:         planHandlerInst,
		SubscriptionHandler: subscriptionHandlerInst,
		AccessHandler:       accessHandlerInst,
		EventsHandler:       eventsHandlerInst,
		AuthMiddleware:      authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}

	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown stops the sweeper and event hub, then closes the pools.
func (s *Server) Shutdown(ctx context.Context) {
	if s.hubCancel != nil {
		s.hubCancel()
	}
	if s.sweeper != nil {
		s.sweeper.Wait()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		s.logger.Sync()
	}
}

// initializeSuperAdmin creates super admin if it doesn't exist
func (s *Server) initializeSuperAdmin() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := os.Getenv("SUPER_ADMIN_EMAIL")
	password := os.Getenv("SUPER_ADMIN_PASSWORD")
	fullName := os.Getenv("SUPER_ADMIN_NAME")

	if email == "" || password == "" {
		s.logger.Warn("super admin credentials not set, skipping bootstrap")
		return nil
	}
	if fullName == "" {
		fullName = "Super Administrator"
	}

	if len(password) < 8 {
		return fmt.Errorf("super admin password must be at least 8 characters")
	}

	return s.authService.EnsureSuperAdminExists(ctx, email, password, fullName)
}
