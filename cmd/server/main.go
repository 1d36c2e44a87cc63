// Package main runs the remittance admin portal HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridian-remit/backend/config"
	"github.com/meridian-remit/backend/internal/auth"
	"github.com/meridian-remit/backend/internal/bonusschemes"
	"github.com/meridian-remit/backend/internal/credits"
	"github.com/meridian-remit/backend/internal/merchants"
	"github.com/meridian-remit/backend/internal/middleware"
	"github.com/meridian-remit/backend/internal/promocodes"
	"github.com/meridian-remit/backend/internal/realtime"
	"github.com/meridian-remit/backend/internal/referrals"
	"github.com/meridian-remit/backend/internal/transactions"
	"github.com/meridian-remit/backend/internal/worker"
	"github.com/meridian-remit/backend/pkg/database"
	"github.com/meridian-remit/backend/pkg/queue"
	"github.com/meridian-remit/backend/pkg/redis"
	"github.com/meridian-remit/backend/pkg/response"
	"github.com/meridian-remit/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Merchants
	merchantRepo := merchants.NewRepository(pool)
	merchantHandler := merchants.NewHandler(merchantRepo)

	// Transactions
	txnRepo := transactions.NewRepository(pool)
	txnHandler := transactions.NewHandler(txnRepo)

	// Promo codes
	promoRepo := promocodes.NewRepository(pool)
	promoEvaluator := promocodes.NewEvaluator(promoRepo, txnRepo)
	promoHandler := promocodes.NewHandler(promoRepo, promoEvaluator, jobQueue, hub, logger)

	// Bonus schemes and credit ledger
	schemeRepo := bonusschemes.NewRepository(pool)
	schemeHandler := bonusschemes.NewHandler(schemeRepo, logger)
	creditRepo := credits.NewRepository(pool)
	bonusEvaluator := bonusschemes.NewEvaluator(schemeRepo, creditRepo, txnRepo)
	creditService := credits.NewService(creditRepo, cfg.Portal.CreditCurrency)
	creditHandler := credits.NewHandler(creditService, creditRepo, bonusEvaluator, jobQueue, hub, s3Client, logger)

	// Referral rules
	referralRepo := referrals.NewRepository(pool)
	referralHandler := referrals.NewHandler(referralRepo)

	// Background jobs share the API process unless the standalone worker runs.
	processor := worker.NewProcessor(creditRepo, promoRepo, s3Client, jobQueue, hub, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Portal users (admin only)
		api.POST("/auth/register", middleware.RequireRole("admin"), authHandler.Register)
		api.GET("/auth/me", authHandler.Me)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Promo codes
		api.GET("/promo-codes", promoHandler.List)
		api.POST("/promo-codes", middleware.RequireRole("admin", "operator"), promoHandler.Create)
		api.GET("/promo-codes/:id", promoHandler.GetByID)
		api.PUT("/promo-codes/:id", middleware.RequireRole("admin", "operator"), promoHandler.Update)
		api.PATCH("/promo-codes/:id/status", middleware.RequireRole("admin", "operator"), promoHandler.SetStatus)
		api.DELETE("/promo-codes/:id", middleware.RequireRole("admin"), promoHandler.Delete)
		api.POST("/promo-codes/validate", promoHandler.Validate)
		api.POST("/promo-codes/apply", middleware.RequireRole("admin", "operator"), promoHandler.Apply)
		api.POST("/promo-codes/:id/campaign", middleware.RequireRole("admin", "operator"), promoHandler.SendCampaign)

		// Bonus schemes
		api.GET("/bonus-schemes", schemeHandler.List)
		api.POST("/bonus-schemes", middleware.RequireRole("admin", "operator"), schemeHandler.Create)
		api.GET("/bonus-schemes/:id", schemeHandler.GetByID)
		api.PUT("/bonus-schemes/:id", middleware.RequireRole("admin", "operator"), schemeHandler.Update)
		api.DELETE("/bonus-schemes/:id", middleware.RequireRole("admin"), schemeHandler.Delete)
		api.POST("/bonus-schemes/award", middleware.RequireRole("admin", "operator"), creditHandler.AwardBonus)

		// Credit ledger
		api.GET("/users/:userId/credits", creditHandler.Query)
		api.POST("/credits/adjust", middleware.RequireRole("admin"), creditHandler.ManualAdjust)
		api.POST("/users/:userId/credits/export", creditHandler.RequestExport)
		api.GET("/credit-exports/:id", creditHandler.GetExport)
		api.POST("/credits/expire", middleware.RequireRole("admin"), creditHandler.RunExpiry)

		// Referral rules
		api.GET("/referral-rules", referralHandler.List)
		api.POST("/referral-rules", middleware.RequireRole("admin", "operator"), referralHandler.Create)
		api.GET("/referral-rules/:id", referralHandler.GetByID)
		api.PUT("/referral-rules/:id", middleware.RequireRole("admin", "operator"), referralHandler.Update)
		api.DELETE("/referral-rules/:id", middleware.RequireRole("admin"), referralHandler.Delete)

		// Merchants
		api.GET("/merchants", merchantHandler.List)
		api.POST("/merchants", middleware.RequireRole("admin", "operator"), merchantHandler.Create)
		api.GET("/merchants/:id", merchantHandler.GetByID)
		api.PUT("/merchants/:id", middleware.RequireRole("admin", "operator"), merchantHandler.Update)
		api.DELETE("/merchants/:id", middleware.RequireRole("admin"), merchantHandler.Delete)

		// Transactions
		api.GET("/transactions", txnHandler.List)
		api.POST("/transactions", middleware.RequireRole("admin", "operator"), txnHandler.Create)
		api.GET("/transactions/:id", txnHandler.GetByID)
		api.PATCH("/transactions/:id/status", middleware.RequireRole("admin", "operator"), txnHandler.SetStatus)
	}

	// WebSocket activity feed (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)
	go processor.RunExpiryTicker(workerCtx, time.Duration(cfg.Worker.ExpirySweepHours)*time.Hour)
	logger.Info("background worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
