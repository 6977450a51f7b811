package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wishbot/internal/bot"
	"wishbot/internal/cache"
	"wishbot/internal/config"
	"wishbot/internal/db"
	httpServer "wishbot/internal/http"
	"wishbot/internal/logger"
	"wishbot/internal/repository"
	"wishbot/internal/scheduler"
	"wishbot/internal/service"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx, dbPool); err != nil {
		logger.Fatal("migrations failed", "error", err)
	}
	cancelMigrate()

	redisClient := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerRepo := repository.NewLedgerRepository(dbPool)
	settingsRepo := repository.NewSettingsRepository(dbPool)
	statsRepo := repository.NewStatsRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)

	ledger := service.NewLedgerService(ledgerRepo, cfg.MaxWishLength)
	auditService := service.NewAuditService(auditRepo)
	adminService := service.NewAdminService(settingsRepo, statsRepo, auditService)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal("telegram auth failed", "error", err)
	}
	sender := bot.NewSender(api, cfg.SendRatePerSecond)
	gate := bot.NewSubscriptionGate(sender, cfg.RequiredChannel, cfg.RequiredChat, cfg.ChannelInviteLink, cfg.ChatInviteLink)
	wishLimit := cache.NewLimiter(redisClient, "wish", cfg.WishRateLimit, cfg.WishRateWindow)
	tgBot := bot.New(api, sender, gate, ledger, adminService, wishLimit, bot.Options{AdminIDs: cfg.AdminIDs})

	broadcaster := scheduler.NewBroadcaster(settingsRepo, ledger, sender, scheduler.NewRedisLease(redisClient), scheduler.Options{
		ChatID:   cfg.ChatID,
		Interval: cfg.BroadcastInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := broadcaster.Run(ctx); err != nil {
			logger.Error("scheduler exited", "error", err)
		}
	}()

	go tgBot.Start()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	httpServer.RegisterRoutes(r, httpServer.Deps{
		DB:            dbPool,
		Redis:         redisClient,
		Admin:         adminService,
		Ledger:        ledger,
		AdminIDs:      cfg.AdminIDs,
		Version:       version,
		APIRateLimit:  cfg.APIRateLimit,
		APIRateWindow: cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	tgBot.Stop()
	<-schedDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
