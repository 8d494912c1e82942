package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"earning_bot/internal/bot"
	"earning_bot/internal/cache"
	"earning_bot/internal/config"
	"earning_bot/internal/db"
	httpserver "earning_bot/internal/http"
	"earning_bot/internal/http/handlers"
	"earning_bot/internal/http/middleware"
	"earning_bot/internal/jobs"
	"earning_bot/internal/logger"
	"earning_bot/internal/repository"
	"earning_bot/internal/seed"
	"earning_bot/internal/service"
	"earning_bot/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg := config.Load()

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	loc := cfg.Location()

	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", "error", err)
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		logger.Fatal("migrations failed", "error", err)
	}

	// Redis опционален: без него кэш и лимиты живут в процессе
	var (
		settingsCache service.Cache
		limiter       middleware.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis connect failed", "error", err)
		}
		defer rdb.Close()
		rc := cache.NewRedisCache(rdb, "earning:")
		settingsCache = rc
		limiter = middleware.NewRedisLimiter(rc, cfg.RateLimitPerMinute)
		log.Info("redis enabled", "addr", cfg.RedisAddr)
	} else {
		settingsCache = cache.NewMemory()
		limiter = middleware.NewLocalLimiter(cfg.RateLimitPerMinute)
		log.Warn("REDIS_ADDR not set - using in-process cache and rate limiter")
	}

	store := repository.NewPostgresStore(dbPool)
	hub := ws.NewHub()

	settings := service.NewSettingsService(store, settingsCache)
	ledger := service.NewLedgerService(store)
	accounts := service.NewAccountService(store, settings, ledger, hub, cfg.BotUsername, loc)
	rewards := service.NewRewardService(store, settings, ledger, hub, loc)
	withdrawals := service.NewWithdrawalService(store, settings, nil, hub)
	referrals := service.NewReferralService(store, settings, ledger, nil, hub)
	audit := service.NewAuditService(store)
	jwt := service.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	if f, err := seed.Load(cfg.SeedFile); err == nil {
		if _, err := seed.Apply(ctx, f, settings, rewards); err != nil {
			logger.Fatal("seed failed", "error", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Info("seed file not found, skipping", "path", cfg.SeedFile)
	} else {
		logger.Fatal("seed file invalid", "error", err)
	}

	r := httpserver.NewRouter(httpserver.RouterConfig{
		Handler: &handlers.Handler{
			Accounts:    accounts,
			Rewards:     rewards,
			Withdrawals: withdrawals,
			Referrals:   referrals,
			Ledger:      ledger,
			Settings:    settings,
			Audit:       audit,
			JWT:         jwt,
			BotToken:    cfg.BotToken,
		},
		WS:             ws.NewWSHandler(hub, jwt, cfg.AllowedOrigins),
		Limiter:        limiter,
		AdminIDs:       cfg.AdminTelegramIDs,
		AllowedOrigins: cfg.AllowedOrigins,
		DB:             dbPool,
		Version:        Version,
	})

	// Бот запускаем ПЕРЕД HTTP сервером, чтобы уведомления были подключены
	var (
		tgBot     *bot.Bot
		scheduler *cron.Cron
	)
	if cfg.AdminBotEnabled && cfg.BotToken != "" {
		tgBot, err = bot.New(cfg.BotToken, bot.Deps{
			Accounts:    accounts,
			Withdrawals: withdrawals,
			Referrals:   referrals,
			AdminIDs:    cfg.AdminTelegramIDs,
			WebAppURL:   cfg.WebAppURL,
		})
		if err != nil {
			log.Error("failed to start bot", "error", err)
		} else {
			withdrawals.SetNotifier(tgBot)
			referrals.SetNotifier(tgBot)
			go tgBot.Start()
			log.Info("bot started", "admin_ids", cfg.AdminTelegramIDs)

			if len(cfg.AdminTelegramIDs) > 0 && cfg.DigestCron != "" {
				scheduler, err = jobs.NewDigest(withdrawals, accounts, tgBot).Schedule(cfg.DigestCron, loc)
				if err != nil {
					log.Error("digest not scheduled", "error", err)
				} else {
					scheduler.Start()
					log.Info("withdrawal digest scheduled", "cron", cfg.DigestCron)
				}
			}
		}
	} else {
		log.Warn("bot disabled - notifications off")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	if tgBot != nil {
		tgBot.Stop()
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	hub.CloseAll()

	log.Info("server exited")
}
