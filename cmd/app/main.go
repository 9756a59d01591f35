package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-classifieds-bot/internal/catalog"
	"telegram-classifieds-bot/internal/config"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
	pg "telegram-classifieds-bot/internal/infra/db/postgres"
	"telegram-classifieds-bot/internal/infra/logging"
	"telegram-classifieds-bot/internal/infra/metrics"
	"telegram-classifieds-bot/internal/infra/moderation"
	"telegram-classifieds-bot/internal/infra/payment"
	"telegram-classifieds-bot/internal/infra/rates"
	red "telegram-classifieds-bot/internal/infra/redis"
	"telegram-classifieds-bot/internal/infra/sched"
	tele "telegram-classifieds-bot/internal/infra/telegram"
	"telegram-classifieds-bot/internal/infra/web"
	"telegram-classifieds-bot/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	debouncer := red.NewDebouncer(redisClient, 2*time.Second)

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	userRepo := pg.NewPostgresUserRepo(pool)
	adRepo := pg.NewPostgresAdRepo(pool)
	txRepo := pg.NewPostgresTransactionRepo(pool)
	promoRepo := pg.NewPostgresPromocodeRepo(pool)
	purchaseRepo := pg.NewPostgresPurchaseRepo(pool)
	payRepo := pg.NewPostgresPaymentRepo(pool)
	rateRepo := pg.NewPostgresExchangeRateRepo(pool)

	// ---- Pricing and adapters ----
	cat := catalog.Default()
	rateSource := rates.NewCBRSource(cfg.Rates, logger)
	gateway := payment.NewRobokassa(cfg.Robokassa)

	var classifier adapter.ContentClassifier
	if cfg.Moderation.Disabled || cfg.Moderation.APIKey == "" {
		classifier = moderation.NewNoopClassifier()
		logger.Warn().Msg("content moderation disabled")
	} else {
		classifier, err = moderation.NewLLMClassifier(cfg.Moderation, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("moderation classifier init failed")
		}
	}

	var publisher adapter.ChannelPublisher
	var notifier adapter.TelegramNotifier
	if cfg.Bot.Token == "" && cfg.Runtime.Dev {
		noop := tele.NewNoopBot()
		publisher, notifier = noop, noop
		logger.Warn().Msg("no bot token, channel publishing disabled")
	} else {
		bot, err := tele.NewChannelBot(&cfg.Bot, cfg.Channels, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram bot init failed")
		}
		publisher, notifier = bot, bot
	}

	// ---- Use cases ----
	rateUC := usecase.NewExchangeRateUseCase(rateRepo, rateSource, cat.Stars, logger)
	ledgerUC := usecase.NewLedgerUseCase(txm, userRepo, txRepo, purchaseRepo, adRepo, rateUC, cat, logger)
	promoUC := usecase.NewPromocodeUseCase(txm, promoRepo, userRepo, txRepo, cat, logger)
	lifecycleUC := usecase.NewLifecycleUseCase(txm, adRepo, userRepo, txRepo, publisher, notifier, classifier, cat, logger)
	limitsUC := usecase.NewLimitsUseCase(userRepo, adRepo, purchaseRepo, cat, logger)

	// ---- Workers ----
	go func() {
		_ = sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, lifecycleUC, locker, logger).Run(ctx)
	}()
	go func() {
		_ = sched.NewBoostWorker(cfg.Scheduler.BoostInterval, lifecycleUC, locker, logger).Run(ctx)
	}()
	go func() {
		_ = sched.NewNotifyWorker(cfg.Scheduler.NotifyInterval, cat.Lifecycle.ExpiryWarnDays, lifecycleUC, locker, logger).Run(ctx)
	}()
	go func() {
		_ = sched.NewCleanupWorker(cfg.Scheduler.CleanupInterval, lifecycleUC, locker, logger).Run(ctx)
	}()
	go func() {
		_ = sched.NewRateWorker(cfg.Scheduler.RateInterval, rateUC, locker, logger).Run(ctx)
	}()

	// ---- HTTP ----
	srv := web.NewServer(ledgerUC, promoUC, rateUC, limitsUC, payRepo, gateway, debouncer, cfg.Admin, cfg.Bot.Username, logger)
	go func() {
		if err := srv.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("web server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
