package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradedesk/configs"
	"tradedesk/internal/adapter/telegram"
	"tradedesk/internal/database"
	deliveryhttp "tradedesk/internal/delivery/http"
	"tradedesk/internal/domain"
	"tradedesk/internal/infra"
	"tradedesk/internal/middleware"
	"tradedesk/internal/repository"
	"tradedesk/internal/repository/memory"
	"tradedesk/internal/service"
	"tradedesk/internal/usecase"
	"tradedesk/internal/utils"
)

// stores bundles the repositories behind one backend
type stores struct {
	users     domain.UserRepository
	trades    domain.TradeRepository
	ledger    domain.LedgerRepository
	arbitrage domain.ArbitrageRepository
	kyc       domain.KYCRepository
	tickets   domain.TicketRepository
	settings  domain.SettingsRepository
	db        deliveryhttp.Pinger
	close     func()
}

func main() {
	cfg, envLoaded := configs.Load()

	logger, err := infra.NewLogger(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !envLoaded {
		logger.Warn(".env file not found, using environment variables")
	}

	if err := utils.SetLocation(cfg.Telegram.Timezone); err != nil {
		logger.Warn("Unknown timezone, using UTC", zap.String("tz", cfg.Telegram.Timezone), zap.Error(err))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Application stopped", zap.Error(err))
	}
}

func run(cfg *configs.Config, logger *zap.Logger) error {
	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	oracle, closeOracle, err := buildOracle(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeOracle()

	notifier, err := telegram.NewNotificationService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	if err != nil {
		logger.Warn("Telegram unavailable, notifications disabled", zap.Error(err))
		notifier, _ = telegram.NewNotificationService("", 0, logger)
	}

	// Services
	locker := service.NewAccountLocker()
	wallet := usecase.NewWalletService(st.users, st.ledger, locker, logger)
	accounts := usecase.NewAccountService(st.users, st.trades, wallet, cfg.Trading.StartingBalance, logger)
	trading := usecase.NewTradingService(st.users, st.trades, st.ledger, st.settings, oracle, locker,
		usecase.TradeLimits{
			MinDuration:   cfg.Trading.MinDuration,
			MaxDuration:   cfg.Trading.MaxDuration,
			DefaultPayout: cfg.Trading.PayoutPercent,
			FallbackPrice: cfg.Oracle.FallbackPrice,
		}, logger)
	settlement := service.NewSettlementService(st.trades, st.users, st.ledger, oracle, locker, logger)
	arbitrage := service.NewArbitrageService(st.arbitrage, oracle, logger)
	support := usecase.NewSupportService(st.tickets, notifier, logger)
	kyc := usecase.NewKYCService(st.kyc, st.users, notifier, logger)

	// Background jobs
	scheduler := infra.NewScheduler(logger)
	settlementJob, err := scheduler.Every("settlement", cfg.Scheduler.SettlementInterval, func(ctx context.Context) error {
		_, err := settlement.SettleExpired(ctx, time.Now())
		return err
	})
	if err != nil {
		return err
	}
	arbitrageJob, err := scheduler.Every("arbitrage", cfg.Scheduler.ArbitrageInterval, func(ctx context.Context) error {
		_, err := arbitrage.GenerateOpportunities(ctx)
		return err
	})
	if err != nil {
		return err
	}
	scheduler.Start()

	// HTTP
	tokens := middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	e := echo.New()
	e.HideBanner = true
	deliveryhttp.SetupRoutes(e, &deliveryhttp.RouterConfig{
		AuthHandler:      deliveryhttp.NewAuthHandler(accounts, tokens, cfg.IsProduction(), logger),
		UserHandler:      deliveryhttp.NewUserHandler(accounts, wallet, logger),
		TradingHandler:   deliveryhttp.NewTradingHandler(trading, oracle, cfg.Trading.Pairs, logger),
		ArbitrageHandler: deliveryhttp.NewArbitrageHandler(arbitrage, logger),
		SupportHandler:   deliveryhttp.NewSupportHandler(support, kyc, logger),
		AdminHandler:     deliveryhttp.NewAdminHandler(accounts, wallet, trading, settlement, st.settings, settlementJob, logger),
		Tokens:           tokens,
		Users:            st.users,
		Database:         st.db,
		Jobs:             []deliveryhttp.JobRunner{settlementJob, arbitrageJob},
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Tradedesk API starting",
		zap.String("addr", addr),
		zap.String("env", cfg.Server.Env),
		zap.String("payout_percent", cfg.Trading.PayoutPercent.String()),
		zap.Duration("settlement_interval", cfg.Scheduler.SettlementInterval),
		zap.Strings("pairs", cfg.Trading.Pairs),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		scheduler.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop()

	logger.Info("Server exited gracefully")
	return nil
}

func openStores(ctx context.Context, cfg *configs.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		mem := memory.NewStore()
		return &stores{
			users:     mem.Users(),
			trades:    mem.Trades(),
			ledger:    mem.Ledger(),
			arbitrage: mem.Arbitrage(),
			kyc:       mem.KYC(),
			tickets:   mem.Tickets(),
			settings:  mem.Settings(),
			db:        mem,
			close:     func() {},
		}, nil
	}

	db, err := infra.NewDatabase(ctx, cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &stores{
		users:     repository.NewUserRepository(db),
		trades:    repository.NewTradeRepository(db),
		ledger:    repository.NewLedgerRepository(db),
		arbitrage: repository.NewArbitrageRepository(db),
		kyc:       repository.NewKYCRepository(db),
		tickets:   repository.NewTicketRepository(db),
		settings:  repository.NewSystemSettingsRepository(db),
		db:        db,
		close:     db.Close,
	}, nil
}

// buildOracle layers simulated, live and cached price sources
func buildOracle(ctx context.Context, cfg *configs.Config, logger *zap.Logger) (domain.PriceOracle, func(), error) {
	var oracle domain.PriceOracle = service.NewSimulatedOracle(cfg.Oracle.FallbackPrice, cfg.Oracle.JitterPercent)
	if cfg.Oracle.FeedURL != "" {
		oracle = service.NewLiveOracle(cfg.Oracle.FeedURL, oracle, logger)
		logger.Info("Live price feed enabled", zap.String("url", cfg.Oracle.FeedURL))
	}

	rdb, err := infra.NewRedis(ctx, cfg.Redis.URL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var cache service.PriceCache = service.NewMemoryPriceCache()
	closeFn := func() {}
	if rdb != nil {
		cache = service.NewRedisPriceCache(rdb)
		closeFn = func() { _ = rdb.Close() }
	}

	return service.NewCachedOracle(oracle, cache, cfg.Oracle.CacheTTL, logger), closeFn, nil
}
