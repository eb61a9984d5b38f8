package main // Entry point package

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/availability"
	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/inventory"
	"github.com/iliyamo/studio-booking/internal/jobs"
	"github.com/iliyamo/studio-booking/internal/lock"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/payments"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/router"
	"github.com/iliyamo/studio-booking/internal/scheduler"
	taskqueue "github.com/iliyamo/studio-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Env == "dev" {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	defer rdb.Close()

	// ---- Repositories ----
	settingsRepo := repository.NewSettingsRepo(db)
	locationRepo := repository.NewLocationRepo(db)
	addOnRepo := repository.NewAddOnRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	uow := repository.NewUnitOfWork(db)

	// ---- Domain engines ----
	engine := availability.NewEngine(bookingRepo)
	pool := inventory.NewPool(inventoryRepo, inventoryRepo)

	// ---- Payment reconciliation ----
	gateway := payments.NewGateway(payments.GatewayConfig{
		PublicKey:   cfg.PaymentPublicKey,
		PrivateKey:  cfg.PaymentPrivateKey,
		CheckoutURL: cfg.PaymentCheckoutURL,
		RequestURL:  cfg.PaymentRequestURL,
		ServerURL:   cfg.PublicBaseURL + "/v1/payments/callback",
		ResultURL:   cfg.PublicBaseURL + "/booking",
		Currency:    cfg.PaymentCurrency,
		HTTPTimeout: cfg.ProviderHTTPTO,
	})

	var receipts payments.ReceiptIssuer
	if cfg.ReceiptAPIURL != "" {
		receipts = payments.NewReceiptClient(cfg.ReceiptAPIURL, cfg.ReceiptLicenseKey, cfg.ProviderHTTPTO)
	}

	publisher := taskqueue.NewPublisher(cfg.BrokerURL, log)
	locker := lock.NewRedisLocker(rdb, "lock")

	reconciler := payments.NewReconciler(payments.ReconcilerConfig{
		Gateway:  gateway,
		Store:    repository.NewReconciliationStore(uow, paymentRepo, bookingRepo),
		Locker:   locker,
		Deduper:  payments.NewRedisDeduper(rdb, 0),
		Receipts: receipts,
		Retries:  publisher,
		Limiter:  payments.NewRedisPullLimiter(rdb, 0, 0),
		Cache:    payments.NewRedisStatusCache(rdb, 0),
		Log:      log,
	})

	// ---- Background workers ----
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.BrokerURL, reconciler, publisher, log)
	go consumer.Start(ctx)

	sweepStore := repository.NewSweepStore(uow, bookingRepo, paymentRepo)
	runner := jobs.NewJobRunner(sweepStore, locker, log, cfg.PendingTimeout)
	sched := scheduler.NewScheduler(runner, cfg.SweepCron, log)
	sched.Start()
	defer sched.Stop()

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true

	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limiterMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	authHandler := handler.NewAuthHandler(cfg)
	catalogHandler := handler.NewCatalogHandler(locationRepo, addOnRepo, inventoryRepo, pool)
	availHandler := handler.NewAvailabilityHandler(settingsRepo, locationRepo, addOnRepo, inventoryRepo, engine)
	bookingHandler := handler.NewBookingHandler(settingsRepo, locationRepo, addOnRepo, inventoryRepo, bookingRepo, paymentRepo, uow, engine, pool, gateway)
	paymentHandler := handler.NewPaymentHandler(reconciler, bookingRepo, publisher, log)
	operatorHandler := handler.NewOperatorHandler(settingsRepo, bookingRepo, paymentRepo, addOnRepo, inventoryRepo, uow)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler)
	router.RegisterPublic(e, catalogHandler, availHandler, bookingHandler, paymentHandler, cacheMW, limiterMW)
	router.RegisterOperator(e, operatorHandler, cfg.JWTSecret)

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}
