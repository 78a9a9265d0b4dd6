// Package main provides the main entry point for the drip mailer service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/drip-mailer/app/handlers"
	"github.com/amirphl/drip-mailer/app/router"
	"github.com/amirphl/drip-mailer/app/scheduler"
	"github.com/amirphl/drip-mailer/app/services"
	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/amirphl/drip-mailer/config"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/amirphl/drip-mailer/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logCloser, err := utils.InitLogger(cfg.Logging)
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	flushSentry, err := utils.InitSentry(cfg.Sentry, cfg.Deployment)
	if err != nil {
		logrus.WithError(err).Warn("sentry disabled")
		flushSentry = func() {}
	}
	defer flushSentry()

	logrus.WithFields(logrus.Fields{
		"environment": cfg.Deployment.Environment,
		"version":     cfg.Deployment.Version,
	}).Info("starting drip mailer")

	app, err := initializeApplication(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	logrus.Info("shutting down gracefully")

	// Stop background workers before the listener so an in-flight tick can finish
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logrus.WithError(err).Error("error during shutdown")
	}

	logrus.Info("server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(
			&models.Campaign{},
			&models.CampaignFollowup{},
			&models.Prospect{},
			&models.CampaignProspect{},
			&models.QueueItem{},
		); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("database connection established")

	return db, nil
}

// initializeCache initializes the redis client and verifies connectivity; nil when redis is not configured
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logrus.WithField("db", cfg.RedisDB).Info("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings redis so lost connectivity shows up in the logs.
// The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logrus.WithError(err).Warn("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication wires storage, flows, handlers and the dispatch loop
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
	} else {
		logrus.Warn("redis disabled, using in-process locks; run a single instance")
	}

	sender, err := services.NewMailSender(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mail sender: %w", err)
	}

	publisher, err := services.NewEventPublisher(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	followupRepo := repository.NewCampaignFollowupRepository(db)
	prospectRepo := repository.NewProspectRepository(db)
	campaignProspectRepo := repository.NewCampaignProspectRepository(db)
	queueRepo := repository.NewQueueItemRepository(db)
	tx := repository.NewTransactor(db)

	locker := businessflow.NewLocker(rc, cfg.Cache)

	// Flows
	followupFlow := businessflow.NewFollowupFlow(
		campaignRepo,
		followupRepo,
		campaignProspectRepo,
		queueRepo,
		tx,
		cfg.Scheduler,
	)

	queueFlow := businessflow.NewQueueFlow(
		campaignRepo,
		followupRepo,
		campaignProspectRepo,
		queueRepo,
		tx,
		followupFlow,
		locker,
		publisher,
		cfg.Scheduler,
	)

	dispatchFlow := businessflow.NewDispatchFlow(
		campaignRepo,
		followupRepo,
		queueRepo,
		sender,
		locker,
		publisher,
		cfg.Scheduler,
		cfg.Email,
	)

	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo,
		followupRepo,
		campaignProspectRepo,
		prospectRepo,
		queueRepo,
		tx,
		cfg.Scheduler,
	)

	prospectFlow := businessflow.NewProspectFlow(
		campaignRepo,
		prospectRepo,
		campaignProspectRepo,
		tx,
	)

	appRouter := router.NewFiberRouter(cfg, router.Handlers{
		Campaign: handlers.NewCampaignHandler(campaignFlow),
		Prospect: handlers.NewProspectHandler(prospectFlow),
		Queue:    handlers.NewQueueHandler(queueFlow, cfg.Scheduler.DefaultIntervalMinutes),
		Followup: handlers.NewFollowupHandler(followupFlow),
		Dispatch: handlers.NewDispatchHandler(dispatchFlow),
	})

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewDispatchScheduler(dispatchFlow, cfg.Scheduler.DispatchInterval)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	// Connections close after the scheduler so the final tick can still lock and emit events
	stopFuncs = append(stopFuncs, func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close event publisher")
		}
		if rc != nil {
			_ = rc.Close()
		}
	})

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
