// Package app wires configuration, storage, messaging and HTTP into a
// runnable server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/logger"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/realtime"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg    config.Config
	broker config.BrokerConfig
	log    *logrus.Logger
	db     *sql.DB
	rdb    *redis.Client
	pub    *queue.Publisher
	echo   *echo.Echo
}

// New connects to MySQL and, when reachable, Redis, then builds the HTTP
// server. The broker is dialled lazily on first publish.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*App, error) {
	if log == nil {
		log = logger.New(cfg.Env, cfg.LogLevel)
	}
	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{
		cfg:    cfg,
		broker: config.LoadBrokerConfig(),
		log:    log,
		db:     db,
		rdb:    config.NewRedisClient(),
	}
	if a.rdb == nil {
		log.Warn("redis unavailable, cache and rate limiting disabled")
	}
	a.pub = queue.NewPublisher(a.broker.URL)

	rt := config.LoadRealtimeConfig()
	if !rt.Enabled() {
		log.Info("pubnub keys not set, availability broadcasts disabled")
	}
	payCfg := config.LoadPayUConfig()
	if err := payCfg.Validate(); err != nil {
		log.WithError(err).Warn("payment gateway not configured")
	}

	a.echo = a.buildServer(payCfg, realtime.New(rt))
	return a, nil
}

func (a *App) buildServer(payCfg config.PayUConfig, bc service.AvailabilityBroadcaster) *echo.Echo {
	store := repository.NewSQLStore(a.db)
	users := repository.NewUserRepo(a.db)
	roles := repository.NewRoleRepo(a.db)
	tickets := repository.NewTicketRepo(a.db)
	audit := repository.NewAuditRepo(a.db)

	payments := service.NewPaymentService(store, repository.NewPaymentRepo(a.db), payCfg, a.pub, bc, a.log)
	ticketSvc := service.NewTicketService(store, payments, a.pub, bc, a.log)
	events := service.NewEventService(store, a.pub, bc, a.log)
	profiles := service.NewUserService(store, roles, a.log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(a.log)
	e.Use(
		echomw.Recover(),
		echomw.RequestID(),
		middleware.RequestLogger(a.log),
		metrics.Middleware(),
	)

	router.Register(e, router.Handlers{
		Health:   handler.Health{DB: a.db, Redis: a.rdb},
		Auth:     handler.NewAuthHandler(a.cfg, users, repository.NewTokenRepo(a.db), roles, profiles),
		Events:   handler.NewEventHandler(events, repository.NewEventRepo(a.db), audit, tickets),
		Tickets:  handler.NewTicketHandler(ticketSvc, tickets, audit),
		Payments: handler.NewPaymentHandler(payments, users),
		Catalog:  handler.NewCatalogHandler(repository.NewTicketTypeRepo(a.db), repository.NewLocationRepo(a.db)),
		Admin:    handler.NewAdminHandler(users, profiles, audit),
	}, router.Options{
		JWTSecret: a.cfg.JWTSecret,
		Redis:     a.rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Log:       a.log,
	})
	return e
}

// Run serves HTTP and, when enabled, the ticket consumer until ctx is
// cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.broker.Consumer {
		go func() {
			if err := queue.StartTicketConsumer(ctx, a.broker.URL, a.log); err != nil && !errors.Is(err, context.Canceled) {
				a.log.WithError(err).Error("ticket consumer stopped")
			}
		}()
	}

	addr := ":" + a.cfg.Port
	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(logrus.Fields{"addr": addr, "env": a.cfg.Env}).Info("http server starting")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return fmt.Errorf("http server: %w", err)
	}
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.echo.Shutdown(ctx)
	a.close()
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

func (a *App) close() {
	if err := a.pub.Close(); err != nil {
		a.log.WithError(err).Warn("close broker publisher")
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("close database")
	}
}
