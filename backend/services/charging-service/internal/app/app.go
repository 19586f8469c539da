package app

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "chargeshare/backend/libs/redis"
	"chargeshare/backend/services/charging-service/internal/config"
	"chargeshare/backend/services/charging-service/internal/db"
	httpserver "chargeshare/backend/services/charging-service/internal/http"
	"chargeshare/backend/services/charging-service/internal/http/handlers"
	"chargeshare/backend/services/charging-service/internal/http/middleware"
	"chargeshare/backend/services/charging-service/internal/notify"
	"chargeshare/backend/services/charging-service/internal/payments"
	redisstore "chargeshare/backend/services/charging-service/internal/redis"
	"chargeshare/backend/services/charging-service/internal/repository"
	"chargeshare/backend/services/charging-service/internal/service"
	"chargeshare/backend/services/charging-service/internal/store"
	"chargeshare/backend/services/charging-service/internal/sweep"
)

// App wires charging service dependencies.
type App struct {
	server *httpserver.Server
	db     *sql.DB
	redis  *goredis.Client
	push   *notify.PushClient
	logger *zap.Logger
}

// New constructs application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	redisClient, err := libredis.NewRedisClient(ctx, libredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	uow := repository.NewUnitOfWork(sqlDB)
	sweep.New(cfg.Requests.PendingTTL, nil, logger.Named("sweep")).Register(uow)

	hub := notify.NewHub(cfg.WS.WriteTimeout, cfg.WS.PingInterval, logger.Named("realtime")).
		WithAllowedOrigins(cfg.WS.AllowedOrigins)
	push := notify.NewPushClient(cfg.Push.URL, cfg.Push.ServerKey, pushTokenLookup(uow), logger.Named("push"))
	dispatcher := notify.NewFanout(logger, hub, push)

	gateway := newGateway(cfg.Payments, logger.Named("payments"))
	activity := redisstore.NewActivityStore(redisClient, cfg.Redis.TTL)
	opts := service.Options{PendingTTL: cfg.Requests.PendingTTL, Currency: cfg.Payments.Currency}

	feesSvc := service.NewFeesService(uow, cfg.Fees.MinimumFee, cfg.Fees.Percentage, nil, logger)
	processSvc := service.NewProcessService(service.ProcessServiceConfig{
		UnitOfWork: uow,
		Dispatcher: dispatcher,
		Gateway:    gateway,
		Integrations: payments.Integrations{
			Card:      cfg.Payments.CardIntegration,
			Wallet:    cfg.Payments.WalletIntegration,
			IFrameURL: cfg.Payments.IFrameURL,
		},
		Activity: activity,
		Deduper:  redisstore.NewCallbackDeduper(redisClient, cfg.Redis.CallbackTTL),
		Logger:   logger,
		Options:  opts,
	})
	requestSvc := service.NewRequestService(service.RequestServiceConfig{
		UnitOfWork: uow,
		Fees:       feesSvc,
		Processes:  processSvc,
		Dispatcher: dispatcher,
		Activity:   activity,
		Logger:     logger,
		Options:    opts,
	})

	routes := httpserver.Routes{
		Requests:  handlers.NewRequestHandlers(requestSvc, logger),
		Processes: handlers.NewProcessHandlers(processSvc, logger),
		Fees:      handlers.NewFeesHandlers(feesSvc, logger),
		WS:        handlers.NewWSHandler(hub),
		Health:    handlers.NewHealthHandler(),
	}
	router := httpserver.NewRouter(routes, middleware.Auth(cfg.Auth.JWTSecret))
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger, middleware.RequestLogger(logger)).
		WithShutdownTimeout(cfg.HTTP.ShutdownTimeout)
	server.OnShutdown(hub.Close)

	return &App{
		server: server,
		db:     sqlDB,
		redis:  redisClient,
		push:   push,
		logger: logger,
	}, nil
}

func newGateway(cfg config.PaymentsConfig, logger *zap.Logger) payments.Gateway {
	if cfg.Mock {
		return payments.NewMockGateway(cfg.HMACSecret, logger)
	}
	return payments.NewPaymobClient(payments.PaymobConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		HMACSecret: cfg.HMACSecret,
		Timeout:    cfg.Timeout,
	}, nil, logger)
}

// pushTokenLookup reads push tokens through the unit of work.
func pushTokenLookup(uow store.UnitOfWork) notify.TokenLookup {
	return func(ctx context.Context, userID uuid.UUID) (string, error) {
		var token string
		err := uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			u, err := tx.Users().Get(ctx, userID)
			if err != nil {
				return err
			}
			token = u.PushToken
			return nil
		})
		return token, err
	}
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.push != nil {
		a.push.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
