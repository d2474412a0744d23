package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/coa"
	"github.com/meridian-erp/meridian-erp/internal/facade"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/orgconfig"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/receiving"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Engines is the wired object graph. Hosts embed it behind whatever transport
// they run; this binary only verifies the wiring and holds the process open.
type Engines struct {
	Accounts   *coa.Service
	Config     *orgconfig.Service
	Ledger     *ledger.Service
	Numbers    *numbering.Service
	Inventory  inventory.Repository
	Receiving  *receiving.Service
	Payments   *payments.Service
	Accounting *facade.Accounting
	SerieNo    *facade.SerieNo
}

func buildEngines(pool *pgxpool.Pool, redisClient *redis.Client, cfg *app.Config) *Engines {
	audit := shared.NewAuditLogger(pool)
	accounts := coa.NewService(coa.NewRepository(pool))
	configCache := orgconfig.NewCache(redisClient, cfg.ConfigCacheTTL)
	config := orgconfig.NewService(orgconfig.NewRepository(pool), accounts, configCache)
	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), audit)
	numbers := numbering.NewService(numbering.NewRepository(pool))
	receivingSvc := receiving.NewService(receiving.NewRepository(pool), config, nil, audit)
	paymentsSvc := payments.NewService(payments.NewRepository(pool), config, audit)
	return &Engines{
		Accounts:   accounts,
		Config:     config,
		Ledger:     ledgerSvc,
		Numbers:    numbers,
		Inventory:  inventory.NewRepository(pool),
		Receiving:  receivingSvc,
		Payments:   paymentsSvc,
		Accounting: facade.NewAccounting(ledgerSvc, receivingSvc, config),
		SerieNo:    facade.NewSerieNo(numbers),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	engines := buildEngines(pool, redisClient, cfg)
	_ = engines
	logger.Info("engines ready", slog.String("env", cfg.AppEnv))

	<-ctx.Done()
	logger.Info("shutting down")
}
