package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ThorWarnken/heimdall-server/internal/access"
	"github.com/ThorWarnken/heimdall-server/internal/billing"
	"github.com/ThorWarnken/heimdall-server/internal/httpapi"
	"github.com/ThorWarnken/heimdall-server/internal/promo"
	"github.com/ThorWarnken/heimdall-server/internal/storage/memory"
	"github.com/ThorWarnken/heimdall-server/internal/storage/postgres"
	"github.com/ThorWarnken/heimdall-server/pkg/config"
	"github.com/ThorWarnken/heimdall-server/pkg/httpserver"
	"github.com/ThorWarnken/heimdall-server/pkg/logger"
	"github.com/ThorWarnken/heimdall-server/pkg/pg"
	"github.com/ThorWarnken/heimdall-server/pkg/ratelimiter"
	rediscfg "github.com/ThorWarnken/heimdall-server/pkg/redis"
	"github.com/ThorWarnken/heimdall-server/pkg/requestid"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// DatabaseURL selects the storage backend: postgres when set, an
	// in-process store otherwise (single-instance deployments, local dev).
	DatabaseURL string `env:"PG_CONN_URL"`
	// RedisURL, when set, backs the rate limiter with shared Redis state.
	RedisURL string `env:"REDIS_URL"`

	// PromoSeedFile is an optional YAML file of standing promo codes
	// registered at startup.
	PromoSeedFile string `env:"PROMO_SEED_FILE"`

	TrialDays int `env:"TRIAL_DAYS" envDefault:"7"`

	// Redeem and admin endpoints share one token bucket per client IP.
	RateLimitCapacity int           `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
	RateLimitRefill   time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1m"`
}

func main() {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(
		logger.WithFormat(logger.Format(appCfg.LogFormat)),
		logger.WithEnvironment(appCfg.Environment, "heimdall"),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx := context.Background()
	if err := run(ctx, appCfg, log); err != nil {
		log.ErrorContext(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	var (
		users       access.UserStore
		promoStore  promo.Store
		redemptions access.RedemptionSource
		health      []func(context.Context) error
	)

	if appCfg.DatabaseURL != "" {
		var pgCfg pg.Config
		config.MustLoad(&pgCfg)

		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			return err
		}

		store := postgres.New(pool)
		users, promoStore, redemptions = store, store, store
		health = append(health, pg.Healthcheck(pool))
		log.InfoContext(ctx, "using postgres storage")
	} else {
		store := memory.New()
		users, promoStore, redemptions = store, store, store
		log.InfoContext(ctx, "using in-memory storage")
	}

	var paddleCfg billing.PaddleConfig
	config.MustLoad(&paddleCfg)
	provider, err := billing.NewPaddleProvider(paddleCfg)
	if err != nil {
		return err
	}

	evaluator := access.NewEvaluator(users, redemptions,
		access.WithTrialDays(appCfg.TrialDays),
		access.WithLogger(log),
	)
	ledger := promo.NewLedger(promoStore, log)
	sync := billing.NewSync(users, provider, log)

	if appCfg.PromoSeedFile != "" {
		if err := ledger.Seed(ctx, appCfg.PromoSeedFile, time.Now().UTC()); err != nil {
			return err
		}
	}

	limiter, closeLimiter, err := buildLimiter(ctx, appCfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var apiCfg httpapi.Config
	config.MustLoad(&apiCfg)

	var srvCfg httpserver.Config
	config.MustLoad(&srvCfg)

	router := httpapi.NewRouter(httpapi.Deps{
		Evaluator: evaluator,
		Ledger:    ledger,
		Sync:      sync,
		Provider:  provider,
		Users:     users,
		Config:    apiCfg,
		Log:       log,
		Limiter:   limiter,
		Health:    health,
	})

	srv := httpserver.NewFromConfig(srvCfg, httpserver.WithLogger(log))
	log.InfoContext(ctx, "heimdall server starting", slog.String("addr", srvCfg.Addr))
	return srv.Run(ctx, router)
}

// buildLimiter wires the token bucket guarding the redeem and admin routes.
// It prefers Redis so replicas share one budget, falling back to per-process
// state when no Redis is configured.
func buildLimiter(ctx context.Context, appCfg appConfig, log *slog.Logger) (func(http.Handler) http.Handler, func(), error) {
	limiterCfg := ratelimiter.Config{
		Capacity:       appCfg.RateLimitCapacity,
		RefillRate:     appCfg.RateLimitCapacity,
		RefillInterval: appCfg.RateLimitRefill,
	}

	var store ratelimiter.Store
	cleanup := func() {}

	if appCfg.RedisURL != "" {
		var redisCfg rediscfg.Config
		config.MustLoad(&redisCfg)
		client, err := rediscfg.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		store = ratelimiter.NewRedisStore(client, "heimdall:ratelimit")
		cleanup = func() { _ = client.Close() }
		log.InfoContext(ctx, "rate limiter backed by redis")
	} else {
		ms := ratelimiter.NewMemoryStore()
		store = ms
		cleanup = ms.Close
	}

	bucket, err := ratelimiter.NewBucket(store, limiterCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return ratelimiter.Middleware(bucket, ratelimiter.ByClientIP()), cleanup, nil
}
