package main

import (
	"context"
	"fmt"
	"time"

	"carrier-engine/internal/core/cache"
	"carrier-engine/internal/core/config"
	"carrier-engine/internal/core/database"
	"carrier-engine/internal/core/httpclient"
	"carrier-engine/internal/core/logger"
	allocationservice "carrier-engine/internal/features/allocation/service"
	"carrier-engine/internal/features/carriers/apilog"
	carrierports "carrier-engine/internal/features/carriers/ports"
	"carrier-engine/internal/features/carriers/registry"
	carrierservice "carrier-engine/internal/features/carriers/service"
	orderadapter "carrier-engine/internal/features/orders/adapters"
	orderports "carrier-engine/internal/features/orders/ports"
	orderservice "carrier-engine/internal/features/orders/service"
	ruleports "carrier-engine/internal/features/rules/ports"
	ruleservice "carrier-engine/internal/features/rules/service"
	settingsadapters "carrier-engine/internal/features/settings/adapters"
	settingsports "carrier-engine/internal/features/settings/ports"
	settingsservice "carrier-engine/internal/features/settings/service"
	shipmentports "carrier-engine/internal/features/shipments/ports"
	shipmentservice "carrier-engine/internal/features/shipments/service"
	"carrier-engine/internal/seed"
	"carrier-engine/internal/storage/memory"
	"carrier-engine/internal/storage/postgres"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockPrefix         = "carrier-engine:lock:"
	healthCheckTimeout = 10 * time.Second
)

// repositories is the storage backend picked by STORAGE_DRIVER.
type repositories struct {
	carriers    carrierports.CarrierRepository
	credentials carrierports.CredentialRepository
	apiLogs     carrierports.APILogRepository
	rates       carrierports.RateRepository
	rateWriter  carrierports.RateWriter
	rules       ruleports.RuleRepository
	orders      orderports.OrderRepository
	shipments   shipmentports.ShipmentRepository
}

// application holds every wired service. close releases the connections it opened.
type application struct {
	repos        repositories
	orders       *orderservice.OrderService
	settings     *settingsservice.SettingsServiceImpl
	carriers     *carrierservice.CarrierService
	rules        *ruleservice.RuleService
	engine       *allocationservice.Engine
	orchestrator *shipmentservice.Orchestrator
	ndr          *shipmentservice.NDRService

	db    *gorm.DB
	redis *cache.RedisAdapter
}

func buildApplication(ctx context.Context, cfg *config.AppConfig) (*application, error) {
	l := logger.Get()
	app := &application{}

	repos, err := app.openStorage(cfg)
	if err != nil {
		return nil, err
	}
	app.repos = repos

	var (
		locker       cache.Locker
		settingsRepo settingsports.SettingsRepository
	)
	if cfg.RedisURL != "" {
		redisAdapter, err := cache.NewRedisAdapter(cfg.RedisURL)
		if err != nil {
			app.close()
			return nil, err
		}
		app.redis = redisAdapter

		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := redisAdapter.Ping(pingCtx); err != nil {
			app.close()
			return nil, fmt.Errorf("redis is unreachable: %w", err)
		}

		locker = cache.NewRedisLocker(redisAdapter, lockPrefix)
		settingsRepo = settingsadapters.NewRedisSettingsRepository(redisAdapter)
		l.Info("Redis connection verified")
	} else {
		locker = cache.NewLocalLocker()
		settingsRepo = settingsadapters.NewMemorySettingsRepository()
		l.Warn("REDIS_URL not set, settings and order locks are kept in process")
	}

	client := apilog.InstrumentClient(httpclient.NewClient(cfg.Carriers.Timeout, cfg.Proxy))

	var source orderports.OrderSource = repos.orders
	if cfg.OrderSource == config.OrderSourceWooCommerce {
		wcAdapter := orderadapter.NewWooCommerceAdapter(cfg.WooCommerce, client)

		hcCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := wcAdapter.HealthCheck(hcCtx); err != nil {
			app.close()
			return nil, fmt.Errorf("woocommerce health check failed: %w", err)
		}
		l.Info("WooCommerce connection verified")
		source = wcAdapter
	}

	apiLogger := apilog.NewLogger(repos.apiLogs, repos.carriers, cfg.Carriers.Timeout)
	carrierRegistry := registry.NewDefault(repos.credentials, client, apiLogger)

	app.orders = orderservice.NewOrderService(source)
	app.settings = settingsservice.NewSettingsService(settingsRepo)
	app.carriers = carrierservice.NewCarrierService(repos.carriers, repos.apiLogs)
	app.rules = ruleservice.NewRuleService(repos.rules, repos.carriers)
	app.engine = allocationservice.NewEngine(
		repos.carriers,
		app.rules,
		app.settings,
		carrierRegistry,
		repos.rates,
		cfg.Carriers.Workers,
	)
	app.orchestrator = shipmentservice.NewOrchestrator(
		shipmentservice.Deps{
			Orders:    app.orders,
			Carriers:  repos.carriers,
			Rates:     repos.rates,
			Allocator: app.engine,
			Adapters:  carrierRegistry,
			Settings:  app.settings,
			Shipments: repos.shipments,
			Locker:    locker,
		},
		shipmentservice.Options{
			Workers: cfg.Carriers.Workers,
			LockTTL: cfg.Carriers.OrderLockTTL,
		},
	)
	app.ndr = shipmentservice.NewNDRService(repos.shipments)

	if err := app.loadSeed(ctx, cfg); err != nil {
		app.close()
		return nil, err
	}

	l.Info("Application wired",
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("order_source", cfg.OrderSource),
		zap.Strings("carrier_adapters", carrierRegistry.Codes()),
	)
	return app, nil
}

// loadSeed applies SEED_FILE, or the built-in mock carrier when an in-memory store
// would otherwise start empty.
func (a *application) loadSeed(ctx context.Context, cfg *config.AppConfig) error {
	var (
		file *seed.File
		err  error
	)
	source := cfg.SeedFile
	switch {
	case source != "":
		if file, err = seed.Load(source); err != nil {
			return err
		}
	case cfg.StorageDriver == config.StorageMemory:
		file, source = seed.Default(), "default"
	default:
		return nil
	}
	return a.applySeed(ctx, file, source)
}

func (a *application) applySeed(ctx context.Context, file *seed.File, source string) error {
	sum, err := seed.Apply(ctx, file, a.seedDeps())
	if err != nil {
		return fmt.Errorf("failed to apply seed %s: %w", source, err)
	}
	logger.Get().Info("Seed applied",
		zap.String("source", source),
		zap.Int("carriers", sum.Carriers),
		zap.Int("credentials", sum.Credentials),
		zap.Int("rates", sum.Rates),
		zap.Int("channel_rules", sum.ChannelRules),
		zap.Int("shipping_rules", sum.ShippingRules),
		zap.Int("pincode_rules", sum.PincodeRules),
	)
	return nil
}

func (a *application) seedDeps() seed.Deps {
	return seed.Deps{
		Carriers:    a.repos.carriers,
		Credentials: a.repos.credentials,
		Rates:       a.repos.rates,
		RateWriter:  a.repos.rateWriter,
		Rules:       a.repos.rules,
		RuleSaver:   a.rules,
	}
}

func (a *application) openStorage(cfg *config.AppConfig) (repositories, error) {
	if cfg.StorageDriver != config.StoragePostgres {
		store := memory.NewStore()
		return repositories{
			carriers:    store.Carriers,
			credentials: store.Credentials,
			apiLogs:     store.APILogs,
			rates:       store.Rates,
			rateWriter:  store.Rates,
			rules:       store.Rules,
			orders:      store.Orders,
			shipments:   store.Shipments,
		}, nil
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return repositories{}, err
	}
	a.db = db

	if err := postgres.Migrate(db); err != nil {
		a.close()
		return repositories{}, err
	}
	logger.Get().Info("Database schema migrated",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	store := postgres.NewStore(db)
	return repositories{
		carriers:    store.Carriers,
		credentials: store.Credentials,
		apiLogs:     store.APILogs,
		rates:       store.Rates,
		rateWriter:  store.Rates,
		rules:       store.Rules,
		orders:      store.Orders,
		shipments:   store.Shipments,
	}, nil
}

func (a *application) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Get().Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		database.Close(a.db)
	}
}
