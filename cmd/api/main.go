package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/jhoicas/stock-ledger/docs"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// @title						Stock Ledger API
// @version					1.0
// @description				Libro de movimientos de stock y valorización a costo promedio.
// @BasePath					/
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Ledger.Store).
		Str("lock_backend", cfg.Ledger.LockBackend).
		Msg("iniciando aplicación")

	policy, err := domaininv.ParseCostPolicy(cfg.Ledger.CostPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("política de costo")
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("almacenamiento del libro")
	}
	defer st.closer()

	// Redis: caché de snapshots y, si se pide, bloqueo distribuido por par
	var (
		snapCache inventory.SnapshotCache
		locker    inventory.PairLocker = lock.NewLocalLocker(cfg.Ledger.LockTimeout)
	)
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		snapCache = cache.NewSnapshotCache(rdb, cfg.Ledger.CacheTTL, log)
		if cfg.Ledger.LockBackend == "redis" {
			locker = lock.NewRedisLocker(rdb, cfg.Ledger.LockTimeout, log)
		}
	}

	m := metrics.New(cfg.App.Name)

	recorder := inventory.NewMovementRecorder(inventory.RecorderDeps{
		TxRunner:   st.txRunner,
		Locker:     locker,
		Products:   st.products,
		Warehouses: st.warehouses,
		Cache:      snapCache,
		Observer:   m,
		Logger:     log,
		CostPolicy: policy,
	})
	query := inventory.NewLedgerQueryService(st.txRunner, st.warehouses, st.categories, snapCache, log)
	rebuilder := inventory.NewSnapshotRebuilder(st.txRunner, locker, snapCache, policy, log)

	if cfg.Ledger.RebuildOnStart {
		n, err := rebuilder.RebuildAll(ctx)
		if err != nil {
			log.Error().Err(err).Int("rebuilt", n).Msg("reconstrucción al arrancar incompleta")
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(m.Middleware())
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    docs.SwaggerInfo.Title,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpRouter.Router(app, httpRouter.NewStockHandler(recorder, query, rebuilder, log))

	go func() {
		addr := cfg.HTTP.Addr()
		log.Info().Str("addr", addr).Msg("servidor HTTP escuchando")
		if err := app.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("servidor HTTP")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("apagando servidor...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("servidor detenido")
}

// store repositorios del libro según LEDGER_STORE.
type store struct {
	txRunner   inventory.TxRunner
	products   repository.ProductRepository
	warehouses repository.WarehouseRepository
	categories repository.CategoryRepository
	closer     func()
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store, error) {
	if cfg.Ledger.Store == "memory" {
		log.Warn().Msg("LEDGER_STORE=memory: los datos no sobreviven al reinicio")
		mem := memory.NewStore(cfg.Ledger.LockTimeout)
		if cfg.Ledger.MasterDataFile == "" {
			log.Warn().Msg("sin LEDGER_MASTER_DATA_FILE: todo movimiento responderá UNKNOWN_REFERENCE")
		} else {
			counts, err := mem.LoadMasterData(cfg.Ledger.MasterDataFile)
			if err != nil {
				return nil, err
			}
			log.Info().
				Str("file", cfg.Ledger.MasterDataFile).
				Int("products", counts.Products).
				Int("warehouses", counts.Warehouses).
				Int("categories", counts.Categories).
				Msg("datos maestros cargados")
		}
		return &store{
			txRunner:   mem,
			products:   mem.Products(),
			warehouses: mem.Warehouses(),
			categories: mem.Categories(),
			closer:     func() {},
		}, nil
	}

	if cfg.DB.Migrate {
		if err := postgres.Migrate(cfg.DB.ConnectionString(), log); err != nil {
			return nil, err
		}
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &store{
		txRunner:   postgres.NewTxRunner(pool, cfg.Ledger.LockTimeout),
		products:   postgres.NewProductRepository(pool),
		warehouses: postgres.NewWarehouseRepository(pool),
		categories: postgres.NewCategoryRepository(pool),
		closer:     pool.Close,
	}, nil
}
