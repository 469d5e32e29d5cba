// seed_opening carga saldos iniciales de stock desde un CSV exportado de hoja de cálculo.
// Cada línea se registra como una compra (PURCHASE, referencia OPENING) a través del
// registrador, así el log y los snapshots quedan consistentes desde el primer día.
//
// Uso: go run ./cmd/seed_opening [-delimiter ';'] [-dry-run] saldos.csv
// Columnas: product_id, warehouse_id, quantity, unit_cost y opcionales occurred_at, reference_id.
// Acepta UTF-8 (con o sin BOM) e ISO-8859-1.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	delimiter := flag.String("delimiter", ",", "separador de campos")
	dryRun := flag.Bool("dry-run", false, "solo validar el archivo")
	flag.Parse()
	if flag.NArg() != 1 || len([]rune(*delimiter)) != 1 {
		fmt.Fprintln(os.Stderr, "uso: seed_opening [-delimiter ';'] [-dry-run] archivo.csv")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	lines, err := parseOpening(f, []rune(*delimiter)[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		fmt.Printf("%d líneas válidas\n", len(lines))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	policy, err := domaininv.ParseCostPolicy(cfg.Ledger.CostPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("política de costo")
	}

	ctx := context.Background()
	if cfg.DB.Migrate {
		if err := postgres.Migrate(cfg.DB.ConnectionString(), log); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	recorder := inventory.NewMovementRecorder(inventory.RecorderDeps{
		TxRunner:   postgres.NewTxRunner(pool, cfg.Ledger.LockTimeout),
		Locker:     lock.NewLocalLocker(cfg.Ledger.LockTimeout),
		Products:   postgres.NewProductRepository(pool),
		Warehouses: postgres.NewWarehouseRepository(pool),
		Logger:     log,
		CostPolicy: policy,
	})

	imported, failed := 0, 0
	for _, l := range lines {
		lineCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		mov, err := recorder.Record(lineCtx, l.input())
		cancel()
		if err != nil {
			failed++
			log.Error().Err(err).Int("line", l.Line).Str("product_id", l.ProductID).Str("warehouse_id", l.WarehouseID).Msg("saldo inicial rechazado")
			continue
		}
		imported++
		log.Debug().Int("line", l.Line).Str("movement_id", mov.ID).Msg("saldo inicial registrado")
	}
	fmt.Printf("Importadas %d líneas, %d rechazadas\n", imported, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
