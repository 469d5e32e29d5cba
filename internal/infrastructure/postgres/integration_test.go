//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	appinv "github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// newTestPool levanta PostgreSQL en un contenedor, aplica las migraciones y devuelve el pool.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stock_ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn, logger.Nop()))

	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn, MaxConns: 10})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedMasterData(t *testing.T, pool *pgxpool.Pool) (productID, warehouseID string) {
	t.Helper()
	productID, warehouseID = uuid.NewString(), uuid.NewString()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `INSERT INTO products (id, name) VALUES ($1, 'Aceite')`, productID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO warehouses (id, name) VALUES ($1, 'Central')`, warehouseID)
	require.NoError(t, err)
	return productID, warehouseID
}

func TestPostgres_LibroCompleto(t *testing.T) {
	pool := newTestPool(t)
	productID, warehouseID := seedMasterData(t, pool)

	txRunner := postgres.NewTxRunner(pool, 2*time.Second)
	locker := lock.NewLocalLocker(2 * time.Second)
	rec := appinv.NewMovementRecorder(appinv.RecorderDeps{
		TxRunner:   txRunner,
		Locker:     locker,
		Products:   postgres.NewProductRepository(pool),
		Warehouses: postgres.NewWarehouseRepository(pool),
	})
	query := appinv.NewLedgerQueryService(txRunner, postgres.NewWarehouseRepository(pool), postgres.NewCategoryRepository(pool), nil, nil)
	rebuilder := appinv.NewSnapshotRebuilder(txRunner, locker, nil, "", nil)
	ctx := context.Background()

	day := func(n int) time.Time { return time.Date(2024, 6, n, 12, 0, 0, 0, time.UTC) }
	cost := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }

	_, err := rec.Record(ctx, appinv.RecordInput{ProductID: productID, WarehouseID: warehouseID, Kind: entity.KindPurchase, Quantity: decimal.NewFromInt(10), UnitCost: cost("50"), OccurredAt: day(1)})
	require.NoError(t, err)
	_, err = rec.Record(ctx, appinv.RecordInput{ProductID: productID, WarehouseID: warehouseID, Kind: entity.KindPurchase, Quantity: decimal.NewFromInt(10), UnitCost: cost("78"), OccurredAt: day(2)})
	require.NoError(t, err)
	_, err = rec.Record(ctx, appinv.RecordInput{ProductID: productID, WarehouseID: warehouseID, Kind: entity.KindSale, Quantity: decimal.NewFromInt(5), OccurredAt: day(3)})
	require.NoError(t, err)

	snap, err := query.CurrentStock(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, snap.QuantityOnHand.Equal(decimal.NewFromInt(15)))
	assert.True(t, snap.AverageUnitCost.Equal(decimal.NewFromInt(64)))

	ledger, err := query.MovementHistory(ctx, productID, warehouseID, day(2), day(3))
	require.NoError(t, err)
	assert.True(t, ledger.Opening.Equal(decimal.NewFromInt(10)))
	require.Len(t, ledger.Rows, 2)
	assert.True(t, ledger.Closing.Equal(decimal.NewFromInt(15)))

	drift, err := rebuilder.Verify(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, drift.InSync())

	_, err = rec.Record(ctx, appinv.RecordInput{ProductID: productID, WarehouseID: uuid.NewString(), Kind: entity.KindSale, Quantity: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, domain.ErrUnknownReference))
}

func TestPostgres_SalidasConcurrentes(t *testing.T) {
	pool := newTestPool(t)
	productID, warehouseID := seedMasterData(t, pool)
	txRunner := postgres.NewTxRunner(pool, 2*time.Second)

	// Dos registradores con bloqueadores independientes simulan dos réplicas:
	// solo el SELECT FOR UPDATE los serializa.
	newRecorder := func() *appinv.MovementRecorder {
		return appinv.NewMovementRecorder(appinv.RecorderDeps{
			TxRunner:   txRunner,
			Locker:     lock.NewLocalLocker(time.Second),
			Products:   postgres.NewProductRepository(pool),
			Warehouses: postgres.NewWarehouseRepository(pool),
		})
	}
	ctx := context.Background()
	unitCost := decimal.NewFromInt(3)
	_, err := newRecorder().Record(ctx, appinv.RecordInput{ProductID: productID, WarehouseID: warehouseID, Kind: entity.KindPurchase, Quantity: decimal.NewFromInt(10), UnitCost: &unitCost})
	require.NoError(t, err)

	recs := []*appinv.MovementRecorder{newRecorder(), newRecorder()}
	errs := make([]error, len(recs))
	var wg sync.WaitGroup
	for i, r := range recs {
		wg.Add(1)
		go func(i int, r *appinv.MovementRecorder) {
			defer wg.Done()
			_, errs[i] = r.Record(ctx, appinv.RecordInput{ProductID: productID, WarehouseID: warehouseID, Kind: entity.KindSale, Quantity: decimal.NewFromInt(8)})
		}(i, r)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInsufficientStock), err)
	}
	assert.Equal(t, 1, ok)
}

func TestPostgres_MovimientosSonInmutables(t *testing.T) {
	pool := newTestPool(t)
	productID, warehouseID := seedMasterData(t, pool)
	txRunner := postgres.NewTxRunner(pool, time.Second)
	rec := appinv.NewMovementRecorder(appinv.RecorderDeps{
		TxRunner:   txRunner,
		Locker:     lock.NewLocalLocker(time.Second),
		Products:   postgres.NewProductRepository(pool),
		Warehouses: postgres.NewWarehouseRepository(pool),
	})
	unitCost := decimal.NewFromInt(1)
	mov, err := rec.Record(context.Background(), appinv.RecordInput{ProductID: productID, WarehouseID: warehouseID, Kind: entity.KindPurchase, Quantity: decimal.NewFromInt(1), UnitCost: &unitCost})
	require.NoError(t, err)

	_, err = pool.Exec(context.Background(), `UPDATE stock_movements SET quantity_change = 99 WHERE id = $1`, mov.ID)
	assert.Error(t, err)
	_, err = pool.Exec(context.Background(), `DELETE FROM stock_movements WHERE id = $1`, mov.ID)
	assert.Error(t, err)
}
