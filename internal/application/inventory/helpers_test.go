package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	prodA = "prod-a"
	prodB = "prod-b"
	whA   = "wh-a"
	whB   = "wh-b"
	catA  = "cat-a"
)

type fixture struct {
	store     *memory.Store
	recorder  *appinv.MovementRecorder
	query     *appinv.LedgerQueryService
	rebuilder *appinv.SnapshotRebuilder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(time.Second)
	store.PutCategory(entity.Category{ID: catA, Name: "Bebidas"})
	store.PutProduct(entity.Product{ID: prodA, CategoryID: catA, Name: "Agua"})
	store.PutProduct(entity.Product{ID: prodB, Name: "Café"})
	store.PutWarehouse(entity.Warehouse{ID: whA, Name: "Principal"})
	store.PutWarehouse(entity.Warehouse{ID: whB, Name: "Norte"})

	locker := lock.NewLocalLocker(time.Second)
	return &fixture{
		store: store,
		recorder: appinv.NewMovementRecorder(appinv.RecorderDeps{
			TxRunner:   store,
			Locker:     locker,
			Products:   store.Products(),
			Warehouses: store.Warehouses(),
		}),
		query:     appinv.NewLedgerQueryService(store, store.Warehouses(), store.Categories(), nil, nil),
		rebuilder: appinv.NewSnapshotRebuilder(store, locker, nil, "", nil),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func at(day int) time.Time {
	return time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC)
}

func purchase(product, warehouse, qty, cost string, day int) appinv.RecordInput {
	return appinv.RecordInput{
		ProductID: product, WarehouseID: warehouse, Kind: entity.KindPurchase,
		Quantity: dec(qty), UnitCost: decPtr(cost), OccurredAt: at(day),
		ReferenceType: "purchase_order", ReferenceID: "po-1",
	}
}

func outbound(kind entity.MovementKind, product, warehouse, qty string, day int) appinv.RecordInput {
	in := appinv.RecordInput{
		ProductID: product, WarehouseID: warehouse, Kind: kind,
		Quantity: dec(qty), OccurredAt: at(day),
	}
	if kind.IsAdjustment() {
		in.Reason = "conteo físico"
	}
	return in
}

func (f *fixture) mustRecord(t *testing.T, in appinv.RecordInput) *entity.StockMovement {
	t.Helper()
	mov, err := f.recorder.Record(context.Background(), in)
	require.NoError(t, err)
	return mov
}

func (f *fixture) current(t *testing.T, product, warehouse string) *entity.StockSnapshot {
	t.Helper()
	snap, err := f.query.CurrentStock(context.Background(), product, warehouse)
	require.NoError(t, err)
	return snap
}
