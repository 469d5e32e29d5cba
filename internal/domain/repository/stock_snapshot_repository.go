package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockSnapshotRepository puerto del estado materializado por (producto, bodega).
// Usado dentro de transacciones para garantizar consistencia con el log.
type StockSnapshotRepository interface {
	// Get devuelve el snapshot o el estado cero si el par no tiene movimientos.
	Get(ctx context.Context, pair entity.Pair) (*entity.StockSnapshot, error)
	// GetForUpdate igual que Get pero bloquea el par hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, pair entity.Pair) (*entity.StockSnapshot, error)
	Upsert(ctx context.Context, snapshot *entity.StockSnapshot) error
	// ListByWarehouse snapshots de una bodega filtrados por categoría (vacía = todas), paginado.
	ListByWarehouse(ctx context.Context, filter InventoryFilter) ([]*InventoryRow, int, error)
}

// InventoryFilter filtros del listado de inventario.
type InventoryFilter struct {
	WarehouseID string
	CategoryID  string
	Limit       int
	Offset      int
}

// InventoryRow snapshot unido con los datos maestros del producto.
type InventoryRow struct {
	Product  entity.Product
	Snapshot entity.StockSnapshot
}
