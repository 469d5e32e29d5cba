package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// WarehouseRepository lectura de datos maestros de bodegas.
type WarehouseRepository interface {
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
	// ListByIDs omite los IDs inexistentes; orden por nombre.
	ListByIDs(ctx context.Context, ids []string) ([]*entity.Warehouse, error)
}
