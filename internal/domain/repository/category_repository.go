package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// CategoryRepository lectura de categorías.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Category, error)
}
