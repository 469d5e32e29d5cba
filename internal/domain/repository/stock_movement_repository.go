package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// StockMovementRepository puerto del log de movimientos: solo inserción y lectura.
type StockMovementRepository interface {
	// Append inserta el movimiento y asigna ID (si falta) y Seq.
	Append(ctx context.Context, movement *entity.StockMovement) error
	// ListRange movimientos del par con from <= occurred_at <= to, ordenados por (occurred_at, seq).
	ListRange(ctx context.Context, pair entity.Pair, from, to time.Time) ([]*entity.StockMovement, error)
	// SumBefore suma de quantity_change con occurred_at < before.
	SumBefore(ctx context.Context, pair entity.Pair, before time.Time) (decimal.Decimal, error)
	// ListAll historial completo del par en orden de aplicación (seq ascendente).
	ListAll(ctx context.Context, pair entity.Pair) ([]*entity.StockMovement, error)
	// ListPairs pares con al menos un movimiento; productID vacío = todos.
	ListPairs(ctx context.Context, productID string) ([]entity.Pair, error)
}
