package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza que el append del movimiento y la actualización del snapshot sean una sola unidad.
type TxRunner interface {
	// Run transacción de escritura: Commit si fn devuelve nil, Rollback en cualquier otro caso.
	Run(ctx context.Context, fn func(
		movRepo repository.StockMovementRepository,
		snapRepo repository.StockSnapshotRepository,
	) error) error
	// View lectura con vista consistente (snapshot isolation); nunca ve un movimiento a medio aplicar.
	View(ctx context.Context, fn func(
		movRepo repository.StockMovementRepository,
		snapRepo repository.StockSnapshotRepository,
	) error) error
}

// PairLocker serializa las escrituras sobre un mismo par (producto, bodega).
// Pares distintos no se bloquean entre sí. Si no obtiene el bloqueo a tiempo devuelve
// *domain.ConcurrencyConflictError.
type PairLocker interface {
	Lock(ctx context.Context, pair entity.Pair) (unlock func(), err error)
}

// SnapshotCache caché de lectura para CurrentStock. Se invalida después de cada commit.
type SnapshotCache interface {
	Get(ctx context.Context, pair entity.Pair) (*entity.StockSnapshot, bool)
	Set(ctx context.Context, snapshot *entity.StockSnapshot)
	Invalidate(ctx context.Context, pair entity.Pair)
}

// Observer recibe los resultados de Record (métricas).
type Observer interface {
	MovementRecorded(movement *entity.StockMovement, elapsed time.Duration)
	MovementRejected(kind entity.MovementKind, err error)
}

type nopCache struct{}

func (nopCache) Get(context.Context, entity.Pair) (*entity.StockSnapshot, bool) { return nil, false }
func (nopCache) Set(context.Context, *entity.StockSnapshot)                      {}
func (nopCache) Invalidate(context.Context, entity.Pair)                         {}

type nopObserver struct{}

func (nopObserver) MovementRecorded(*entity.StockMovement, time.Duration) {}
func (nopObserver) MovementRejected(entity.MovementKind, error)           {}
