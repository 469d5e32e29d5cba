package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// RecordInput intención de movimiento validada en el borde. Quantity siempre positiva;
// el signo lo deriva el registrador a partir de Kind.
type RecordInput struct {
	ProductID     string
	WarehouseID   string
	Kind          entity.MovementKind
	Quantity      decimal.Decimal
	UnitCost      *decimal.Decimal // obligatorio en PURCHASE; ignorado en el resto
	ReferenceType string
	ReferenceID   string
	Reason        string               // obligatorio en ajustes
	OccurredAt    time.Time            // cero = ahora
	CostPolicy    inventory.CostPolicy // vacío = política configurada
	CreatedBy     string
}

// Pair clave del movimiento.
func (in RecordInput) Pair() entity.Pair {
	return entity.Pair{ProductID: in.ProductID, WarehouseID: in.WarehouseID}
}

// Validate rechaza la entrada antes de cualquier efecto.
func (in RecordInput) Validate() error {
	if !in.Kind.IsValid() {
		return domain.NewInvalidMovement("kind", fmt.Sprintf("desconocido: %q", in.Kind))
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return domain.NewInvalidMovement("product_id", "es requerido")
	}
	if strings.TrimSpace(in.WarehouseID) == "" {
		return domain.NewInvalidMovement("warehouse_id", "es requerido")
	}
	if !in.Quantity.IsPositive() {
		return domain.NewInvalidMovement("quantity", "debe ser mayor que cero")
	}
	if !inventory.FitsStorage(in.Quantity) {
		return domain.NewInvalidMovement("quantity", fmt.Sprintf("máximo %d decimales", inventory.StoragePlaces))
	}
	if in.Kind == entity.KindPurchase {
		if in.UnitCost == nil {
			return domain.NewInvalidMovement("unit_cost", "es requerido en PURCHASE")
		}
		if in.UnitCost.IsNegative() {
			return domain.NewInvalidMovement("unit_cost", "no puede ser negativo")
		}
		if !inventory.FitsStorage(*in.UnitCost) {
			return domain.NewInvalidMovement("unit_cost", fmt.Sprintf("máximo %d decimales", inventory.StoragePlaces))
		}
	}
	if in.Kind.IsAdjustment() && strings.TrimSpace(in.Reason) == "" {
		return domain.NewInvalidMovement("reason", "es requerido en ajustes")
	}
	switch in.CostPolicy {
	case "", inventory.CostPolicyWeightedAverage, inventory.CostPolicyOverwrite:
	default:
		return domain.NewInvalidMovement("cost_policy", fmt.Sprintf("desconocida: %q", in.CostPolicy))
	}
	return nil
}

// RecorderDeps dependencias del registrador.
type RecorderDeps struct {
	TxRunner   TxRunner
	Locker     PairLocker
	Products   repository.ProductRepository
	Warehouses repository.WarehouseRepository
	Cache      SnapshotCache // opcional
	Observer   Observer      // opcional
	Logger     *logger.Logger
	CostPolicy inventory.CostPolicy // política por defecto
	Now        func() time.Time     // opcional, para tests
}

// MovementRecorder único camino de escritura al libro de stock.
type MovementRecorder struct {
	txRunner   TxRunner
	locker     PairLocker
	products   repository.ProductRepository
	warehouses repository.WarehouseRepository
	cache      SnapshotCache
	observer   Observer
	log        *logger.Logger
	policy     inventory.CostPolicy
	now        func() time.Time
}

// NewMovementRecorder construye el registrador.
func NewMovementRecorder(deps RecorderDeps) *MovementRecorder {
	r := &MovementRecorder{
		txRunner:   deps.TxRunner,
		locker:     deps.Locker,
		products:   deps.Products,
		warehouses: deps.Warehouses,
		cache:      deps.Cache,
		observer:   deps.Observer,
		log:        deps.Logger,
		policy:     deps.CostPolicy,
		now:        deps.Now,
	}
	if r.cache == nil {
		r.cache = nopCache{}
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	r.log = r.log.Component("movement_recorder")
	if r.policy == "" {
		r.policy = inventory.CostPolicyWeightedAverage
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// Record valida, bloquea el par, verifica stock en salidas, inserta el movimiento y aplica el
// snapshot en la misma transacción. O se confirma todo o no queda nada escrito.
func (r *MovementRecorder) Record(ctx context.Context, in RecordInput) (*entity.StockMovement, error) {
	start := time.Now()
	mov, err := r.record(ctx, in)
	if err != nil {
		r.observer.MovementRejected(in.Kind, err)
		ev := r.log.Warn()
		if !isRejection(err) {
			ev = r.log.Error()
		}
		ev.Err(err).
			Str("product_id", in.ProductID).
			Str("warehouse_id", in.WarehouseID).
			Str("kind", in.Kind.String()).
			Str("quantity", in.Quantity.String()).
			Msg("movimiento rechazado")
		return nil, err
	}
	r.observer.MovementRecorded(mov, time.Since(start))
	r.log.Debug().
		Str("movement_id", mov.ID).
		Int64("seq", mov.Seq).
		Str("kind", mov.Kind.String()).
		Str("quantity_change", mov.QuantityChange.String()).
		Str("unit_cost", mov.UnitCost.String()).
		Msg("movimiento registrado")
	return mov, nil
}

func (r *MovementRecorder) record(ctx context.Context, in RecordInput) (*entity.StockMovement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkReferences(ctx, in.ProductID, in.WarehouseID); err != nil {
		return nil, err
	}

	pair := in.Pair()
	unlock, err := r.locker.Lock(ctx, pair)
	if err != nil {
		return nil, asConflict(pair, err)
	}
	defer unlock()

	// Misma resolución que timestamptz: ambos almacenes ven el mismo instante
	now := r.now().Truncate(time.Microsecond)
	occurredAt := in.OccurredAt.Truncate(time.Microsecond)
	if occurredAt.IsZero() {
		occurredAt = now
	}
	policy := in.CostPolicy
	if policy == "" {
		policy = r.policy
	}

	var recorded *entity.StockMovement
	err = r.txRunner.Run(ctx, func(movRepo repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		// Bloquea el par (SELECT FOR UPDATE) antes del check-then-act
		snap, err := snapRepo.GetForUpdate(ctx, pair)
		if err != nil {
			return err
		}
		if in.Kind.IsOutbound() && snap.QuantityOnHand.LessThan(in.Quantity) {
			return &domain.InsufficientStockError{
				ProductID:   in.ProductID,
				WarehouseID: in.WarehouseID,
				Requested:   in.Quantity,
				Available:   snap.QuantityOnHand,
			}
		}

		mov := &entity.StockMovement{
			ID:             uuid.New().String(),
			ProductID:      in.ProductID,
			WarehouseID:    in.WarehouseID,
			Kind:           in.Kind,
			QuantityChange: in.Kind.Signed(in.Quantity),
			ReferenceType:  in.ReferenceType,
			ReferenceID:    in.ReferenceID,
			Reason:         strings.TrimSpace(in.Reason),
			OccurredAt:     occurredAt,
			CreatedAt:      now,
			CreatedBy:      in.CreatedBy,
		}
		if in.Kind == entity.KindPurchase {
			mov.UnitCost = *in.UnitCost
			mov.CostPolicy = string(policy)
		} else {
			// Capa de costo congelada al momento de la transacción
			mov.UnitCost = snap.AverageUnitCost
		}
		if err := movRepo.Append(ctx, mov); err != nil {
			return err
		}

		next := inventory.Apply(*snap, mov, policy)
		next.UpdatedAt = now
		if err := snapRepo.Upsert(ctx, &next); err != nil {
			return err
		}
		recorded = mov
		return nil
	})
	if err != nil {
		return nil, asConflict(pair, err)
	}
	r.cache.Invalidate(ctx, pair)
	return recorded, nil
}

func (r *MovementRecorder) checkReferences(ctx context.Context, productID, warehouseID string) error {
	product, err := r.products.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("consultar producto: %w", err)
	}
	if product == nil {
		return &domain.UnknownReferenceError{Entity: "product", ID: productID}
	}
	wh, err := r.warehouses.GetByID(ctx, warehouseID)
	if err != nil {
		return fmt.Errorf("consultar bodega: %w", err)
	}
	if wh == nil {
		return &domain.UnknownReferenceError{Entity: "warehouse", ID: warehouseID}
	}
	return nil
}

// BatchLineError falla en una línea de RecordBatch; las líneas anteriores quedaron registradas.
type BatchLineError struct {
	Index int
	Err   error
}

func (e *BatchLineError) Error() string {
	return fmt.Sprintf("línea %d: %v", e.Index+1, e.Err)
}

func (e *BatchLineError) Unwrap() error { return e.Err }

// RecordBatch registra varias líneas en orden (ej. un ajuste con varios productos).
// Valida todas las líneas antes de escribir; luego cada línea es su propia unidad atómica y el
// proceso se detiene en la primera que falle.
func (r *MovementRecorder) RecordBatch(ctx context.Context, lines []RecordInput) ([]*entity.StockMovement, error) {
	if len(lines) == 0 {
		return nil, domain.NewInvalidMovement("items", "debe contener al menos una línea")
	}
	for i, in := range lines {
		if err := in.Validate(); err != nil {
			return nil, &BatchLineError{Index: i, Err: err}
		}
	}
	out := make([]*entity.StockMovement, 0, len(lines))
	for i, in := range lines {
		mov, err := r.Record(ctx, in)
		if err != nil {
			return out, &BatchLineError{Index: i, Err: err}
		}
		out = append(out, mov)
	}
	return out, nil
}

// isRejection errores esperables del negocio (se loguean como warn, no como error).
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidMovement) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrUnknownReference) ||
		errors.Is(err, domain.ErrConcurrencyConflict)
}

// asConflict completa los conflictos que vienen de infraestructura con el par afectado.
func asConflict(pair entity.Pair, err error) error {
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		return err
	}
	var cce *domain.ConcurrencyConflictError
	if errors.As(err, &cce) && cce.ProductID != "" {
		return err
	}
	return &domain.ConcurrencyConflictError{ProductID: pair.ProductID, WarehouseID: pair.WarehouseID, Cause: err}
}
