package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const movementColumns = `id, seq, product_id, warehouse_id, kind, quantity_change, unit_cost,
	reference_type, reference_id, reason, cost_policy, occurred_at, created_at, created_by`

// StockMovementRepo log de movimientos sobre PostgreSQL. Solo inserta: la tabla rechaza
// UPDATE y DELETE por trigger.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Append inserta el movimiento y devuelve en m la seq asignada por la BD.
func (r *StockMovementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, product_id, warehouse_id, kind, quantity_change, unit_cost,
			reference_type, reference_id, reason, cost_policy, occurred_at, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		m.ID, m.ProductID, m.WarehouseID, string(m.Kind), m.QuantityChange, m.UnitCost,
		m.ReferenceType, m.ReferenceID, m.Reason, m.CostPolicy, m.OccurredAt, m.CreatedAt, m.CreatedBy,
	).Scan(&m.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("movimiento %s duplicado: %w", m.ID, err)
		}
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// ListRange movimientos con from <= occurred_at <= to, en orden de kárdex.
func (r *StockMovementRepo) ListRange(ctx context.Context, pair entity.Pair, from, to time.Time) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE product_id = $1 AND warehouse_id = $2 AND occurred_at >= $3 AND occurred_at <= $4
		ORDER BY occurred_at, seq`
	rows, err := r.q.Query(ctx, query, pair.ProductID, pair.WarehouseID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return collectMovements(rows)
}

// SumBefore saldo de apertura: suma de cambios con occurred_at < before.
func (r *StockMovementRepo) SumBefore(ctx context.Context, pair entity.Pair, before time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(quantity_change), 0)
		FROM stock_movements
		WHERE product_id = $1 AND warehouse_id = $2 AND occurred_at < $3`
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query, pair.ProductID, pair.WarehouseID, before).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum stock movements: %w", err)
	}
	return total, nil
}

// ListAll todos los movimientos del par en orden de aplicación (seq).
func (r *StockMovementRepo) ListAll(ctx context.Context, pair entity.Pair) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE product_id = $1 AND warehouse_id = $2
		ORDER BY seq`
	rows, err := r.q.Query(ctx, query, pair.ProductID, pair.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("list all stock movements: %w", err)
	}
	return collectMovements(rows)
}

// ListPairs pares con al menos un movimiento; productID vacío = todos.
func (r *StockMovementRepo) ListPairs(ctx context.Context, productID string) ([]entity.Pair, error) {
	query := `
		SELECT DISTINCT product_id, warehouse_id
		FROM stock_movements
		WHERE $1 = '' OR product_id::text = $1
		ORDER BY product_id, warehouse_id`
	rows, err := r.q.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	pairs := make([]entity.Pair, 0)
	for rows.Next() {
		var p entity.Pair
		if err := rows.Scan(&p.ProductID, &p.WarehouseID); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func collectMovements(rows pgx.Rows) ([]*entity.StockMovement, error) {
	defer rows.Close()
	out := make([]*entity.StockMovement, 0)
	for rows.Next() {
		var m entity.StockMovement
		var kind string
		if err := rows.Scan(
			&m.ID, &m.Seq, &m.ProductID, &m.WarehouseID, &kind, &m.QuantityChange, &m.UnitCost,
			&m.ReferenceType, &m.ReferenceID, &m.Reason, &m.CostPolicy, &m.OccurredAt, &m.CreatedAt, &m.CreatedBy,
		); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		m.Kind = entity.MovementKind(kind)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}
	return out, nil
}
