package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockSnapshotRepository = (*StockSnapshotRepo)(nil)

// StockSnapshotRepo estado materializado por par (tabla stock_snapshots).
type StockSnapshotRepo struct {
	q Querier
}

// NewStockSnapshotRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockSnapshotRepository(q Querier) *StockSnapshotRepo {
	return &StockSnapshotRepo{q: q}
}

const snapshotSelect = `
	SELECT product_id, warehouse_id, quantity_on_hand, average_unit_cost, last_movement_at, updated_at
	FROM stock_snapshots WHERE product_id = $1 AND warehouse_id = $2`

// Get snapshot del par; sin fila devuelve el estado cero.
func (r *StockSnapshotRepo) Get(ctx context.Context, pair entity.Pair) (*entity.StockSnapshot, error) {
	if !validID(pair.ProductID) || !validID(pair.WarehouseID) {
		return entity.NewEmptySnapshot(pair.ProductID, pair.WarehouseID), nil
	}
	s, err := r.scan(r.q.QueryRow(ctx, snapshotSelect, pair.ProductID, pair.WarehouseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.NewEmptySnapshot(pair.ProductID, pair.WarehouseID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock snapshot: %w", err)
	}
	return s, nil
}

// GetForUpdate bloquea la fila del par (SELECT FOR UPDATE). FOR UPDATE no bloquea filas que no
// existen, así que primero se inserta la fila cero si falta.
func (r *StockSnapshotRepo) GetForUpdate(ctx context.Context, pair entity.Pair) (*entity.StockSnapshot, error) {
	if !validID(pair.ProductID) {
		return nil, &domain.UnknownReferenceError{Entity: "product", ID: pair.ProductID}
	}
	if !validID(pair.WarehouseID) {
		return nil, &domain.UnknownReferenceError{Entity: "warehouse", ID: pair.WarehouseID}
	}
	insert := `
		INSERT INTO stock_snapshots (product_id, warehouse_id, quantity_on_hand, average_unit_cost, updated_at)
		VALUES ($1, $2, 0, 0, now())
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, pair.ProductID, pair.WarehouseID); err != nil {
		return nil, fmt.Errorf("init stock snapshot: %w", err)
	}
	s, err := r.scan(r.q.QueryRow(ctx, snapshotSelect+` FOR UPDATE`, pair.ProductID, pair.WarehouseID))
	if err != nil {
		return nil, fmt.Errorf("get stock snapshot for update: %w", err)
	}
	return s, nil
}

// Upsert escribe el snapshot completo del par.
func (r *StockSnapshotRepo) Upsert(ctx context.Context, s *entity.StockSnapshot) error {
	query := `
		INSERT INTO stock_snapshots (product_id, warehouse_id, quantity_on_hand, average_unit_cost, last_movement_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (product_id, warehouse_id) DO UPDATE SET
			quantity_on_hand = EXCLUDED.quantity_on_hand,
			average_unit_cost = EXCLUDED.average_unit_cost,
			last_movement_at = EXCLUDED.last_movement_at,
			updated_at = EXCLUDED.updated_at`
	var updatedAt any
	if !s.UpdatedAt.IsZero() {
		updatedAt = s.UpdatedAt
	}
	_, err := r.q.Exec(ctx, query,
		s.ProductID, s.WarehouseID, s.QuantityOnHand, s.AverageUnitCost, s.LastMovementAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert stock snapshot: %w", err)
	}
	return nil
}

// ListByWarehouse snapshots de la bodega unidos a productos, paginado por nombre.
func (r *StockSnapshotRepo) ListByWarehouse(ctx context.Context, f repository.InventoryFilter) ([]*repository.InventoryRow, int, error) {
	where := `s.warehouse_id = $1 AND ($2 = '' OR p.category_id::text = $2)`

	var total int
	countQuery := `SELECT COUNT(*) FROM stock_snapshots s JOIN products p ON p.id = s.product_id WHERE ` + where
	if err := r.q.QueryRow(ctx, countQuery, f.WarehouseID, f.CategoryID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inventory: %w", err)
	}

	query := `
		SELECT p.id, COALESCE(p.category_id::text, ''), p.name, COALESCE(p.unit_measure, ''), COALESCE(p.hsn_code, ''),
			p.created_at, p.updated_at,
			s.quantity_on_hand, s.average_unit_cost, s.last_movement_at, s.updated_at
		FROM stock_snapshots s
		JOIN products p ON p.id = s.product_id
		WHERE ` + where + `
		ORDER BY lower(p.name), p.id
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, f.WarehouseID, f.CategoryID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	out := make([]*repository.InventoryRow, 0)
	for rows.Next() {
		var row repository.InventoryRow
		if err := rows.Scan(
			&row.Product.ID, &row.Product.CategoryID, &row.Product.Name, &row.Product.UnitMeasure, &row.Product.HSNCode,
			&row.Product.CreatedAt, &row.Product.UpdatedAt,
			&row.Snapshot.QuantityOnHand, &row.Snapshot.AverageUnitCost, &row.Snapshot.LastMovementAt, &row.Snapshot.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan inventory row: %w", err)
		}
		row.Snapshot.ProductID = row.Product.ID
		row.Snapshot.WarehouseID = f.WarehouseID
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate inventory: %w", err)
	}
	return out, total, nil
}

func (r *StockSnapshotRepo) scan(row pgx.Row) (*entity.StockSnapshot, error) {
	var s entity.StockSnapshot
	if err := row.Scan(&s.ProductID, &s.WarehouseID, &s.QuantityOnHand, &s.AverageUnitCost, &s.LastMovementAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
