package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.StockMovementRepository = (*movementRepo)(nil)
	_ repository.StockSnapshotRepository = (*snapshotRepo)(nil)
)

var errReadOnly = errors.New("transacción de solo lectura")

type movementRepo struct {
	tx *tx
}

// Append asigna ID y Seq y deja el movimiento pendiente hasta el commit.
func (r *movementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	if r.tx.readOnly {
		return errReadOnly
	}
	if err := r.tx.lock(ctx, m.Pair()); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Seq = r.tx.store.seq.Add(1)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	cp := *m
	key := m.Pair().Key()
	r.tx.pending[key] = append(r.tx.pending[key], &cp)
	return nil
}

func (r *movementRepo) ListRange(_ context.Context, pair entity.Pair, from, to time.Time) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.tx.movements(pair) {
		if m.OccurredAt.Before(from) || m.OccurredAt.After(to) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (r *movementRepo) SumBefore(_ context.Context, pair entity.Pair, before time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range r.tx.movements(pair) {
		if m.OccurredAt.Before(before) {
			total = total.Add(m.QuantityChange)
		}
	}
	return total, nil
}

func (r *movementRepo) ListAll(_ context.Context, pair entity.Pair) ([]*entity.StockMovement, error) {
	movs := r.tx.movements(pair)
	out := make([]*entity.StockMovement, 0, len(movs))
	for _, m := range movs {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *movementRepo) ListPairs(_ context.Context, productID string) ([]entity.Pair, error) {
	all := r.tx.store.allPairs()
	if productID == "" {
		return all, nil
	}
	out := make([]entity.Pair, 0)
	for _, p := range all {
		if p.ProductID == productID {
			out = append(out, p)
		}
	}
	return out, nil
}

type snapshotRepo struct {
	tx *tx
}

func (r *snapshotRepo) Get(_ context.Context, pair entity.Pair) (*entity.StockSnapshot, error) {
	return r.tx.snapshot(pair), nil
}

func (r *snapshotRepo) GetForUpdate(ctx context.Context, pair entity.Pair) (*entity.StockSnapshot, error) {
	if r.tx.readOnly {
		return nil, errReadOnly
	}
	if err := r.tx.lock(ctx, pair); err != nil {
		return nil, err
	}
	return r.tx.snapshot(pair), nil
}

func (r *snapshotRepo) Upsert(ctx context.Context, s *entity.StockSnapshot) error {
	if r.tx.readOnly {
		return errReadOnly
	}
	if err := r.tx.lock(ctx, s.Pair()); err != nil {
		return err
	}
	cp := *s
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	r.tx.staged[s.Pair().Key()] = &cp
	return nil
}

// ListByWarehouse une snapshots con productos; orden por nombre de producto e ID.
func (r *snapshotRepo) ListByWarehouse(_ context.Context, f repository.InventoryFilter) ([]*repository.InventoryRow, int, error) {
	var rows []*repository.InventoryRow
	for _, pair := range r.tx.store.allPairs() {
		if pair.WarehouseID != f.WarehouseID {
			continue
		}
		product := r.tx.store.product(pair.ProductID)
		if product == nil {
			continue
		}
		if f.CategoryID != "" && product.CategoryID != f.CategoryID {
			continue
		}
		rows = append(rows, &repository.InventoryRow{Product: *product, Snapshot: *r.tx.snapshot(pair)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].Product.Name), strings.ToLower(rows[j].Product.Name)
		if a != b {
			return a < b
		}
		return rows[i].Product.ID < rows[j].Product.ID
	})
	total := len(rows)
	if f.Offset >= total {
		return []*repository.InventoryRow{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return rows[f.Offset:end], total, nil
}
