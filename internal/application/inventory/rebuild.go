package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// SnapshotRebuilder recupera snapshots desde el log: si difieren, manda el log.
type SnapshotRebuilder struct {
	txRunner TxRunner
	locker   PairLocker
	cache    SnapshotCache
	policy   inventory.CostPolicy
	log      *logger.Logger
}

// NewSnapshotRebuilder construye el reconstructor. cache puede ser nil.
func NewSnapshotRebuilder(txRunner TxRunner, locker PairLocker, cache SnapshotCache, policy inventory.CostPolicy, log *logger.Logger) *SnapshotRebuilder {
	if cache == nil {
		cache = nopCache{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if policy == "" {
		policy = inventory.CostPolicyWeightedAverage
	}
	return &SnapshotRebuilder{txRunner: txRunner, locker: locker, cache: cache, policy: policy, log: log.Component("snapshot_rebuilder")}
}

// Rebuild pliega todos los movimientos del par desde cero y sobrescribe el snapshot,
// con el mismo bloqueo que usa el registrador.
func (b *SnapshotRebuilder) Rebuild(ctx context.Context, productID, warehouseID string) (*entity.StockSnapshot, error) {
	pair, err := requirePair(productID, warehouseID)
	if err != nil {
		return nil, err
	}
	unlock, err := b.locker.Lock(ctx, pair)
	if err != nil {
		return nil, asConflict(pair, err)
	}
	defer unlock()

	var rebuilt entity.StockSnapshot
	var before *entity.StockSnapshot
	err = b.txRunner.Run(ctx, func(movRepo repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		var err error
		if before, err = snapRepo.GetForUpdate(ctx, pair); err != nil {
			return err
		}
		movs, err := movRepo.ListAll(ctx, pair)
		if err != nil {
			return err
		}
		rebuilt = inventory.Replay(pair.ProductID, pair.WarehouseID, movs, b.policy)
		return snapRepo.Upsert(ctx, &rebuilt)
	})
	if err != nil {
		return nil, asConflict(pair, fmt.Errorf("reconstruir snapshot: %w", err))
	}
	b.cache.Invalidate(ctx, pair)

	drift := inventory.Drift{Stored: *before, Replayed: rebuilt}
	ev := b.log.Info()
	if !drift.InSync() {
		ev = b.log.Warn()
	}
	ev.Str("product_id", pair.ProductID).
		Str("warehouse_id", pair.WarehouseID).
		Str("stored_qty", before.QuantityOnHand.String()).
		Str("replayed_qty", rebuilt.QuantityOnHand.String()).
		Str("stored_cost", before.AverageUnitCost.String()).
		Str("replayed_cost", rebuilt.AverageUnitCost.String()).
		Bool("in_sync", drift.InSync()).
		Msg("snapshot reconstruido")
	return &rebuilt, nil
}

// Verify compara el snapshot con el replay del log sin escribir nada.
func (b *SnapshotRebuilder) Verify(ctx context.Context, productID, warehouseID string) (*inventory.Drift, error) {
	pair, err := requirePair(productID, warehouseID)
	if err != nil {
		return nil, err
	}
	var drift inventory.Drift
	err = b.txRunner.View(ctx, func(movRepo repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		stored, err := snapRepo.Get(ctx, pair)
		if err != nil {
			return err
		}
		movs, err := movRepo.ListAll(ctx, pair)
		if err != nil {
			return err
		}
		drift.Stored = *stored
		drift.Replayed = inventory.Replay(pair.ProductID, pair.WarehouseID, movs, b.policy)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verificar snapshot: %w", err)
	}
	return &drift, nil
}

// RebuildAll reconstruye todos los pares con historial. Sigue ante errores y los devuelve juntos.
func (b *SnapshotRebuilder) RebuildAll(ctx context.Context) (int, error) {
	start := time.Now()
	var pairs []entity.Pair
	err := b.txRunner.View(ctx, func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
		var err error
		pairs, err = movRepo.ListPairs(ctx, "")
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("listar pares: %w", err)
	}
	var errs []error
	done := 0
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := b.Rebuild(ctx, p.ProductID, p.WarehouseID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Key(), err))
			continue
		}
		done++
	}
	b.log.Info().Int("pairs", len(pairs)).Int("rebuilt", done).Dur("elapsed", time.Since(start)).Msg("reconstrucción completa")
	return done, errors.Join(errs...)
}
