package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var pair = entity.Pair{ProductID: "p1", WarehouseID: "w1"}

func movement(qty string, at time.Time) *entity.StockMovement {
	return &entity.StockMovement{
		ProductID: pair.ProductID, WarehouseID: pair.WarehouseID, Kind: entity.KindPurchase,
		QuantityChange: decimal.RequireFromString(qty), UnitCost: decimal.NewFromInt(1), OccurredAt: at,
	}
}

func TestRun_RollbackSiFnFalla(t *testing.T) {
	s := NewStore(time.Second)
	boom := errors.New("boom")
	err := s.Run(context.Background(), func(movRepo repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		require.NoError(t, movRepo.Append(context.Background(), movement("5", time.Now())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View(context.Background(), func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
		movs, err := movRepo.ListAll(context.Background(), pair)
		require.NoError(t, err)
		assert.Empty(t, movs)
		return nil
	})
	require.NoError(t, err)
}

func TestRun_AsignaSeqCreciente(t *testing.T) {
	s := NewStore(time.Second)
	var seqs []int64
	for i := 0; i < 3; i++ {
		err := s.Run(context.Background(), func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
			m := movement("1", time.Now())
			if err := movRepo.Append(context.Background(), m); err != nil {
				return err
			}
			seqs = append(seqs, m.Seq)
			assert.NotEmpty(t, m.ID)
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}

func TestView_NoVeEscriturasSinCommit(t *testing.T) {
	s := NewStore(time.Second)
	started := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- s.Run(context.Background(), func(movRepo repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
			if err := movRepo.Append(context.Background(), movement("4", time.Now())); err != nil {
				return err
			}
			snap := entity.NewEmptySnapshot(pair.ProductID, pair.WarehouseID)
			snap.QuantityOnHand = decimal.NewFromInt(4)
			if err := snapRepo.Upsert(context.Background(), snap); err != nil {
				return err
			}
			close(started)
			<-proceed
			return nil
		})
	}()
	<-started

	err := s.View(context.Background(), func(movRepo repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		snap, err := snapRepo.Get(context.Background(), pair)
		require.NoError(t, err)
		assert.True(t, snap.QuantityOnHand.IsZero())
		sum, err := movRepo.SumBefore(context.Background(), pair, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
		return nil
	})
	require.NoError(t, err)

	close(proceed)
	require.NoError(t, <-done)

	err = s.View(context.Background(), func(_ repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		snap, err := snapRepo.Get(context.Background(), pair)
		require.NoError(t, err)
		assert.True(t, snap.QuantityOnHand.Equal(decimal.NewFromInt(4)))
		return nil
	})
	require.NoError(t, err)
}

func TestGetForUpdate_TimeoutEsConflicto(t *testing.T) {
	s := NewStore(30 * time.Millisecond)
	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.Run(context.Background(), func(_ repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
			if _, err := snapRepo.GetForUpdate(context.Background(), pair); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	err := s.Run(context.Background(), func(_ repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		_, err := snapRepo.GetForUpdate(context.Background(), pair)
		return err
	})
	require.Error(t, err)
	var cce *domain.ConcurrencyConflictError
	require.True(t, errors.As(err, &cce))
	assert.Equal(t, pair.ProductID, cce.ProductID)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestView_RechazaEscrituras(t *testing.T) {
	s := NewStore(time.Second)
	err := s.View(context.Background(), func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
		return movRepo.Append(context.Background(), movement("1", time.Now()))
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestListRange_LimitesInclusivos(t *testing.T) {
	s := NewStore(time.Second)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.Run(context.Background(), func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
		for i := 0; i < 5; i++ {
			if err := movRepo.Append(context.Background(), movement("1", base.AddDate(0, 0, i))); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(context.Background(), func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
		movs, err := movRepo.ListRange(context.Background(), pair, base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
		require.NoError(t, err)
		assert.Len(t, movs, 3)
		sum, err := movRepo.SumBefore(context.Background(), pair, base.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(1)))
		return nil
	})
	require.NoError(t, err)
}
