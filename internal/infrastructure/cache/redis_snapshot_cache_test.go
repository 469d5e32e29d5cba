package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

func TestEncodeDecode_ConservaDecimalesYFechas(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	in := &entity.StockSnapshot{
		ProductID:       "p",
		WarehouseID:     "w",
		QuantityOnHand:  decimal.RequireFromString("12.5000"),
		AverageUnitCost: decimal.RequireFromString("64.10"),
		LastMovementAt:  &at,
		UpdatedAt:       at,
	}
	data, err := encode(in)
	require.NoError(t, err)
	out, err := decode(data)
	require.NoError(t, err)

	assert.True(t, out.QuantityOnHand.Equal(in.QuantityOnHand))
	assert.True(t, out.AverageUnitCost.Equal(in.AverageUnitCost))
	require.NotNil(t, out.LastMovementAt)
	assert.True(t, out.LastMovementAt.Equal(at))
}

func TestDecode_Corrupto(t *testing.T) {
	_, err := decode([]byte("{no-json"))
	assert.Error(t, err)
}

// Requiere un Redis accesible (REDIS_ADDR o localhost:6379); si no hay, se omite.
func TestSnapshotCache_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("omitido en modo short")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr, DB: 15})
	if err != nil {
		t.Skipf("sin Redis: %v", err)
	}
	defer client.Close()

	c := NewSnapshotCache(client, time.Minute, nil)
	ctx := context.Background()
	pair := entity.Pair{ProductID: "p-cache", WarehouseID: "w-cache"}
	c.Invalidate(ctx, pair)

	_, ok := c.Get(ctx, pair)
	assert.False(t, ok)

	snap := entity.NewEmptySnapshot(pair.ProductID, pair.WarehouseID)
	snap.QuantityOnHand = decimal.NewFromInt(7)
	c.Set(ctx, snap)

	got, ok := c.Get(ctx, pair)
	require.True(t, ok)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(7)))

	c.Invalidate(ctx, pair)
	_, ok = c.Get(ctx, pair)
	assert.False(t, ok)
}
