// Package cache caché de lectura de snapshots en Redis para CurrentStock.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

var _ inventory.SnapshotCache = (*SnapshotCache)(nil)

const keyPrefix = "stock-ledger:snapshot:"

// SnapshotCache read-through con TTL corto. Los fallos de Redis se loguean y se tratan como miss:
// la fuente de verdad sigue siendo la BD.
type SnapshotCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisClient abre el cliente y verifica la conexión.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("conectar a Redis: %w", err)
	}
	return client, nil
}

// NewSnapshotCache construye la caché sobre un cliente existente.
func NewSnapshotCache(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *SnapshotCache {
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotCache{client: client, ttl: ttl, log: log.Component("snapshot_cache")}
}

type cachedSnapshot struct {
	ProductID       string          `json:"product_id"`
	WarehouseID     string          `json:"warehouse_id"`
	QuantityOnHand  decimal.Decimal `json:"quantity_on_hand"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
	LastMovementAt  *time.Time      `json:"last_movement_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func encode(s *entity.StockSnapshot) ([]byte, error) {
	return json.Marshal(cachedSnapshot{
		ProductID:       s.ProductID,
		WarehouseID:     s.WarehouseID,
		QuantityOnHand:  s.QuantityOnHand,
		AverageUnitCost: s.AverageUnitCost,
		LastMovementAt:  s.LastMovementAt,
		UpdatedAt:       s.UpdatedAt,
	})
}

func decode(data []byte) (*entity.StockSnapshot, error) {
	var c cachedSnapshot
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &entity.StockSnapshot{
		ProductID:       c.ProductID,
		WarehouseID:     c.WarehouseID,
		QuantityOnHand:  c.QuantityOnHand,
		AverageUnitCost: c.AverageUnitCost,
		LastMovementAt:  c.LastMovementAt,
		UpdatedAt:       c.UpdatedAt,
	}, nil
}

func key(pair entity.Pair) string { return keyPrefix + pair.Key() }

func (c *SnapshotCache) Get(ctx context.Context, pair entity.Pair) (*entity.StockSnapshot, bool) {
	data, err := c.client.Get(ctx, key(pair)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("pair", pair.Key()).Msg("leer caché")
		}
		return nil, false
	}
	snap, err := decode(data)
	if err != nil {
		c.log.Warn().Err(err).Str("pair", pair.Key()).Msg("entrada de caché corrupta")
		c.Invalidate(ctx, pair)
		return nil, false
	}
	return snap, true
}

func (c *SnapshotCache) Set(ctx context.Context, s *entity.StockSnapshot) {
	data, err := encode(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(s.Pair()), data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("pair", s.Pair().Key()).Msg("escribir caché")
	}
}

// Invalidate usa un contexto propio: debe ejecutarse aunque el request ya se haya cancelado.
func (c *SnapshotCache) Invalidate(_ context.Context, pair entity.Pair) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.client.Del(ctx, key(pair)).Err(); err != nil {
		c.log.Warn().Err(err).Str("pair", pair.Key()).Msg("invalidar caché")
	}
}
