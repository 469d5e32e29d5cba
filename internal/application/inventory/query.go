package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Límites de paginación del listado de inventario.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// LedgerQueryService camino de lectura de todas las pantallas: stock actual, kárdex e inventario.
// Nunca expone el almacenamiento de movimientos directamente.
type LedgerQueryService struct {
	txRunner   TxRunner
	warehouses repository.WarehouseRepository
	categories repository.CategoryRepository
	cache      SnapshotCache
	log        *logger.Logger
}

// NewLedgerQueryService construye el servicio. cache puede ser nil.
func NewLedgerQueryService(
	txRunner TxRunner,
	warehouses repository.WarehouseRepository,
	categories repository.CategoryRepository,
	cache SnapshotCache,
	log *logger.Logger,
) *LedgerQueryService {
	if cache == nil {
		cache = nopCache{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerQueryService{
		txRunner:   txRunner,
		warehouses: warehouses,
		categories: categories,
		cache:      cache,
		log:        log.Component("ledger_query"),
	}
}

// CurrentStock lectura directa del snapshot, O(1) sin importar el tamaño del log.
// Un par sin movimientos devuelve el estado cero.
func (s *LedgerQueryService) CurrentStock(ctx context.Context, productID, warehouseID string) (*entity.StockSnapshot, error) {
	pair, err := requirePair(productID, warehouseID)
	if err != nil {
		return nil, err
	}
	if snap, ok := s.cache.Get(ctx, pair); ok {
		return snap, nil
	}
	var snap *entity.StockSnapshot
	err = s.txRunner.View(ctx, func(_ repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		var err error
		snap, err = snapRepo.Get(ctx, pair)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stock actual: %w", err)
	}
	s.cache.Set(ctx, snap)
	return snap, nil
}

// MovementHistory kárdex del par en [from, to] (ambos inclusive).
// Opening = suma de los cambios anteriores a from, leída en la misma vista que las filas,
// así que closing siempre coincide con el saldo de la última fila.
func (s *LedgerQueryService) MovementHistory(ctx context.Context, productID, warehouseID string, from, to time.Time) (*inventory.Ledger, error) {
	pair, err := requirePair(productID, warehouseID)
	if err != nil {
		return nil, err
	}
	if from.IsZero() || to.IsZero() {
		return nil, domain.NewInvalidMovement("from/to", "son requeridos")
	}
	if from.After(to) {
		return nil, domain.NewInvalidMovement("from", "no puede ser posterior a to")
	}

	var (
		opening decimal.Decimal
		rows    []*entity.StockMovement
	)
	err = s.txRunner.View(ctx, func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
		var err error
		if opening, err = movRepo.SumBefore(ctx, pair, from); err != nil {
			return err
		}
		rows, err = movRepo.ListRange(ctx, pair, from, to)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kárdex: %w", err)
	}

	ledger := inventory.BuildLedger(opening, rows)
	ledger.ProductID = productID
	ledger.WarehouseID = warehouseID
	ledger.From = from
	ledger.To = to
	return ledger, nil
}

// InventoryPage página del listado de inventario.
type InventoryPage struct {
	Rows   []*repository.InventoryRow
	Total  int
	Limit  int
	Offset int
}

// Inventory listado de stock actual por bodega, opcionalmente filtrado por categoría.
func (s *LedgerQueryService) Inventory(ctx context.Context, filter repository.InventoryFilter) (*InventoryPage, error) {
	if strings.TrimSpace(filter.WarehouseID) == "" {
		return nil, domain.NewInvalidMovement("warehouse_id", "es requerido")
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	wh, err := s.warehouses.GetByID(ctx, filter.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("consultar bodega: %w", err)
	}
	if wh == nil {
		return nil, &domain.UnknownReferenceError{Entity: "warehouse", ID: filter.WarehouseID}
	}
	if filter.CategoryID != "" {
		cat, err := s.categories.GetByID(ctx, filter.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("consultar categoría: %w", err)
		}
		if cat == nil {
			return nil, &domain.UnknownReferenceError{Entity: "category", ID: filter.CategoryID}
		}
	}

	page := &InventoryPage{Limit: filter.Limit, Offset: filter.Offset}
	err = s.txRunner.View(ctx, func(_ repository.StockMovementRepository, snapRepo repository.StockSnapshotRepository) error {
		var err error
		page.Rows, page.Total, err = snapRepo.ListByWarehouse(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listado de inventario: %w", err)
	}
	return page, nil
}

// WarehousesForProduct bodegas con historial para el producto (filtro del kárdex).
func (s *LedgerQueryService) WarehousesForProduct(ctx context.Context, productID string) ([]*entity.Warehouse, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.NewInvalidMovement("product_id", "es requerido")
	}
	var pairs []entity.Pair
	err := s.txRunner.View(ctx, func(movRepo repository.StockMovementRepository, _ repository.StockSnapshotRepository) error {
		var err error
		pairs, err = movRepo.ListPairs(ctx, productID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bodegas del producto: %w", err)
	}
	if len(pairs) == 0 {
		return []*entity.Warehouse{}, nil
	}
	ids := make([]string, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, p.WarehouseID)
	}
	return s.warehouses.ListByIDs(ctx, ids)
}

func requirePair(productID, warehouseID string) (entity.Pair, error) {
	if strings.TrimSpace(productID) == "" {
		return entity.Pair{}, domain.NewInvalidMovement("product_id", "es requerido")
	}
	if strings.TrimSpace(warehouseID) == "" {
		return entity.Pair{}, domain.NewInvalidMovement("warehouse_id", "es requerido")
	}
	return entity.Pair{ProductID: productID, WarehouseID: warehouseID}, nil
}
