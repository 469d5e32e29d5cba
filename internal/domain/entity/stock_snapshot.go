package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pair identifica un producto dentro de una bodega.
type Pair struct {
	ProductID   string
	WarehouseID string
}

// Key representación estable, usada como clave de bloqueo y de caché.
func (p Pair) Key() string {
	return p.ProductID + ":" + p.WarehouseID
}

// StockSnapshot estado materializado de un par. Es una caché del fold sobre los movimientos;
// si difiere del log, manda el log y se reconstruye por replay.
type StockSnapshot struct {
	ProductID       string
	WarehouseID     string
	QuantityOnHand  decimal.Decimal
	AverageUnitCost decimal.Decimal
	LastMovementAt  *time.Time
	UpdatedAt       time.Time
}

// NewEmptySnapshot estado implícito previo al primer movimiento (cantidad 0, costo 0).
func NewEmptySnapshot(productID, warehouseID string) *StockSnapshot {
	return &StockSnapshot{
		ProductID:       productID,
		WarehouseID:     warehouseID,
		QuantityOnHand:  decimal.Zero,
		AverageUnitCost: decimal.Zero,
	}
}

// Pair clave del snapshot.
func (s *StockSnapshot) Pair() Pair {
	return Pair{ProductID: s.ProductID, WarehouseID: s.WarehouseID}
}

// Value valorización del stock a costo promedio.
func (s *StockSnapshot) Value() decimal.Decimal {
	return s.QuantityOnHand.Mul(s.AverageUnitCost)
}
