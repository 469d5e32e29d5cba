package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind tipo de movimiento de stock. Es la única variante etiquetada que entra al motor.
type MovementKind string

// Tipos de movimiento.
const (
	KindPurchase      MovementKind = "PURCHASE"       // compra, entra al costo de la línea
	KindSale          MovementKind = "SALE"           // venta
	KindReturnIn      MovementKind = "RETURN_IN"      // devolución de cliente
	KindReturnOut     MovementKind = "RETURN_OUT"     // devolución a proveedor
	KindAdjustmentIn  MovementKind = "ADJUSTMENT_IN"  // ajuste manual positivo
	KindAdjustmentOut MovementKind = "ADJUSTMENT_OUT" // ajuste manual negativo
)

// MovementKinds lista estable de tipos válidos.
var MovementKinds = []MovementKind{
	KindPurchase, KindSale, KindReturnIn, KindReturnOut, KindAdjustmentIn, KindAdjustmentOut,
}

func (k MovementKind) String() string { return string(k) }

// IsValid indica si el tipo es uno de los seis conocidos.
func (k MovementKind) IsValid() bool {
	switch k {
	case KindPurchase, KindSale, KindReturnIn, KindReturnOut, KindAdjustmentIn, KindAdjustmentOut:
		return true
	}
	return false
}

// IsInbound entradas: PURCHASE, RETURN_IN, ADJUSTMENT_IN.
func (k MovementKind) IsInbound() bool {
	return k == KindPurchase || k == KindReturnIn || k == KindAdjustmentIn
}

// IsOutbound salidas: SALE, RETURN_OUT, ADJUSTMENT_OUT.
func (k MovementKind) IsOutbound() bool {
	return k == KindSale || k == KindReturnOut || k == KindAdjustmentOut
}

// IsAdjustment los ajustes exigen motivo.
func (k MovementKind) IsAdjustment() bool {
	return k == KindAdjustmentIn || k == KindAdjustmentOut
}

// Signed devuelve la cantidad con el signo que corresponde al tipo.
func (k MovementKind) Signed(quantity decimal.Decimal) decimal.Decimal {
	if k.IsOutbound() {
		return quantity.Abs().Neg()
	}
	return quantity.Abs()
}

// StockMovement registro inmutable de un cambio de stock. Nunca se actualiza ni se borra;
// las correcciones se hacen con un movimiento compensatorio.
type StockMovement struct {
	ID             string
	Seq            int64 // asignado por el almacén al insertar; desempata OccurredAt
	ProductID      string
	WarehouseID    string
	Kind           MovementKind
	QuantityChange decimal.Decimal // positivo en entradas, negativo en salidas
	UnitCost       decimal.Decimal // costo de compra, o promedio congelado al momento de la salida
	ReferenceType  string          // purchase_invoice, sale, return, adjustment
	ReferenceID    string
	Reason         string
	CostPolicy     string // política usada al revalorizar (solo PURCHASE), necesaria para el replay
	OccurredAt     time.Time
	CreatedAt      time.Time
	CreatedBy      string
}

// Quantity valor absoluto del cambio.
func (m *StockMovement) Quantity() decimal.Decimal {
	return m.QuantityChange.Abs()
}

// TotalCost cantidad firmada por costo unitario.
func (m *StockMovement) TotalCost() decimal.Decimal {
	return m.QuantityChange.Mul(m.UnitCost)
}

// Pair clave (producto, bodega) del movimiento.
func (m *StockMovement) Pair() Pair {
	return Pair{ProductID: m.ProductID, WarehouseID: m.WarehouseID}
}
