package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// RecordMovementRequest body para POST /api/stock/movements.
// quantity siempre positiva; el signo lo da kind.
type RecordMovementRequest struct {
	ProductID     string           `json:"product_id" validate:"required,max=64"`
	WarehouseID   string           `json:"warehouse_id" validate:"required,max=64"`
	Kind          string           `json:"kind" validate:"required,oneof=PURCHASE SALE RETURN_IN RETURN_OUT ADJUSTMENT_IN ADJUSTMENT_OUT"`
	Quantity      decimal.Decimal  `json:"quantity" swaggertype:"string" example:"10"`
	UnitCost      *decimal.Decimal `json:"unit_cost,omitempty" swaggertype:"string" example:"12.50"` // obligatorio en PURCHASE
	ReferenceType string           `json:"reference_type,omitempty" validate:"max=50"`
	ReferenceID   string           `json:"reference_id,omitempty" validate:"max=100"`
	Reason        string           `json:"reason,omitempty" validate:"max=500"` // obligatorio en ajustes
	OccurredAt    *time.Time       `json:"occurred_at,omitempty"`
	CostPolicy    string           `json:"cost_policy,omitempty" validate:"omitempty,oneof=weighted_average overwrite"`
}

// RecordBatchRequest body para POST /api/stock/movements/batch.
type RecordBatchRequest struct {
	Items []RecordMovementRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

// PairRequest body para POST /api/stock/rebuild.
type PairRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	WarehouseID string `json:"warehouse_id" validate:"required"`
}

// MovementResponse movimiento registrado.
type MovementResponse struct {
	ID             string          `json:"id"`
	Seq            int64           `json:"seq"`
	ProductID      string          `json:"product_id"`
	WarehouseID    string          `json:"warehouse_id"`
	Kind           string          `json:"kind"`
	QuantityChange decimal.Decimal `json:"quantity_change" swaggertype:"string"`
	UnitCost       decimal.Decimal `json:"unit_cost" swaggertype:"string"`
	TotalCost      decimal.Decimal `json:"total_cost" swaggertype:"string"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	CreatedAt      time.Time       `json:"created_at"`
	CreatedBy      string          `json:"created_by,omitempty"`
}

// SnapshotResponse stock actual de un par.
type SnapshotResponse struct {
	ProductID       string          `json:"product_id"`
	WarehouseID     string          `json:"warehouse_id"`
	QuantityOnHand  decimal.Decimal `json:"quantity_on_hand" swaggertype:"string"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost" swaggertype:"string"`
	TotalValue      decimal.Decimal `json:"total_value" swaggertype:"string"`
	LastMovementAt  *time.Time      `json:"last_movement_at,omitempty"`
}

// LedgerRowResponse fila del kárdex. In/Out duplican quantity_change separado por signo
// para las columnas entrada/salida.
type LedgerRowResponse struct {
	MovementID     string          `json:"movement_id"`
	Date           time.Time       `json:"date"`
	Kind           string          `json:"kind"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	QuantityChange decimal.Decimal `json:"quantity_change" swaggertype:"string"`
	In             decimal.Decimal `json:"in" swaggertype:"string"`
	Out            decimal.Decimal `json:"out" swaggertype:"string"`
	UnitCost       decimal.Decimal `json:"unit_cost" swaggertype:"string"`
	RunningBalance decimal.Decimal `json:"running_balance" swaggertype:"string"`
}

// LedgerResponse kárdex de un par en un rango.
type LedgerResponse struct {
	ProductID      string              `json:"product_id"`
	WarehouseID    string              `json:"warehouse_id"`
	From           time.Time           `json:"from"`
	To             time.Time           `json:"to"`
	OpeningBalance decimal.Decimal     `json:"opening_balance" swaggertype:"string"`
	Rows           []LedgerRowResponse `json:"rows"`
	ClosingBalance decimal.Decimal     `json:"closing_balance" swaggertype:"string"`
	TotalIn        decimal.Decimal     `json:"total_in" swaggertype:"string"`
	TotalOut       decimal.Decimal     `json:"total_out" swaggertype:"string"`
}

// InventoryItemResponse línea del listado de inventario.
type InventoryItemResponse struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	CategoryID      string          `json:"category_id,omitempty"`
	UnitMeasure     string          `json:"unit_measure,omitempty"`
	QuantityOnHand  decimal.Decimal `json:"quantity_on_hand" swaggertype:"string"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost" swaggertype:"string"`
	TotalValue      decimal.Decimal `json:"total_value" swaggertype:"string"`
	LastMovementAt  *time.Time      `json:"last_movement_at,omitempty"`
}

// InventoryPageResponse página del listado.
type InventoryPageResponse struct {
	Items []InventoryItemResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}

// WarehouseResponse bodega.
type WarehouseResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// DriftResponse comparación snapshot vs replay del log.
type DriftResponse struct {
	ProductID   string           `json:"product_id"`
	WarehouseID string           `json:"warehouse_id"`
	InSync      bool             `json:"in_sync"`
	Stored      SnapshotResponse `json:"stored"`
	Replayed    SnapshotResponse `json:"replayed"`
}

// ToMovementResponse mapea la entidad.
func ToMovementResponse(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		Seq:            m.Seq,
		ProductID:      m.ProductID,
		WarehouseID:    m.WarehouseID,
		Kind:           m.Kind.String(),
		QuantityChange: m.QuantityChange,
		UnitCost:       m.UnitCost,
		TotalCost:      m.TotalCost(),
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		Reason:         m.Reason,
		OccurredAt:     m.OccurredAt,
		CreatedAt:      m.CreatedAt,
		CreatedBy:      m.CreatedBy,
	}
}

// ToSnapshotResponse mapea el snapshot; el valor total se redondea a moneda.
func ToSnapshotResponse(s *entity.StockSnapshot) SnapshotResponse {
	return SnapshotResponse{
		ProductID:       s.ProductID,
		WarehouseID:     s.WarehouseID,
		QuantityOnHand:  s.QuantityOnHand,
		AverageUnitCost: s.AverageUnitCost,
		TotalValue:      s.Value().Round(inventory.CurrencyPlaces),
		LastMovementAt:  s.LastMovementAt,
	}
}

// ToLedgerResponse mapea el kárdex.
func ToLedgerResponse(l *inventory.Ledger) LedgerResponse {
	rows := make([]LedgerRowResponse, 0, len(l.Rows))
	for _, r := range l.Rows {
		in, out := decimal.Zero, decimal.Zero
		if r.QuantityChange.IsPositive() {
			in = r.QuantityChange
		} else {
			out = r.QuantityChange.Abs()
		}
		rows = append(rows, LedgerRowResponse{
			MovementID:     r.MovementID,
			Date:           r.Date,
			Kind:           r.Kind.String(),
			ReferenceType:  r.ReferenceType,
			ReferenceID:    r.ReferenceID,
			QuantityChange: r.QuantityChange,
			In:             in,
			Out:            out,
			UnitCost:       r.UnitCost,
			RunningBalance: r.RunningBalance,
		})
	}
	return LedgerResponse{
		ProductID:      l.ProductID,
		WarehouseID:    l.WarehouseID,
		From:           l.From,
		To:             l.To,
		OpeningBalance: l.Opening,
		Rows:           rows,
		ClosingBalance: l.Closing,
		TotalIn:        l.TotalIn,
		TotalOut:       l.TotalOut,
	}
}

// ToInventoryPageResponse mapea una página del listado.
func ToInventoryPageResponse(rows []*repository.InventoryRow, total, limit, offset int) InventoryPageResponse {
	items := make([]InventoryItemResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, InventoryItemResponse{
			ProductID:       r.Product.ID,
			ProductName:     r.Product.Name,
			CategoryID:      r.Product.CategoryID,
			UnitMeasure:     r.Product.UnitMeasure,
			QuantityOnHand:  r.Snapshot.QuantityOnHand,
			AverageUnitCost: r.Snapshot.AverageUnitCost,
			TotalValue:      r.Snapshot.Value().Round(inventory.CurrencyPlaces),
			LastMovementAt:  r.Snapshot.LastMovementAt,
		})
	}
	return InventoryPageResponse{Items: items, Page: PageResponse{Limit: limit, Offset: offset, Total: total}}
}

// ToWarehouseResponses mapea bodegas.
func ToWarehouseResponses(ws []*entity.Warehouse) []WarehouseResponse {
	out := make([]WarehouseResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, WarehouseResponse{ID: w.ID, Name: w.Name, Location: w.Location})
	}
	return out
}

// ToDriftResponse mapea el resultado de Verify.
func ToDriftResponse(d *inventory.Drift) DriftResponse {
	return DriftResponse{
		ProductID:   d.Stored.ProductID,
		WarehouseID: d.Stored.WarehouseID,
		InSync:      d.InSync(),
		Stored:      ToSnapshotResponse(&d.Stored),
		Replayed:    ToSnapshotResponse(&d.Replayed),
	}
}
