package inventory

import (
	"sort"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// LedgerRow una fila del kárdex con su saldo acumulado.
type LedgerRow struct {
	MovementID     string
	Date           time.Time
	Kind           entity.MovementKind
	ReferenceType  string
	ReferenceID    string
	QuantityChange decimal.Decimal
	UnitCost       decimal.Decimal
	RunningBalance decimal.Decimal
}

// Ledger historial de movimientos de un par en un rango, con saldos inicial y final.
type Ledger struct {
	ProductID   string
	WarehouseID string
	From        time.Time
	To          time.Time
	Opening     decimal.Decimal
	Rows        []LedgerRow
	Closing     decimal.Decimal
	TotalIn     decimal.Decimal
	TotalOut    decimal.Decimal
}

// SortMovements orden canónico del kárdex: OccurredAt ascendente, empate por Seq.
func SortMovements(movements []*entity.StockMovement) {
	sort.SliceStable(movements, func(i, j int) bool {
		a, b := movements[i], movements[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.Seq < b.Seq
	})
}

// BuildLedger pliega los movimientos del rango sobre el saldo inicial.
func BuildLedger(opening decimal.Decimal, movements []*entity.StockMovement) *Ledger {
	SortMovements(movements)
	l := &Ledger{
		Opening:  opening,
		Rows:     make([]LedgerRow, 0, len(movements)),
		TotalIn:  decimal.Zero,
		TotalOut: decimal.Zero,
	}
	balance := opening
	for _, m := range movements {
		balance = balance.Add(m.QuantityChange)
		if m.QuantityChange.IsPositive() {
			l.TotalIn = l.TotalIn.Add(m.QuantityChange)
		} else {
			l.TotalOut = l.TotalOut.Add(m.QuantityChange.Abs())
		}
		l.Rows = append(l.Rows, LedgerRow{
			MovementID:     m.ID,
			Date:           m.OccurredAt,
			Kind:           m.Kind,
			ReferenceType:  m.ReferenceType,
			ReferenceID:    m.ReferenceID,
			QuantityChange: m.QuantityChange,
			UnitCost:       m.UnitCost,
			RunningBalance: balance,
		})
	}
	l.Closing = balance
	return l
}

// OpeningBalance suma los cambios anteriores al inicio del rango (fold hacia adelante desde cero).
func OpeningBalance(before []*entity.StockMovement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range before {
		total = total.Add(m.QuantityChange)
	}
	return total
}
