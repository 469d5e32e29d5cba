package inventory

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Apply devuelve el snapshot resultante de aplicar un movimiento. No valida stock negativo:
// eso lo hace el registrador antes de escribir. Si el movimiento trae su propia política de costo,
// esa prevalece sobre policy.
//
//   - PURCHASE: suma cantidad y revaloriza con Reval.
//   - salidas: resta cantidad, el costo promedio no cambia.
//   - RETURN_IN / ADJUSTMENT_IN: suma cantidad al costo ya registrado.
func Apply(s entity.StockSnapshot, m *entity.StockMovement, policy CostPolicy) entity.StockSnapshot {
	next := s
	if m.Kind == entity.KindPurchase {
		if m.CostPolicy != "" {
			policy = CostPolicy(m.CostPolicy)
		}
		next.AverageUnitCost = Reval(s.QuantityOnHand, s.AverageUnitCost, m.Quantity(), m.UnitCost, policy)
	}
	next.QuantityOnHand = s.QuantityOnHand.Add(m.QuantityChange)
	if s.LastMovementAt == nil || m.OccurredAt.After(*s.LastMovementAt) {
		at := m.OccurredAt
		next.LastMovementAt = &at
	}
	return next
}

// Replay reconstruye el snapshot de un par desde cero. Los movimientos deben venir en el orden
// en que se aplicaron (Seq ascendente), que es el orden en que se calculó el promedio.
func Replay(productID, warehouseID string, movements []*entity.StockMovement, policy CostPolicy) entity.StockSnapshot {
	s := *entity.NewEmptySnapshot(productID, warehouseID)
	for _, m := range movements {
		s = Apply(s, m, policy)
	}
	s.UpdatedAt = time.Now().UTC()
	return s
}

// Drift diferencia entre el snapshot materializado y el fold del log.
type Drift struct {
	Stored   entity.StockSnapshot
	Replayed entity.StockSnapshot
}

// InSync true cuando cantidad y costo coinciden.
func (d Drift) InSync() bool {
	return d.Stored.QuantityOnHand.Equal(d.Replayed.QuantityOnHand) &&
		d.Stored.AverageUnitCost.Equal(d.Replayed.AverageUnitCost)
}
