package inventory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces precisión con la que se guarda el costo promedio.
const CurrencyPlaces int32 = 2

// StoragePlaces decimales de cantidades y costos unitarios en el log (NUMERIC(18,4)).
const StoragePlaces int32 = 4

// FitsStorage la cifra se guarda sin redondeo; si no, log y snapshot divergen al persistir.
func FitsStorage(d decimal.Decimal) bool {
	return d.Equal(d.Round(StoragePlaces))
}

// CostPolicy política de revalorización aplicada a las compras.
type CostPolicy string

const (
	// CostPolicyWeightedAverage costo promedio ponderado (por defecto, todas las entradas del sistema).
	CostPolicyWeightedAverage CostPolicy = "weighted_average"
	// CostPolicyOverwrite el costo de la última compra reemplaza al anterior.
	CostPolicyOverwrite CostPolicy = "overwrite"
)

// ParseCostPolicy acepta los nombres de configuración; vacío = promedio ponderado.
func ParseCostPolicy(s string) (CostPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "weighted_average", "average", "weighted":
		return CostPolicyWeightedAverage, nil
	case "overwrite":
		return CostPolicyOverwrite, nil
	}
	return "", fmt.Errorf("política de costo desconocida: %q", s)
}

// Reval calcula el nuevo costo unitario tras una compra (servicio de dominio, sin efectos).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// redondeado a 2 decimales. Si StockActual + CantEntrada <= 0 se usa el costo de entrada.
func Reval(priorQty, priorAvgCost, incomingQty, incomingUnitCost decimal.Decimal, policy CostPolicy) decimal.Decimal {
	if policy == CostPolicyOverwrite {
		return incomingUnitCost.Round(CurrencyPlaces)
	}
	sum := priorQty.Add(incomingQty)
	if sum.LessThanOrEqual(decimal.Zero) {
		return incomingUnitCost.Round(CurrencyPlaces)
	}
	num := priorQty.Mul(priorAvgCost).Add(incomingQty.Mul(incomingUnitCost))
	return num.Div(sum).Round(CurrencyPlaces)
}
