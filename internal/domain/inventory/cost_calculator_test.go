package inventory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// (100 * 60 + 50 * 72) / 150 = 64.00
func TestReval_PromedioPonderado(t *testing.T) {
	got := inventory.Reval(dec("100"), dec("60.00"), dec("50"), dec("72.00"), inventory.CostPolicyWeightedAverage)
	assert.True(t, got.Equal(dec("64.00")), "esperado 64.00, obtenido %s", got)
}

func TestReval_PrimeraCompraUsaCostoDeEntrada(t *testing.T) {
	got := inventory.Reval(decimal.Zero, decimal.Zero, dec("20"), dec("55.50"), inventory.CostPolicyWeightedAverage)
	assert.True(t, got.Equal(dec("55.50")))
}

func TestReval_SumaNoPositivaNoDivide(t *testing.T) {
	got := inventory.Reval(dec("-5"), dec("10"), dec("5"), dec("12.345"), inventory.CostPolicyWeightedAverage)
	assert.True(t, got.Equal(dec("12.35")), "obtenido %s", got)
}

func TestReval_RedondeaADosDecimales(t *testing.T) {
	// (3 * 10 + 1 * 11) / 4 = 10.25 ; (1 * 10 + 2 * 11) / 3 = 10.666.. -> 10.67
	got := inventory.Reval(dec("1"), dec("10"), dec("2"), dec("11"), inventory.CostPolicyWeightedAverage)
	assert.Equal(t, "10.67", got.StringFixed(2))
}

func TestReval_Overwrite(t *testing.T) {
	got := inventory.Reval(dec("100"), dec("60.00"), dec("50"), dec("72.00"), inventory.CostPolicyOverwrite)
	assert.True(t, got.Equal(dec("72.00")))
}

func TestParseCostPolicy(t *testing.T) {
	p, err := inventory.ParseCostPolicy("")
	require.NoError(t, err)
	assert.Equal(t, inventory.CostPolicyWeightedAverage, p)

	p, err = inventory.ParseCostPolicy("OVERWRITE")
	require.NoError(t, err)
	assert.Equal(t, inventory.CostPolicyOverwrite, p)

	_, err = inventory.ParseCostPolicy("fifo")
	assert.Error(t, err)
}
