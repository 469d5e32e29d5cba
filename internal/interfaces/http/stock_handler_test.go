package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/stock-ledger/internal/interfaces/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testProduct   = "prod-1"
	testWarehouse = "wh-1"
)

// buildTestApp construye la app con el almacén en memoria y datos maestros mínimos.
func buildTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.NewStore(time.Second)
	store.PutCategory(entity.Category{ID: "cat-1", Name: "General"})
	store.PutProduct(entity.Product{ID: testProduct, CategoryID: "cat-1", Name: "Tornillo"})
	store.PutWarehouse(entity.Warehouse{ID: testWarehouse, Name: "Principal"})

	locker := lock.NewLocalLocker(time.Second)
	recorder := inventory.NewMovementRecorder(inventory.RecorderDeps{
		TxRunner:   store,
		Locker:     locker,
		Products:   store.Products(),
		Warehouses: store.Warehouses(),
	})
	query := inventory.NewLedgerQueryService(store, store.Warehouses(), store.Categories(), nil, nil)
	rebuilder := inventory.NewSnapshotRebuilder(store, locker, nil, "", nil)

	app := fiber.New()
	apphttp.Router(app, apphttp.NewStockHandler(recorder, query, rebuilder, nil))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apphttp.HeaderUserID, "user-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func movementBody(kind, qty string, extra map[string]any) map[string]any {
	b := map[string]any{
		"product_id":   testProduct,
		"warehouse_id": testWarehouse,
		"kind":         kind,
		"quantity":     qty,
	}
	for k, v := range extra {
		b[k] = v
	}
	return b
}

// ──────────────────────────────────────────────────────────────────────────────
// Movimientos
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordMovement_Compra201(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/stock/movements",
		movementBody("PURCHASE", "10", map[string]any{"unit_cost": "12.50", "reference_type": "purchase_order", "reference_id": "PO-7"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	mov := decodeBody[dto.MovementResponse](t, resp)
	assert.NotEmpty(t, mov.ID)
	assert.Equal(t, "PURCHASE", mov.Kind)
	assert.Equal(t, "10", mov.QuantityChange.String())
	assert.Equal(t, "125", mov.TotalCost.String())
	assert.Equal(t, "user-1", mov.CreatedBy)
}

func TestRecordMovement_StockInsuficiente409(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/stock/movements", movementBody("SALE", "1", nil))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body := decodeBody[dto.ErrorResponse](t, resp)
	assert.Equal(t, apphttp.CodeInsufficientStock, body.Code)
	assert.Contains(t, body.Message, "faltan 1")
}

func TestRecordMovement_ValidacionDelBody400(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/stock/movements", map[string]any{"kind": "TRANSFER", "quantity": "1"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeBody[dto.ErrorResponse](t, resp)
	assert.Equal(t, apphttp.CodeValidation, body.Code)

	fields := map[string]bool{}
	for _, d := range body.Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["product_id"])
	assert.True(t, fields["warehouse_id"])
	assert.True(t, fields["kind"])
}

func TestRecordMovement_ValidacionDeDominio400(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/stock/movements", movementBody("PURCHASE", "5", nil))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeBody[dto.ErrorResponse](t, resp)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "unit_cost", body.Details[0].Field)

	resp = doJSON(t, app, http.MethodPost, "/api/stock/movements", movementBody("SALE", "0", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRecordMovement_ReferenciaDesconocida404(t *testing.T) {
	app := buildTestApp(t)
	body := movementBody("PURCHASE", "1", map[string]any{"unit_cost": "1", "product_id": "nope"})
	resp := doJSON(t, app, http.MethodPost, "/api/stock/movements", body)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apphttp.CodeUnknownReference, decodeBody[dto.ErrorResponse](t, resp).Code)
}

func TestRecordMovement_CuerpoInvalido(t *testing.T) {
	app := buildTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/api/stock/movements", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRecordBatch(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/stock/movements/batch", map[string]any{
		"items": []map[string]any{
			movementBody("PURCHASE", "4", map[string]any{"unit_cost": "2"}),
			movementBody("ADJUSTMENT_OUT", "1", map[string]any{"reason": "merma"}),
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	movs := decodeBody[[]dto.MovementResponse](t, resp)
	require.Len(t, movs, 2)
	assert.Equal(t, "-1", movs[1].QuantityChange.String())

	resp = doJSON(t, app, http.MethodPost, "/api/stock/movements/batch", map[string]any{"items": []any{}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas
// ──────────────────────────────────────────────────────────────────────────────

func TestCurrentStock(t *testing.T) {
	app := buildTestApp(t)
	doJSON(t, app, http.MethodPost, "/api/stock/movements", movementBody("PURCHASE", "10", map[string]any{"unit_cost": "50"}))
	doJSON(t, app, http.MethodPost, "/api/stock/movements", movementBody("PURCHASE", "10", map[string]any{"unit_cost": "78"}))

	resp := doJSON(t, app, http.MethodGet, "/api/stock/current?product_id="+testProduct+"&warehouse_id="+testWarehouse, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	snap := decodeBody[dto.SnapshotResponse](t, resp)
	assert.Equal(t, "20", snap.QuantityOnHand.String())
	assert.Equal(t, "64", snap.AverageUnitCost.String())
	assert.Equal(t, "1280", snap.TotalValue.String())

	resp = doJSON(t, app, http.MethodGet, "/api/stock/current?product_id="+testProduct, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLedger_FechaSolaCubreElDia(t *testing.T) {
	app := buildTestApp(t)
	doJSON(t, app, http.MethodPost, "/api/stock/movements",
		movementBody("PURCHASE", "100", map[string]any{"unit_cost": "1", "occurred_at": "2024-03-01T09:00:00Z"}))
	doJSON(t, app, http.MethodPost, "/api/stock/movements",
		movementBody("SALE", "30", map[string]any{"occurred_at": "2024-03-05T18:30:00Z"}))
	doJSON(t, app, http.MethodPost, "/api/stock/movements",
		movementBody("SALE", "5", map[string]any{"occurred_at": "2024-03-06T08:00:00Z"}))

	resp := doJSON(t, app, http.MethodGet,
		"/api/stock/ledger?product_id="+testProduct+"&warehouse_id="+testWarehouse+"&from=2024-03-02&to=2024-03-05", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	ledger := decodeBody[dto.LedgerResponse](t, resp)
	assert.Equal(t, "100", ledger.OpeningBalance.String())
	require.Len(t, ledger.Rows, 1)
	assert.Equal(t, "30", ledger.Rows[0].Out.String())
	assert.Equal(t, "0", ledger.Rows[0].In.String())
	assert.Equal(t, "70", ledger.Rows[0].RunningBalance.String())
	assert.Equal(t, "70", ledger.ClosingBalance.String())
	assert.Equal(t, "30", ledger.TotalOut.String())
}

func TestLedger_FechaSolaIncluyeElUltimoInstanteDelDia(t *testing.T) {
	app := buildTestApp(t)
	doJSON(t, app, http.MethodPost, "/api/stock/movements",
		movementBody("PURCHASE", "10", map[string]any{"unit_cost": "1", "occurred_at": "2024-03-01T09:00:00Z"}))
	resp := doJSON(t, app, http.MethodPost, "/api/stock/movements",
		movementBody("SALE", "4", map[string]any{"occurred_at": "2024-03-05T23:59:59.9999999Z"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	doJSON(t, app, http.MethodPost, "/api/stock/movements",
		movementBody("SALE", "1", map[string]any{"occurred_at": "2024-03-06T00:00:00Z"}))

	resp = doJSON(t, app, http.MethodGet,
		"/api/stock/ledger?product_id="+testProduct+"&warehouse_id="+testWarehouse+"&from=2024-03-05&to=2024-03-05", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	ledger := decodeBody[dto.LedgerResponse](t, resp)
	require.Len(t, ledger.Rows, 1)
	assert.Equal(t, "4", ledger.Rows[0].Out.String())
	assert.Equal(t, "6", ledger.ClosingBalance.String())
}

func TestLedger_FechasInvalidas(t *testing.T) {
	app := buildTestApp(t)
	base := "/api/stock/ledger?product_id=" + testProduct + "&warehouse_id=" + testWarehouse
	for _, q := range []string{"", "&from=2024-03-02", "&from=ayer&to=2024-03-05", "&from=2024-03-10&to=2024-03-05"} {
		resp := doJSON(t, app, http.MethodGet, base+q, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestInventoryYWarehouses(t *testing.T) {
	app := buildTestApp(t)
	doJSON(t, app, http.MethodPost, "/api/stock/movements", movementBody("PURCHASE", "3", map[string]any{"unit_cost": "2.5"}))

	resp := doJSON(t, app, http.MethodGet, "/api/stock/inventory?warehouse_id="+testWarehouse+"&category_id=cat-1&limit=10", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := decodeBody[dto.InventoryPageResponse](t, resp)
	assert.Equal(t, 1, page.Page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Tornillo", page.Items[0].ProductName)
	assert.Equal(t, "7.5", page.Items[0].TotalValue.String())

	resp = doJSON(t, app, http.MethodGet, "/api/stock/inventory?warehouse_id=otra", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/stock/inventory?warehouse_id="+testWarehouse+"&limit=500", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/stock/warehouses?product_id="+testProduct, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	whs := decodeBody[[]dto.WarehouseResponse](t, resp)
	require.Len(t, whs, 1)
	assert.Equal(t, "Principal", whs[0].Name)
}

func TestRebuildYVerify(t *testing.T) {
	app := buildTestApp(t)
	doJSON(t, app, http.MethodPost, "/api/stock/movements", movementBody("PURCHASE", "6", map[string]any{"unit_cost": "3"}))

	resp := doJSON(t, app, http.MethodGet, "/api/stock/verify?product_id="+testProduct+"&warehouse_id="+testWarehouse, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[dto.DriftResponse](t, resp).InSync)

	resp = doJSON(t, app, http.MethodPost, "/api/stock/rebuild", map[string]any{"product_id": testProduct, "warehouse_id": testWarehouse})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "6", decodeBody[dto.SnapshotResponse](t, resp).QuantityOnHand.String())

	resp = doJSON(t, app, http.MethodPost, "/api/stock/rebuild", map[string]any{"product_id": testProduct})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
