package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// HeaderUserID usuario que registra el movimiento, lo inyecta el gateway.
const HeaderUserID = "X-User-ID"

const dateLayout = "2006-01-02"

// StockHandler endpoints del libro de stock.
type StockHandler struct {
	recorder  *inventory.MovementRecorder
	query     *inventory.LedgerQueryService
	rebuilder *inventory.SnapshotRebuilder
	validate  *validator.Validate
	log       *logger.Logger
}

// NewStockHandler construye el handler.
func NewStockHandler(
	recorder *inventory.MovementRecorder,
	query *inventory.LedgerQueryService,
	rebuilder *inventory.SnapshotRebuilder,
	log *logger.Logger,
) *StockHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &StockHandler{
		recorder:  recorder,
		query:     query,
		rebuilder: rebuilder,
		validate:  newValidator(),
		log:       log.Component("http"),
	}
}

// RecordMovement godoc
// @Summary      Registrar movimiento de stock
// @Description  Valida, bloquea el par (producto, bodega), verifica stock en salidas y actualiza el snapshot.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body      dto.RecordMovementRequest  true  "Movimiento"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/movements [post]
func (h *StockHandler) RecordMovement(c *fiber.Ctx) error {
	var req dto.RecordMovementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: CodeInvalidBody, Message: "cuerpo inválido"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationResponse(err))
	}
	mov, err := h.recorder.Record(c.UserContext(), toRecordInput(req, c.Get(HeaderUserID)))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToMovementResponse(mov))
}

// RecordBatch godoc
// @Summary      Registrar varias líneas
// @Description  Valida todas las líneas antes de escribir; luego registra en orden y se detiene en la primera que falle.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body      dto.RecordBatchRequest  true  "Líneas"
// @Success      201   {array}   dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/movements/batch [post]
func (h *StockHandler) RecordBatch(c *fiber.Ctx) error {
	var req dto.RecordBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: CodeInvalidBody, Message: "cuerpo inválido"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationResponse(err))
	}
	userID := c.Get(HeaderUserID)
	lines := make([]inventory.RecordInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, toRecordInput(item, userID))
	}
	movs, err := h.recorder.RecordBatch(c.UserContext(), lines)
	if err != nil {
		return h.respondError(c, err)
	}
	out := make([]dto.MovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, dto.ToMovementResponse(m))
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// CurrentStock godoc
// @Summary      Stock actual
// @Tags         stock
// @Produce      json
// @Param        product_id    query     string  true  "Producto"
// @Param        warehouse_id  query     string  true  "Bodega"
// @Success      200  {object}  dto.SnapshotResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/current [get]
func (h *StockHandler) CurrentStock(c *fiber.Ctx) error {
	snap, err := h.query.CurrentStock(c.UserContext(), c.Query("product_id"), c.Query("warehouse_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToSnapshotResponse(snap))
}

// Ledger godoc
// @Summary      Kárdex de un producto en una bodega
// @Description  Saldo inicial, movimientos del rango con saldo acumulado y totales. Fechas YYYY-MM-DD o RFC3339; un to solo fecha incluye el día completo.
// @Tags         stock
// @Produce      json
// @Param        product_id    query     string  true  "Producto"
// @Param        warehouse_id  query     string  true  "Bodega"
// @Param        from          query     string  true  "Desde"
// @Param        to            query     string  true  "Hasta"
// @Success      200  {object}  dto.LedgerResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/ledger [get]
func (h *StockHandler) Ledger(c *fiber.Ctx) error {
	from, err := parseTimeParam("from", c.Query("from"), false)
	if err != nil {
		return h.respondError(c, err)
	}
	to, err := parseTimeParam("to", c.Query("to"), true)
	if err != nil {
		return h.respondError(c, err)
	}
	ledger, err := h.query.MovementHistory(c.UserContext(), c.Query("product_id"), c.Query("warehouse_id"), from, to)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToLedgerResponse(ledger))
}

// Inventory godoc
// @Summary      Inventario por bodega
// @Tags         stock
// @Produce      json
// @Param        warehouse_id  query     string  true   "Bodega"
// @Param        category_id   query     string  false  "Categoría"
// @Param        limit         query     int     false  "Tamaño de página (máx. 100)"
// @Param        offset        query     int     false  "Desplazamiento"
// @Success      200  {object}  dto.InventoryPageResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/inventory [get]
func (h *StockHandler) Inventory(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: CodeValidation, Message: "paginación inválida"})
	}
	if err := h.validate.Struct(page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationResponse(err))
	}
	res, err := h.query.Inventory(c.UserContext(), repository.InventoryFilter{
		WarehouseID: c.Query("warehouse_id"),
		CategoryID:  c.Query("category_id"),
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToInventoryPageResponse(res.Rows, res.Total, res.Limit, res.Offset))
}

// WarehousesForProduct godoc
// @Summary      Bodegas con historial del producto
// @Tags         stock
// @Produce      json
// @Param        product_id  query     string  true  "Producto"
// @Success      200  {array}   dto.WarehouseResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/warehouses [get]
func (h *StockHandler) WarehousesForProduct(c *fiber.Ctx) error {
	ws, err := h.query.WarehousesForProduct(c.UserContext(), c.Query("product_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToWarehouseResponses(ws))
}

// Rebuild godoc
// @Summary      Reconstruir snapshot desde el log
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body      dto.PairRequest  true  "Par"
// @Success      200   {object}  dto.SnapshotResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/rebuild [post]
func (h *StockHandler) Rebuild(c *fiber.Ctx) error {
	var req dto.PairRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: CodeInvalidBody, Message: "cuerpo inválido"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationResponse(err))
	}
	snap, err := h.rebuilder.Rebuild(c.UserContext(), req.ProductID, req.WarehouseID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToSnapshotResponse(snap))
}

// Verify godoc
// @Summary      Comparar snapshot con el replay del log
// @Tags         stock
// @Produce      json
// @Param        product_id    query     string  true  "Producto"
// @Param        warehouse_id  query     string  true  "Bodega"
// @Success      200  {object}  dto.DriftResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/verify [get]
func (h *StockHandler) Verify(c *fiber.Ctx) error {
	drift, err := h.rebuilder.Verify(c.UserContext(), c.Query("product_id"), c.Query("warehouse_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToDriftResponse(drift))
}

func toRecordInput(req dto.RecordMovementRequest, userID string) inventory.RecordInput {
	in := inventory.RecordInput{
		ProductID:     strings.TrimSpace(req.ProductID),
		WarehouseID:   strings.TrimSpace(req.WarehouseID),
		Kind:          entity.MovementKind(req.Kind),
		Quantity:      req.Quantity,
		UnitCost:      req.UnitCost,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Reason:        req.Reason,
		CostPolicy:    domaininv.CostPolicy(req.CostPolicy),
		CreatedBy:     userID,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = req.OccurredAt.UTC()
	}
	return in
}

// parseTimeParam acepta RFC3339 o YYYY-MM-DD (UTC). Con endOfDay una fecha sola cubre el día entero.
func parseTimeParam(name, raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domain.NewInvalidMovement(name, "es requerido")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, domain.NewInvalidMovement(name, "formato inválido, use YYYY-MM-DD o RFC3339: "+strconv.Quote(raw))
	}
	if endOfDay {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return d, nil
}
