package http

import (
	"github.com/gofiber/fiber/v2"
)

// Router registra las rutas de la API.
func Router(app *fiber.App, h *StockHandler) {
	stock := app.Group("/api/stock")
	stock.Post("/movements", h.RecordMovement)
	stock.Post("/movements/batch", h.RecordBatch)
	stock.Get("/current", h.CurrentStock)
	stock.Get("/ledger", h.Ledger)
	stock.Get("/inventory", h.Inventory)
	stock.Get("/warehouses", h.WarehousesForProduct)
	stock.Post("/rebuild", h.Rebuild)
	stock.Get("/verify", h.Verify)
}
