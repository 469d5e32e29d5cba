package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Códigos de error de la API.
const (
	CodeInvalidBody         = "INVALID_BODY"
	CodeValidation          = "VALIDATION"
	CodeUnknownReference    = "UNKNOWN_REFERENCE"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInternal            = "INTERNAL"
)

// mapError traduce errores de dominio a status y cuerpo HTTP.
func mapError(err error) (int, dto.ErrorResponse) {
	var ime *domain.InvalidMovementError
	switch {
	case errors.As(err, &ime):
		return fiber.StatusBadRequest, dto.ErrorResponse{
			Code:    CodeValidation,
			Message: err.Error(),
			Details: []dto.FieldDetail{{Field: ime.Field, Message: ime.Reason}},
		}
	case errors.Is(err, domain.ErrUnknownReference):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: CodeUnknownReference, Message: err.Error()}
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, dto.ErrorResponse{Code: CodeInsufficientStock, Message: err.Error()}
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: CodeConcurrencyConflict, Message: err.Error()}
	default:
		// el detalle queda en el log, no en la respuesta
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: CodeInternal, Message: "error interno"}
	}
}

func (h *StockHandler) respondError(c *fiber.Ctx, err error) error {
	status, body := mapError(err)
	if status == fiber.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("request_id", requestID(c)).
			Msg("error interno")
	}
	return c.Status(status).JSON(body)
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
