package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio del libro de stock. Los tipos concretos de abajo hacen match
// con estos sentinelas vía errors.Is.
var (
	ErrInvalidMovement     = errors.New("movimiento inválido")
	ErrUnknownReference    = errors.New("producto o bodega desconocido")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia, reintente la operación")
)

// InsufficientStockError una salida dejaría el stock en negativo. El movimiento no se registra.
type InsufficientStockError struct {
	ProductID   string
	WarehouseID string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

// Shortfall cantidad que falta para poder despachar lo solicitado.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para producto %s en bodega %s: solicitado %s, disponible %s, faltan %s",
		e.ProductID, e.WarehouseID, e.Requested.String(), e.Available.String(), e.Shortfall().String())
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InvalidMovementError entrada rechazada antes de cualquier efecto.
type InvalidMovementError struct {
	Field  string
	Reason string
}

// NewInvalidMovement construye un InvalidMovementError.
func NewInvalidMovement(field, reason string) *InvalidMovementError {
	return &InvalidMovementError{Field: field, Reason: reason}
}

func (e *InvalidMovementError) Error() string {
	if e.Field == "" {
		return "movimiento inválido: " + e.Reason
	}
	return fmt.Sprintf("movimiento inválido: %s %s", e.Field, e.Reason)
}

func (e *InvalidMovementError) Is(target error) bool { return target == ErrInvalidMovement }

// UnknownReferenceError el producto o la bodega no existen en datos maestros.
type UnknownReferenceError struct {
	Entity string // product, warehouse, category
	ID     string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%s %q no existe en datos maestros", e.Entity, e.ID)
}

func (e *UnknownReferenceError) Is(target error) bool { return target == ErrUnknownReference }

// ConcurrencyConflictError no se obtuvo el bloqueo del par (producto, bodega) o la BD abortó
// por serialización. Es seguro reintentar la operación completa.
type ConcurrencyConflictError struct {
	ProductID   string
	WarehouseID string
	Cause       error
}

func (e *ConcurrencyConflictError) Error() string {
	msg := fmt.Sprintf("conflicto de concurrencia en producto %s bodega %s", e.ProductID, e.WarehouseID)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func (e *ConcurrencyConflictError) Unwrap() error { return e.Cause }
