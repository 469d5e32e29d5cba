package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

func TestMapPgError(t *testing.T) {
	for _, code := range []string{codeLockNotAvailable, codeSerializationFail, codeDeadlockDetected} {
		err := mapPgError(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: code}))
		assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict), code)
	}

	err := mapPgError(&pgconn.PgError{Code: codeForeignKeyViolation, ConstraintName: "stock_movements_warehouse_fk"})
	var ure *domain.UnknownReferenceError
	assert.True(t, errors.As(err, &ure))
	assert.Equal(t, "warehouse", ure.Entity)

	err = mapPgError(&pgconn.PgError{
		Code:           codeCheckViolation,
		TableName:      "stock_movements",
		ConstraintName: "stock_movements_quantity_change_check",
		Message:        `new row for relation "stock_movements" violates check constraint`,
	})
	var ime *domain.InvalidMovementError
	assert.True(t, errors.As(err, &ime))
	assert.Equal(t, "quantity_change", ime.Field)
	assert.True(t, errors.Is(err, domain.ErrInvalidMovement))

	plain := errors.New("otro")
	assert.Same(t, plain, mapPgError(plain))
	assert.NoError(t, mapPgError(nil))
}

func TestPgx5URL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", pgx5URL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u@h/db", pgx5URL("postgresql://u@h/db"))
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("7f1c2b8e-3c1a-4d7e-9a43-1b2c3d4e5f60"))
	assert.False(t, validID("prod-1"))
	assert.False(t, validID(""))
}
