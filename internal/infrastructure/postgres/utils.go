package postgres

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

const (
	codeCheckViolation      = "23514"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeSerializationFail   = "40001"
	codeDeadlockDetected    = "40P01"
	codeLockNotAvailable    = "55P03"
)

// pgCode código SQLSTATE del error, vacío si no viene de PostgreSQL.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// mapPgError traduce los SQLSTATE que el motor trata como errores de dominio.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeSerializationFail, codeDeadlockDetected:
		return &domain.ConcurrencyConflictError{Cause: err}
	case codeForeignKeyViolation:
		entity := "product"
		if strings.Contains(pgErr.ConstraintName, "warehouse") {
			entity = "warehouse"
		}
		return &domain.UnknownReferenceError{Entity: entity, ID: pgErr.Detail}
	case codeCheckViolation:
		return domain.NewInvalidMovement(checkField(pgErr), "rechazado por la base de datos: "+pgErr.Message)
	}
	return err
}

// checkField columna de un CHECK con nombre por defecto (<tabla>_<columna>_check).
func checkField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	name := strings.TrimSuffix(pgErr.ConstraintName, "_check")
	if pgErr.TableName != "" {
		name = strings.TrimPrefix(name, pgErr.TableName+"_")
	}
	return name
}

// validID los IDs son UUID; cualquier otra cosa no puede existir en la BD.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
