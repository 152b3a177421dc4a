package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"inventory-service/internal/ledger"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Códigos SQLSTATE de PostgreSQL que se traducen a errores de dominio
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// translate convierte errores del driver en errores de dominio.
// Lo que no reconoce lo envuelve con la operación.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return &ledger.ConstraintError{Constraint: pqErr.Constraint, Detail: pqErr.Detail}
		case pqForeignKeyViolation:
			return &ledger.NotFoundError{Entity: referencedEntity(pqErr.Constraint)}
		case pqCheckViolation:
			return &ledger.ConstraintError{Constraint: pqErr.Constraint, Detail: pqErr.Message}
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &ledger.ConstraintError{Constraint: "unique", Detail: liteErr.Error()}
		case sqlite3.ErrConstraintForeignKey:
			return &ledger.NotFoundError{Entity: "referenced row"}
		default:
			return &ledger.ConstraintError{Constraint: "check", Detail: liteErr.Error()}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// notFound traduce sql.ErrNoRows a NotFoundError de la entidad
func notFound(err error, entity string, id any, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Entity: entity, ID: id}
	}
	return translate(err, op)
}

// referencedEntity deduce la entidad a partir del nombre de la FK
// (por defecto <tabla>_<columna>_fkey, ej: stock_transactions_item_id_fkey)
func referencedEntity(constraint string) string {
	switch {
	case strings.HasSuffix(constraint, "_item_id_fkey"):
		return "item"
	case strings.HasSuffix(constraint, "location_id_fkey"), strings.HasSuffix(constraint, "_parent_id_fkey"):
		return "location"
	case strings.HasSuffix(constraint, "_supplier_id_fkey"):
		return "supplier"
	case strings.HasSuffix(constraint, "_category_id_fkey"):
		return "category"
	}
	return "referenced row"
}
