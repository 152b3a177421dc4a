package ledger

import (
	"errors"
	"fmt"
)

// Errores centinela, usar con errors.Is
var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("not found")
	ErrConstraint        = errors.New("constraint violation")
	ErrConflict          = errors.New("conflict")
)

// ValidationError intención o payload mal formado
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError la location de origen no tiene cantidad suficiente.
// Nunca se recorta la cantidad pedida.
type InsufficientStockError struct {
	ItemID     int64
	LocationID int64
	Available  int
	Requested  int
}

// Shortfall unidades que faltan
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d at location %d: available %d, requested %d, shortfall %d",
		e.ItemID, e.LocationID, e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// NotFoundError referencia a item/location/supplier/category inexistente
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConstraintError violación de unicidad u otra restricción del store (ej: SKU duplicado)
type ConstraintError struct {
	Constraint string
	Detail     string
}

func (e *ConstraintError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("constraint %s violated: %s", e.Constraint, e.Detail)
	}
	return fmt.Sprintf("constraint %s violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraint }

// ConflictError operación no permitida por el estado actual (ej: ciclo de locations)
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IsClientError true si el error se debe a la entrada del caller
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrConstraint) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound true si el error indica un recurso inexistente
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
