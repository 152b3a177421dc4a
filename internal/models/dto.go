package models

import (
	"github.com/shopspring/decimal"
)

// ===== REQUEST DTOs =====

// TransactionRequest forma en el cable de una intención de movimiento
type TransactionRequest struct {
	ItemID         int64            `json:"item_id" validate:"required,gt=0"`
	Type           string           `json:"type" validate:"required,oneof=stock_in stock_out adjust move"`
	Quantity       int              `json:"quantity" validate:"gte=0"`
	FromLocationID *int64           `json:"from_location_id,omitempty" validate:"omitempty,gt=0"`
	ToLocationID   *int64           `json:"to_location_id,omitempty" validate:"omitempty,gt=0"`
	SupplierID     *int64           `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	UnitCost       *decimal.Decimal `json:"unit_cost,omitempty"`
	Memo           string           `json:"memo" validate:"max=500"`
}

// BatchTransactionRequest DTO para registro múltiple de movimientos
type BatchTransactionRequest struct {
	Transactions []TransactionRequest `json:"transactions" validate:"required,min=1,max=500,dive"`
}

// CreateItemRequest DTO para alta de item. InitialQuantity > 0 genera un stock_in.
type CreateItemRequest struct {
	SKU               string          `json:"sku" validate:"required,max=64"`
	Name              string          `json:"name" validate:"required,max=255"`
	Barcode           *string         `json:"barcode,omitempty" validate:"omitempty,max=128"`
	Cost              decimal.Decimal `json:"cost"`
	Price             decimal.Decimal `json:"price"`
	Type              string          `json:"type" validate:"max=64"`
	Brand             string          `json:"brand" validate:"max=128"`
	CategoryID        *int64          `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	MinimumQuantity   int             `json:"minimum_quantity" validate:"gte=0"`
	InitialQuantity   int             `json:"initial_quantity" validate:"gte=0"`
	InitialLocationID *int64          `json:"initial_location_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateItemRequest DTO para edición de item
type UpdateItemRequest struct {
	SKU             string          `json:"sku" validate:"required,max=64"`
	Name            string          `json:"name" validate:"required,max=255"`
	Barcode         *string         `json:"barcode,omitempty" validate:"omitempty,max=128"`
	Cost            decimal.Decimal `json:"cost"`
	Price           decimal.Decimal `json:"price"`
	Type            string          `json:"type" validate:"max=64"`
	Brand           string          `json:"brand" validate:"max=128"`
	CategoryID      *int64          `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	MinimumQuantity int             `json:"minimum_quantity" validate:"gte=0"`
	IsActive        *bool           `json:"is_active,omitempty"`
}

// CategoryRequest DTO para categorías
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=500"`
}

// LocationRequest DTO para locations
type LocationRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=500"`
	ParentID    *int64 `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// SupplierRequest DTO para proveedores
type SupplierRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Code        string `json:"code" validate:"max=64"`
	ContactName string `json:"contact_name" validate:"max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"max=64"`
	Address     string `json:"address" validate:"max=500"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// ===== RESPONSE DTOs =====

// TransactionResult movimiento registrado y snapshots afectados
type TransactionResult struct {
	Transaction StockTransaction `json:"transaction"`
	Snapshots   []ItemLocation   `json:"snapshots"`
}

// TransactionResponse respuesta para registro de un movimiento
type TransactionResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Data      TransactionResult `json:"data"`
	Timestamp string            `json:"timestamp"`
}

// BatchError error de procesamiento de un movimiento dentro de un lote
type BatchError struct {
	Index  int    `json:"index"`
	ItemID int64  `json:"item_id"`
	Error  string `json:"error"`
}

// BatchTransactionResponse respuesta para registro múltiple
type BatchTransactionResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Total     int                 `json:"total"`
	Results   []TransactionResult `json:"results"`
	Errors    []BatchError        `json:"errors,omitempty"`
	Timestamp string              `json:"timestamp"`
}

// ImportRowError error de una fila del CSV
type ImportRowError struct {
	Row   int    `json:"row"`
	SKU   string `json:"sku,omitempty"`
	Error string `json:"error"`
}

// ImportResult resultado de la importación masiva de items
type ImportResult struct {
	Created int              `json:"created"`
	Items   []*Item          `json:"items"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}
