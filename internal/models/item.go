package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item representa la tabla items (catálogo)
type Item struct {
	ID              int64           `json:"id" db:"id"`
	SKU             string          `json:"sku" db:"sku"`
	Name            string          `json:"name" db:"name"`
	Barcode         *string         `json:"barcode,omitempty" db:"barcode"`
	Cost            decimal.Decimal `json:"cost" db:"cost"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Type            string          `json:"type" db:"item_type"`
	Brand           string          `json:"brand" db:"brand"`
	CategoryID      *int64          `json:"category_id,omitempty" db:"category_id"`
	MinimumQuantity int             `json:"minimum_quantity" db:"minimum_quantity"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Category representa la tabla categories
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Location representa un lugar que guarda stock (bodega, tienda, estante).
// Puede colgar de otra location vía ParentID.
type Location struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ParentID    *int64    `json:"parent_id,omitempty" db:"parent_id"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Supplier representa un proveedor
type Supplier struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Code        string    `json:"code" db:"code"`
	ContactName string    `json:"contact_name" db:"contact_name"`
	Email       string    `json:"email" db:"email"`
	Phone       string    `json:"phone" db:"phone"`
	Address     string    `json:"address" db:"address"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ItemFilter filtros para el listado del catálogo
type ItemFilter struct {
	Search     string `json:"search,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	Active     *bool  `json:"active,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}
