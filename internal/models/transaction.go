package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType tipo de movimiento del ledger
type TxType string

const (
	TxStockIn  TxType = "stock_in"
	TxStockOut TxType = "stock_out"
	TxAdjust   TxType = "adjust"
	TxMove     TxType = "move"
)

// Valid indica si el tipo es uno de los cuatro soportados
func (t TxType) Valid() bool {
	switch t {
	case TxStockIn, TxStockOut, TxAdjust, TxMove:
		return true
	}
	return false
}

// StockTransaction representa la tabla stock_transactions (append-only).
// Quantity siempre es una magnitud; en adjust es la cantidad absoluta nueva.
type StockTransaction struct {
	ID             int64               `json:"id" db:"id"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	ItemID         int64               `json:"item_id" db:"item_id"`
	Type           TxType              `json:"type" db:"tx_type"`
	Quantity       int                 `json:"quantity" db:"quantity"`
	FromLocationID *int64              `json:"from_location_id,omitempty" db:"from_location_id"`
	ToLocationID   *int64              `json:"to_location_id,omitempty" db:"to_location_id"`
	SupplierID     *int64              `json:"supplier_id,omitempty" db:"supplier_id"`
	UnitCost       decimal.NullDecimal `json:"unit_cost" db:"unit_cost"`
	Memo           string              `json:"memo" db:"memo"`
	CreatedBy      *int64              `json:"created_by,omitempty" db:"created_by"`
}

// TransactionWithDetails incluye nombres para listados
type TransactionWithDetails struct {
	StockTransaction
	ItemSKU          string  `json:"item_sku" db:"item_sku"`
	ItemName         string  `json:"item_name" db:"item_name"`
	FromLocationName *string `json:"from_location_name,omitempty" db:"from_location_name"`
	ToLocationName   *string `json:"to_location_name,omitempty" db:"to_location_name"`
	SupplierName     *string `json:"supplier_name,omitempty" db:"supplier_name"`
}

// TransactionFilter filtros para consultas de movimientos
type TransactionFilter struct {
	ItemID     *int64     `json:"item_id,omitempty"`
	LocationID *int64     `json:"location_id,omitempty"`
	Type       *TxType    `json:"type,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

// ItemLocation representa la tabla item_locations: snapshot materializado
// de la cantidad actual por (item, location). Se reconstruye desde el ledger.
type ItemLocation struct {
	ItemID          int64     `json:"item_id" db:"item_id"`
	LocationID      int64     `json:"location_id" db:"location_id"`
	CurrentQuantity int       `json:"current_quantity" db:"current_quantity"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// StockWithDetails stock de una location con información del item
type StockWithDetails struct {
	ItemLocation
	ItemSKU         string `json:"item_sku" db:"item_sku"`
	ItemName        string `json:"item_name" db:"item_name"`
	MinimumQuantity int    `json:"minimum_quantity" db:"minimum_quantity"`
	LocationName    string `json:"location_name" db:"location_name"`
}

// LowStockItem item cuyo total está en o bajo el mínimo
type LowStockItem struct {
	ItemID          int64  `json:"item_id" db:"item_id"`
	SKU             string `json:"sku" db:"sku"`
	Name            string `json:"name" db:"name"`
	MinimumQuantity int    `json:"minimum_quantity" db:"minimum_quantity"`
	TotalQuantity   int    `json:"total_quantity" db:"total_quantity"`
}

// DashboardSummary resumen general del inventario
type DashboardSummary struct {
	ActiveItems     int             `json:"active_items"`
	ActiveLocations int             `json:"active_locations"`
	ActiveSuppliers int             `json:"active_suppliers"`
	TotalUnits      int             `json:"total_units"`
	TotalValue      decimal.Decimal `json:"total_value"`
	LowStockItems   int             `json:"low_stock_items"`
	Timestamp       string          `json:"timestamp"`
}
