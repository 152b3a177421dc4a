package ledger

import (
	"strings"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
)

// Intent es una intención de movimiento. Es un tipo cerrado: solo StockIn,
// StockOut, Move y Adjust la implementan, y cada variante lleva exactamente
// los campos que necesita.
type Intent interface {
	ItemID() int64
	Type() models.TxType
	Validate() error
	// Transaction arma la fila del ledger (sin ID) para el instante dado
	Transaction(at time.Time) models.StockTransaction
	isIntent()
}

// StockIn entrada de stock a una location
type StockIn struct {
	Item     int64
	To       int64
	Quantity int
	Supplier *int64
	UnitCost *decimal.Decimal
	Memo     string
}

// StockOut salida de stock desde una location
type StockOut struct {
	Item     int64
	From     int64
	Quantity int
	UnitCost *decimal.Decimal
	Memo     string
}

// Move traslado entre dos locations distintas
type Move struct {
	Item     int64
	From     int64
	To       int64
	Quantity int
	UnitCost *decimal.Decimal
	Memo     string
}

// Adjust fija la cantidad ABSOLUTA de una location (no es un delta)
type Adjust struct {
	Item        int64
	Location    int64
	NewQuantity int
	UnitCost    *decimal.Decimal
	Memo        string
}

func (StockIn) isIntent()  {}
func (StockOut) isIntent() {}
func (Move) isIntent()     {}
func (Adjust) isIntent()   {}

func (i StockIn) ItemID() int64  { return i.Item }
func (i StockOut) ItemID() int64 { return i.Item }
func (i Move) ItemID() int64     { return i.Item }
func (i Adjust) ItemID() int64   { return i.Item }

func (StockIn) Type() models.TxType  { return models.TxStockIn }
func (StockOut) Type() models.TxType { return models.TxStockOut }
func (Move) Type() models.TxType     { return models.TxMove }
func (Adjust) Type() models.TxType   { return models.TxAdjust }

func (i StockIn) Validate() error {
	if i.Item <= 0 {
		return invalid("item_id", "required")
	}
	if i.To <= 0 {
		return invalid("to_location_id", "required for stock_in")
	}
	if i.Quantity <= 0 {
		return invalid("quantity", "must be greater than zero")
	}
	if i.Supplier != nil && *i.Supplier <= 0 {
		return invalid("supplier_id", "must be a positive id")
	}
	return validateUnitCost(i.UnitCost)
}

func (i StockOut) Validate() error {
	if i.Item <= 0 {
		return invalid("item_id", "required")
	}
	if i.From <= 0 {
		return invalid("from_location_id", "required for stock_out")
	}
	if i.Quantity <= 0 {
		return invalid("quantity", "must be greater than zero")
	}
	return validateUnitCost(i.UnitCost)
}

func (i Move) Validate() error {
	if i.Item <= 0 {
		return invalid("item_id", "required")
	}
	if i.From <= 0 {
		return invalid("from_location_id", "required for move")
	}
	if i.To <= 0 {
		return invalid("to_location_id", "required for move")
	}
	if i.From == i.To {
		return invalid("to_location_id", "must differ from from_location_id")
	}
	if i.Quantity <= 0 {
		return invalid("quantity", "must be greater than zero")
	}
	return validateUnitCost(i.UnitCost)
}

func (i Adjust) Validate() error {
	if i.Item <= 0 {
		return invalid("item_id", "required")
	}
	if i.Location <= 0 {
		return invalid("to_location_id", "required for adjust")
	}
	if i.NewQuantity < 0 {
		return invalid("quantity", "must not be negative")
	}
	return validateUnitCost(i.UnitCost)
}

func (i StockIn) Transaction(at time.Time) models.StockTransaction {
	return models.StockTransaction{
		CreatedAt:    at,
		ItemID:       i.Item,
		Type:         models.TxStockIn,
		Quantity:     i.Quantity,
		ToLocationID: ptr(i.To),
		SupplierID:   i.Supplier,
		UnitCost:     nullCost(i.UnitCost),
		Memo:         i.Memo,
	}
}

func (i StockOut) Transaction(at time.Time) models.StockTransaction {
	return models.StockTransaction{
		CreatedAt:      at,
		ItemID:         i.Item,
		Type:           models.TxStockOut,
		Quantity:       i.Quantity,
		FromLocationID: ptr(i.From),
		UnitCost:       nullCost(i.UnitCost),
		Memo:           i.Memo,
	}
}

func (i Move) Transaction(at time.Time) models.StockTransaction {
	return models.StockTransaction{
		CreatedAt:      at,
		ItemID:         i.Item,
		Type:           models.TxMove,
		Quantity:       i.Quantity,
		FromLocationID: ptr(i.From),
		ToLocationID:   ptr(i.To),
		UnitCost:       nullCost(i.UnitCost),
		Memo:           i.Memo,
	}
}

func (i Adjust) Transaction(at time.Time) models.StockTransaction {
	return models.StockTransaction{
		CreatedAt:    at,
		ItemID:       i.Item,
		Type:         models.TxAdjust,
		Quantity:     i.NewQuantity,
		ToLocationID: ptr(i.Location),
		UnitCost:     nullCost(i.UnitCost),
		Memo:         i.Memo,
	}
}

// FromRequest convierte la forma del cable en la variante correspondiente.
// Rechaza campos de location o proveedor que no aplican al tipo.
func FromRequest(req models.TransactionRequest) (Intent, error) {
	memo := strings.TrimSpace(req.Memo)

	var intent Intent
	switch models.TxType(req.Type) {
	case models.TxStockIn:
		if req.FromLocationID != nil {
			return nil, invalid("from_location_id", "not allowed for stock_in")
		}
		intent = StockIn{
			Item:     req.ItemID,
			To:       deref(req.ToLocationID),
			Quantity: req.Quantity,
			Supplier: req.SupplierID,
			UnitCost: req.UnitCost,
			Memo:     memo,
		}
	case models.TxStockOut:
		if req.ToLocationID != nil {
			return nil, invalid("to_location_id", "not allowed for stock_out")
		}
		if req.SupplierID != nil {
			return nil, invalid("supplier_id", "only allowed for stock_in")
		}
		intent = StockOut{
			Item:     req.ItemID,
			From:     deref(req.FromLocationID),
			Quantity: req.Quantity,
			UnitCost: req.UnitCost,
			Memo:     memo,
		}
	case models.TxMove:
		if req.SupplierID != nil {
			return nil, invalid("supplier_id", "only allowed for stock_in")
		}
		intent = Move{
			Item:     req.ItemID,
			From:     deref(req.FromLocationID),
			To:       deref(req.ToLocationID),
			Quantity: req.Quantity,
			UnitCost: req.UnitCost,
			Memo:     memo,
		}
	case models.TxAdjust:
		if req.FromLocationID != nil {
			return nil, invalid("from_location_id", "not allowed for adjust")
		}
		if req.SupplierID != nil {
			return nil, invalid("supplier_id", "only allowed for stock_in")
		}
		intent = Adjust{
			Item:        req.ItemID,
			Location:    deref(req.ToLocationID),
			NewQuantity: req.Quantity,
			UnitCost:    req.UnitCost,
			Memo:        memo,
		}
	default:
		return nil, invalid("type", "must be one of stock_in, stock_out, adjust, move")
	}

	if err := intent.Validate(); err != nil {
		return nil, err
	}
	return intent, nil
}

// source devuelve la location que se descuenta y cuánto, si aplica
func source(intent Intent) (int64, int, bool) {
	switch v := intent.(type) {
	case StockOut:
		return v.From, v.Quantity, true
	case Move:
		return v.From, v.Quantity, true
	}
	return 0, 0, false
}

// touchedLocations locations cuyo snapshot cambia con la intención
func touchedLocations(intent Intent) []int64 {
	switch v := intent.(type) {
	case StockIn:
		return []int64{v.To}
	case StockOut:
		return []int64{v.From}
	case Move:
		return []int64{v.From, v.To}
	case Adjust:
		return []int64{v.Location}
	}
	return nil
}

func validateUnitCost(c *decimal.Decimal) error {
	if c != nil && c.IsNegative() {
		return invalid("unit_cost", "must not be negative")
	}
	return nil
}

func nullCost(c *decimal.Decimal) decimal.NullDecimal {
	if c == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*c)
}

func ptr(v int64) *int64 { return &v }

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
