package events

import (
	"context"
	"errors"
	"time"

	"inventory-service/internal/models"
)

// EventStockRecorded tipo de evento emitido tras cada escritura al ledger
const EventStockRecorded = "stock.recorded"

// StockEvent cambio de stock ya confirmado en la base
type StockEvent struct {
	Type        string                  `json:"type"`
	TenantID    string                  `json:"tenant_id,omitempty"`
	Transaction models.StockTransaction `json:"transaction"`
	Snapshots   []models.ItemLocation   `json:"snapshots"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

// NewStockEvent arma el evento a partir del resultado de una escritura
func NewStockEvent(tenantID string, result *models.TransactionResult) StockEvent {
	return StockEvent{
		Type:        EventStockRecorded,
		TenantID:    tenantID,
		Transaction: result.Transaction,
		Snapshots:   result.Snapshots,
		OccurredAt:  result.Transaction.CreatedAt,
	}
}

// Publisher difunde eventos de stock. La entrega es best-effort.
type Publisher interface {
	Publish(ctx context.Context, event StockEvent) error
}

// MultiPublisher publica en todos y junta los errores
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event StockEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher descarta los eventos
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, StockEvent) error { return nil }
