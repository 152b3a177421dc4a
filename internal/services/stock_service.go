package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"inventory-service/internal/events"
	"inventory-service/internal/ledger"
	"inventory-service/internal/models"
	"inventory-service/internal/repository"

	"go.uber.org/zap"
)

// Actor quién origina una operación. UserID termina en created_by.
type Actor struct {
	UserID   *int64
	TenantID string
}

// StockService define la interfaz para operaciones de stock
type StockService interface {
	// Escritura
	RecordTransaction(ctx context.Context, req models.TransactionRequest, actor Actor) (*models.TransactionResult, error)
	Record(ctx context.Context, intent ledger.Intent, actor Actor) (*models.TransactionResult, error)
	RecordBatch(ctx context.Context, req models.BatchTransactionRequest, actor Actor) ([]models.TransactionResult, []models.BatchError)
	// CreateItemWithStock da de alta el item junto con su stock_in inicial, todo o nada
	CreateItemWithStock(ctx context.Context, item *models.Item, initial ledger.StockIn, actor Actor) (*models.TransactionResult, error)

	// Consultas
	CurrentQuantity(ctx context.Context, itemID int64, locationID *int64) (int, error)
	LocationHistory(ctx context.Context, itemID int64) ([]ledger.HistoryEntry, error)
	LocationSummary(ctx context.Context, itemID int64) (*ledger.Summary, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionWithDetails, int, error)
	StockByLocation(ctx context.Context, locationID int64) ([]models.StockWithDetails, error)
	LowStock(ctx context.Context) ([]models.LowStockItem, error)
	Dashboard(ctx context.Context) (*models.DashboardSummary, error)

	// Reconciliación
	VerifySnapshot(ctx context.Context, itemID int64) ([]ledger.Drift, error)
	RebuildSnapshot(ctx context.Context, itemID int64) ([]models.ItemLocation, error)

	Metrics() models.LedgerMetrics
}

// stockService implementa StockService
type stockService struct {
	repo       repository.StockRepository
	writer     *ledger.Writer
	reconciler *ledger.Reconciler
	projector  *ledger.Projector
	publisher  events.Publisher
	logger     *zap.Logger
	now        func() time.Time

	metricsMu sync.Mutex
	metrics   models.LedgerMetrics
}

// NewStockService crea una nueva instancia del servicio.
// publisher puede ser nil si no hay difusión de cambios.
func NewStockService(repo repository.StockRepository, publisher events.Publisher, logger *zap.Logger) StockService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &stockService{
		repo:       repo,
		writer:     ledger.NewWriter(repo),
		reconciler: ledger.NewReconciler(repo),
		projector:  ledger.NewProjector(repo),
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
		metrics:    models.LedgerMetrics{ByType: map[models.TxType]int64{}},
	}
}

// RecordTransaction convierte el request en una intención y la registra
func (s *stockService) RecordTransaction(ctx context.Context, req models.TransactionRequest, actor Actor) (*models.TransactionResult, error) {
	intent, err := ledger.FromRequest(req)
	if err != nil {
		s.countRejected(err)
		return nil, err
	}
	return s.Record(ctx, intent, actor)
}

// Record escribe al ledger y, ya confirmado, publica el evento
func (s *stockService) Record(ctx context.Context, intent ledger.Intent, actor Actor) (*models.TransactionResult, error) {
	logger := s.logger.With(
		zap.String("operation", "record_transaction"),
		zap.String("type", string(intent.Type())),
		zap.Int64("item_id", intent.ItemID()),
		zap.String("tenant_id", actor.TenantID),
	)

	result, err := s.writer.Record(ctx, intent, actor.UserID)
	if err != nil {
		s.rejected(logger, err)
		return nil, err
	}
	s.recorded(ctx, logger, result, actor)
	return result, nil
}

func (s *stockService) CreateItemWithStock(ctx context.Context, item *models.Item, initial ledger.StockIn, actor Actor) (*models.TransactionResult, error) {
	logger := s.logger.With(
		zap.String("operation", "create_item_with_stock"),
		zap.String("sku", item.SKU),
		zap.Int64("location_id", initial.To),
		zap.String("tenant_id", actor.TenantID),
	)

	result, err := s.writer.CreateItem(ctx, item, initial, actor.UserID)
	if err != nil {
		s.rejected(logger, err)
		return nil, err
	}
	s.recorded(ctx, logger, result, actor)
	return result, nil
}

func (s *stockService) rejected(logger *zap.Logger, err error) {
	s.countRejected(err)
	if ledger.IsClientError(err) {
		logger.Warn("❌ Movimiento rechazado", zap.Error(err))
	} else {
		logger.Error("❌ Error registrando movimiento", zap.Error(err))
	}
}

// recorded cuenta y publica un movimiento ya confirmado.
// Un fallo al publicar no revierte la escritura.
func (s *stockService) recorded(ctx context.Context, logger *zap.Logger, result *models.TransactionResult, actor Actor) {
	s.countRecorded(result.Transaction.Type)
	logger.Info("✅ Movimiento registrado",
		zap.Int64("transaction_id", result.Transaction.ID),
		zap.Int("quantity", result.Transaction.Quantity),
	)

	event := events.NewStockEvent(actor.TenantID, result)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("No se pudo publicar el evento de stock", zap.Error(err))
	}
}

// RecordBatch procesa cada movimiento en su propia transacción.
// Los que fallan se reportan por índice; el resto queda registrado.
func (s *stockService) RecordBatch(ctx context.Context, req models.BatchTransactionRequest, actor Actor) ([]models.TransactionResult, []models.BatchError) {
	logger := s.logger.With(
		zap.String("operation", "record_batch"),
		zap.Int("total", len(req.Transactions)),
	)

	results := make([]models.TransactionResult, 0, len(req.Transactions))
	var failures []models.BatchError

	for i, tr := range req.Transactions {
		result, err := s.RecordTransaction(ctx, tr, actor)
		if err != nil {
			failures = append(failures, models.BatchError{Index: i, ItemID: tr.ItemID, Error: err.Error()})
			continue
		}
		results = append(results, *result)
	}

	logger.Info("Lote procesado",
		zap.Int("recorded", len(results)),
		zap.Int("failed", len(failures)),
	)
	return results, failures
}

func (s *stockService) CurrentQuantity(ctx context.Context, itemID int64, locationID *int64) (int, error) {
	return s.reconciler.CurrentQuantity(ctx, itemID, locationID)
}

func (s *stockService) LocationHistory(ctx context.Context, itemID int64) ([]ledger.HistoryEntry, error) {
	return s.projector.LocationHistory(ctx, itemID)
}

func (s *stockService) LocationSummary(ctx context.Context, itemID int64) (*ledger.Summary, error) {
	return s.projector.LocationSummary(ctx, itemID)
}

func (s *stockService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionWithDetails, int, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, 0, &ledger.ValidationError{Field: "type", Message: "unknown transaction type"}
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, &ledger.ValidationError{Field: "from", Message: "must not be after to"}
	}
	return s.repo.ListTransactions(ctx, filter)
}

func (s *stockService) StockByLocation(ctx context.Context, locationID int64) ([]models.StockWithDetails, error) {
	if _, err := s.repo.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return s.repo.StockByLocation(ctx, locationID)
}

func (s *stockService) LowStock(ctx context.Context) ([]models.LowStockItem, error) {
	return s.repo.LowStock(ctx)
}

func (s *stockService) Dashboard(ctx context.Context) (*models.DashboardSummary, error) {
	summary, err := s.repo.Dashboard(ctx)
	if err != nil {
		s.logger.Error("Error obteniendo dashboard", zap.Error(err))
		return nil, err
	}
	summary.Timestamp = s.now().UTC().Format(time.RFC3339)
	return summary, nil
}

func (s *stockService) VerifySnapshot(ctx context.Context, itemID int64) ([]ledger.Drift, error) {
	drift, err := s.reconciler.Verify(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		s.logger.Warn("Snapshot desalineado con el ledger",
			zap.String("operation", "verify_snapshot"),
			zap.Int64("item_id", itemID),
			zap.Int("locations", len(drift)),
		)
	}
	return drift, nil
}

func (s *stockService) RebuildSnapshot(ctx context.Context, itemID int64) ([]models.ItemLocation, error) {
	rows, err := s.reconciler.Rebuild(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("✅ Snapshot reconstruido desde el ledger",
		zap.String("operation", "rebuild_snapshot"),
		zap.Int64("item_id", itemID),
		zap.Int("locations", len(rows)),
	)
	return rows, nil
}

// Metrics copia de los contadores del ledger
func (s *stockService) Metrics() models.LedgerMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()

	out := s.metrics
	out.ByType = make(map[models.TxType]int64, len(s.metrics.ByType))
	for k, v := range s.metrics.ByType {
		out.ByType[k] = v
	}
	return out
}

func (s *stockService) countRecorded(t models.TxType) {
	s.metricsMu.Lock()
	s.metrics.Recorded++
	s.metrics.ByType[t]++
	s.metricsMu.Unlock()
}

func (s *stockService) countRejected(err error) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	if errors.Is(err, ledger.ErrInsufficientStock) {
		s.metrics.InsufficientStock++
		return
	}
	s.metrics.Rejected++
}
