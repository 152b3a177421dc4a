package handlers

import (
	"net/http"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// StockHandler maneja las peticiones HTTP del ledger de stock
type StockHandler struct {
	stockService services.StockService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewStockHandler crea una nueva instancia del handler
func NewStockHandler(stockService services.StockService, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		stockService: stockService,
		validator:    validator.New(),
		logger:       logger,
	}
}

// RecordTransaction registra un movimiento (stock_in, stock_out, move, adjust)
func (h *StockHandler) RecordTransaction(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "record_transaction"))

	var req models.TransactionRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}

	result, err := h.stockService.RecordTransaction(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		respondError(c, logger, "No se pudo registrar el movimiento", err)
		return
	}

	c.JSON(http.StatusCreated, models.TransactionResponse{
		Success:   true,
		Message:   "✅ Movimiento registrado",
		Data:      *result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RecordBatch registra varios movimientos; cada uno se confirma por separado
func (h *StockHandler) RecordBatch(c *gin.Context) {
	start := time.Now()
	logger := h.logger.With(zap.String("handler", "record_batch"))

	var req models.BatchTransactionRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}

	results, failures := h.stockService.RecordBatch(c.Request.Context(), req, actorFrom(c))

	message := "✅ Lote registrado"
	if len(failures) > 0 {
		message = "⚠️ Lote registrado con errores"
	}
	logger.Info("Lote procesado",
		zap.Int("recorded", len(results)),
		zap.Int("failed", len(failures)),
		zap.Duration("latency", time.Since(start)))

	c.JSON(http.StatusOK, models.BatchTransactionResponse{
		Success:   len(failures) == 0,
		Message:   message,
		Total:     len(req.Transactions),
		Results:   results,
		Errors:    failures,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ListTransactions lista movimientos con filtros, más recientes primero
func (h *StockHandler) ListTransactions(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "list_transactions"))

	filter, err := transactionFilter(c)
	if err != nil {
		respondError(c, logger, "Filtros inválidos", err)
		return
	}

	txs, total, err := h.stockService.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, logger, "Error obteniendo movimientos", err)
		return
	}

	respondOK(c, http.StatusOK, "Movimientos obtenidos correctamente", gin.H{
		"transactions": txs,
		"total":        total,
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

func transactionFilter(c *gin.Context) (models.TransactionFilter, error) {
	var f models.TransactionFilter
	var err error

	if f.ItemID, err = queryID(c, "item_id"); err != nil {
		return f, err
	}
	if f.LocationID, err = queryID(c, "location_id"); err != nil {
		return f, err
	}
	if t := c.Query("type"); t != "" {
		txType := models.TxType(t)
		f.Type = &txType
	}
	if f.From, err = queryTime(c, "from", false); err != nil {
		return f, err
	}
	if f.To, err = queryTime(c, "to", true); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// GetQuantity cantidad actual del item, total o en una location
func (h *StockHandler) GetQuantity(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_quantity"))

	itemID, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}
	locationID, err := queryID(c, "location_id")
	if err != nil {
		respondError(c, logger, "ID de location inválido", err)
		return
	}

	qty, err := h.stockService.CurrentQuantity(c.Request.Context(), itemID, locationID)
	if err != nil {
		respondError(c, logger, "Error obteniendo cantidad", err)
		return
	}

	respondOK(c, http.StatusOK, "Cantidad obtenida", gin.H{
		"item_id":     itemID,
		"location_id": locationID,
		"quantity":    qty,
	})
}

// GetLocationHistory historial de movimientos del item, más reciente primero
func (h *StockHandler) GetLocationHistory(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_location_history"))

	itemID, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}

	history, err := h.stockService.LocationHistory(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, logger, "Error obteniendo historial", err)
		return
	}

	respondOK(c, http.StatusOK, "Historial obtenido", gin.H{
		"item_id": itemID,
		"history": history,
		"total":   len(history),
	})
}

// GetLocationSummary ubicación actual, valores y distribución del item
func (h *StockHandler) GetLocationSummary(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_location_summary"))

	itemID, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}

	summary, err := h.stockService.LocationSummary(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, logger, "Error obteniendo resumen", err)
		return
	}

	respondOK(c, http.StatusOK, "Resumen obtenido", summary)
}

// VerifySnapshot compara el snapshot con la reproducción del ledger
func (h *StockHandler) VerifySnapshot(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "verify_snapshot"))

	itemID, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}

	drift, err := h.stockService.VerifySnapshot(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, logger, "Error verificando snapshot", err)
		return
	}

	respondOK(c, http.StatusOK, "Snapshot verificado", gin.H{
		"item_id":    itemID,
		"consistent": len(drift) == 0,
		"drift":      drift,
	})
}

// RebuildSnapshot reescribe el snapshot del item desde el ledger
func (h *StockHandler) RebuildSnapshot(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "rebuild_snapshot"))

	itemID, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}

	rows, err := h.stockService.RebuildSnapshot(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, logger, "Error reconstruyendo snapshot", err)
		return
	}

	respondOK(c, http.StatusOK, "Snapshot reconstruido", gin.H{
		"item_id":   itemID,
		"locations": rows,
	})
}

// GetStockByLocation stock de todos los items en una location
func (h *StockHandler) GetStockByLocation(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_stock_by_location"))

	locationID, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de location inválido", err)
		return
	}

	stock, err := h.stockService.StockByLocation(c.Request.Context(), locationID)
	if err != nil {
		respondError(c, logger, "Error obteniendo stock", err)
		return
	}

	respondOK(c, http.StatusOK, "Stock obtenido correctamente", gin.H{
		"location_id": locationID,
		"stock":       stock,
		"total":       len(stock),
	})
}

// GetLowStock items en o bajo su cantidad mínima
func (h *StockHandler) GetLowStock(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_low_stock"))

	items, err := h.stockService.LowStock(c.Request.Context())
	if err != nil {
		respondError(c, logger, "Error obteniendo stock bajo", err)
		return
	}

	respondOK(c, http.StatusOK, "Items con stock bajo obtenidos", gin.H{
		"items": items,
		"total": len(items),
	})
}

// GetDashboard resumen general del inventario
func (h *StockHandler) GetDashboard(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_dashboard"))

	summary, err := h.stockService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, logger, "Error obteniendo dashboard", err)
		return
	}

	respondOK(c, http.StatusOK, "Dashboard obtenido", summary)
}
