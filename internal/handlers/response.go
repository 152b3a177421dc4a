package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/ledger"
	"inventory-service/internal/middleware"
	"inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// statusFor traduce errores de dominio a códigos HTTP
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientStock),
		errors.Is(err, ledger.ErrConstraint),
		errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError responde con el envelope de error. Los 5xx se loguean como Error.
func respondError(c *gin.Context, logger *zap.Logger, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err))
	} else {
		logger.Warn(message, zap.Error(err), zap.Int("status", status))
	}

	body := gin.H{
		"success": false,
		"message": "❌ " + message,
		"error":   err.Error(),
	}

	var insufficient *ledger.InsufficientStockError
	if errors.As(err, &insufficient) {
		body["details"] = gin.H{
			"item_id":     insufficient.ItemID,
			"location_id": insufficient.LocationID,
			"available":   insufficient.Available,
			"requested":   insufficient.Requested,
			"shortfall":   insufficient.Shortfall(),
		}
	}
	var invalid *ledger.ValidationError
	if errors.As(err, &invalid) && invalid.Field != "" {
		body["field"] = invalid.Field
	}

	c.JSON(status, body)
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"message": "✅ " + message,
		"data":    data,
	})
}

// bindJSON parsea y valida el body
func bindJSON(c *gin.Context, v *validator.Validate, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return &ledger.ValidationError{Field: "body", Message: err.Error()}
	}
	if err := v.Struct(dst); err != nil {
		return &ledger.ValidationError{Message: err.Error()}
	}
	return nil
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &ledger.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

func queryID(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, &ledger.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return &id, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ledger.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &ledger.ValidationError{Field: name, Message: "must be a boolean"}
	}
	return &b, nil
}

// queryTime acepta RFC3339 o YYYY-MM-DD. Con endOfDay una fecha sola cubre el día completo.
func queryTime(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, &ledger.ValidationError{Field: name, Message: "expected RFC3339 or YYYY-MM-DD"}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:   middleware.UserID(c),
		TenantID: middleware.TenantID(c),
	}
}
