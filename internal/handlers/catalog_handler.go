package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"inventory-service/internal/ledger"
	"inventory-service/internal/models"
	"inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// maxImportBytes tope del body de una importación CSV
const maxImportBytes = 10 << 20

// CatalogHandler maneja items, categorías, locations y proveedores
type CatalogHandler struct {
	catalogService services.CatalogService
	validator      *validator.Validate
	logger         *zap.Logger
	maxImportBytes int64
}

func NewCatalogHandler(catalogService services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		validator:      validator.New(),
		logger:         logger,
		maxImportBytes: maxImportBytes,
	}
}

// ===== ITEMS =====

func (h *CatalogHandler) CreateItem(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "create_item"))

	var req models.CreateItemRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}

	item, err := h.catalogService.CreateItem(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		respondError(c, logger, "No se pudo crear el item", err)
		return
	}
	respondOK(c, http.StatusCreated, "Item creado", item)
}

func (h *CatalogHandler) ListItems(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "list_items"))

	filter, err := itemFilter(c)
	if err != nil {
		respondError(c, logger, "Filtros inválidos", err)
		return
	}

	items, total, err := h.catalogService.ListItems(c.Request.Context(), filter)
	if err != nil {
		respondError(c, logger, "Error obteniendo items", err)
		return
	}
	respondOK(c, http.StatusOK, "Items obtenidos correctamente", gin.H{
		"items": items,
		"total": total,
	})
}

func itemFilter(c *gin.Context) (models.ItemFilter, error) {
	f := models.ItemFilter{Search: c.Query("search")}
	var err error

	if f.CategoryID, err = queryID(c, "category_id"); err != nil {
		return f, err
	}
	if f.Active, err = queryBool(c, "active"); err != nil {
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

func (h *CatalogHandler) GetItem(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_item"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}
	item, err := h.catalogService.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, "Item no encontrado", err)
		return
	}
	respondOK(c, http.StatusOK, "Item obtenido", item)
}

func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "update_item"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}
	var req models.UpdateItemRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}

	item, err := h.catalogService.UpdateItem(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, logger, "No se pudo actualizar el item", err)
		return
	}
	respondOK(c, http.StatusOK, "Item actualizado", item)
}

// DeleteItem desactiva el item; su historial se conserva
func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "delete_item"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}
	if err := h.catalogService.DeleteItem(c.Request.Context(), id); err != nil {
		respondError(c, logger, "No se pudo eliminar el item", err)
		return
	}
	respondOK(c, http.StatusOK, "Item desactivado", gin.H{"id": id})
}

func (h *CatalogHandler) DuplicateItem(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "duplicate_item"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de item inválido", err)
		return
	}
	item, err := h.catalogService.DuplicateItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, "No se pudo duplicar el item", err)
		return
	}
	respondOK(c, http.StatusCreated, "Item duplicado", item)
}

// LookupBarcode búsqueda rápida por código de barras (caché L1/L2)
func (h *CatalogHandler) LookupBarcode(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "lookup_barcode"))

	item, err := h.catalogService.GetItemByBarcode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, logger, "Item no encontrado", err)
		return
	}
	respondOK(c, http.StatusOK, "Item encontrado", item)
}

// ImportItems recibe el CSV como multipart (campo "file") o como body text/csv
func (h *CatalogHandler) ImportItems(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "import_items"))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes)

	var reader io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if !errors.As(err, &tooLarge) {
				err = &ledger.ValidationError{Field: "file", Message: err.Error()}
			}
			respondError(c, logger, "Archivo requerido", err)
			return
		}
		f, err := header.Open()
		if err != nil {
			respondError(c, logger, "No se pudo leer el archivo", err)
			return
		}
		defer f.Close()
		reader = f
	}

	result, err := h.catalogService.ImportItems(c.Request.Context(), reader, actorFrom(c))
	if err != nil {
		respondError(c, logger, "No se pudo importar el archivo", err)
		return
	}

	message := "Importación completada"
	if len(result.Errors) > 0 {
		message = "Importación completada con errores"
	}
	respondOK(c, http.StatusOK, message, result)
}

func (h *CatalogHandler) ExportItems(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "export_items"))

	var buf bytes.Buffer
	if err := h.catalogService.ExportItems(c.Request.Context(), &buf); err != nil {
		respondError(c, logger, "No se pudo exportar el catálogo", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="items.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ===== CATEGORÍAS =====

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "create_category"))

	var req models.CategoryRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}
	cat, err := h.catalogService.CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, "No se pudo crear la categoría", err)
		return
	}
	respondOK(c, http.StatusCreated, "Categoría creada", cat)
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "list_categories"))

	cats, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, logger, "Error obteniendo categorías", err)
		return
	}
	respondOK(c, http.StatusOK, "Categorías obtenidas", cats)
}

func (h *CatalogHandler) GetCategory(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_category"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de categoría inválido", err)
		return
	}
	cat, err := h.catalogService.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, "Categoría no encontrada", err)
		return
	}
	respondOK(c, http.StatusOK, "Categoría obtenida", cat)
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "update_category"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de categoría inválido", err)
		return
	}
	var req models.CategoryRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}
	cat, err := h.catalogService.UpdateCategory(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, logger, "No se pudo actualizar la categoría", err)
		return
	}
	respondOK(c, http.StatusOK, "Categoría actualizada", cat)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "delete_category"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de categoría inválido", err)
		return
	}
	if err := h.catalogService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, logger, "No se pudo eliminar la categoría", err)
		return
	}
	respondOK(c, http.StatusOK, "Categoría eliminada", gin.H{"id": id})
}

// ===== LOCATIONS =====

func (h *CatalogHandler) CreateLocation(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "create_location"))

	var req models.LocationRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}
	loc, err := h.catalogService.CreateLocation(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, "No se pudo crear la location", err)
		return
	}
	respondOK(c, http.StatusCreated, "Location creada", loc)
}

func (h *CatalogHandler) ListLocations(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "list_locations"))

	locs, err := h.catalogService.ListLocations(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		respondError(c, logger, "Error obteniendo locations", err)
		return
	}
	respondOK(c, http.StatusOK, "Locations obtenidas", locs)
}

func (h *CatalogHandler) GetLocation(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_location"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de location inválido", err)
		return
	}
	loc, err := h.catalogService.GetLocation(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, "Location no encontrada", err)
		return
	}
	respondOK(c, http.StatusOK, "Location obtenida", loc)
}

func (h *CatalogHandler) UpdateLocation(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "update_location"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de location inválido", err)
		return
	}
	var req models.LocationRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}
	loc, err := h.catalogService.UpdateLocation(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, logger, "No se pudo actualizar la location", err)
		return
	}
	respondOK(c, http.StatusOK, "Location actualizada", loc)
}

func (h *CatalogHandler) DeleteLocation(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "delete_location"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de location inválido", err)
		return
	}
	if err := h.catalogService.DeleteLocation(c.Request.Context(), id); err != nil {
		respondError(c, logger, "No se pudo eliminar la location", err)
		return
	}
	respondOK(c, http.StatusOK, "Location desactivada", gin.H{"id": id})
}

// ===== PROVEEDORES =====

func (h *CatalogHandler) CreateSupplier(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "create_supplier"))

	var req models.SupplierRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}
	sup, err := h.catalogService.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, "No se pudo crear el proveedor", err)
		return
	}
	respondOK(c, http.StatusCreated, "Proveedor creado", sup)
}

func (h *CatalogHandler) ListSuppliers(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "list_suppliers"))

	sups, err := h.catalogService.ListSuppliers(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		respondError(c, logger, "Error obteniendo proveedores", err)
		return
	}
	respondOK(c, http.StatusOK, "Proveedores obtenidos", sups)
}

func (h *CatalogHandler) GetSupplier(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_supplier"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de proveedor inválido", err)
		return
	}
	sup, err := h.catalogService.GetSupplier(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, "Proveedor no encontrado", err)
		return
	}
	respondOK(c, http.StatusOK, "Proveedor obtenido", sup)
}

func (h *CatalogHandler) UpdateSupplier(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "update_supplier"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de proveedor inválido", err)
		return
	}
	var req models.SupplierRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, logger, "Datos de entrada inválidos", err)
		return
	}
	sup, err := h.catalogService.UpdateSupplier(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, logger, "No se pudo actualizar el proveedor", err)
		return
	}
	respondOK(c, http.StatusOK, "Proveedor actualizado", sup)
}

func (h *CatalogHandler) DeleteSupplier(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "delete_supplier"))

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, logger, "ID de proveedor inválido", err)
		return
	}
	if err := h.catalogService.DeleteSupplier(c.Request.Context(), id); err != nil {
		respondError(c, logger, "No se pudo eliminar el proveedor", err)
		return
	}
	respondOK(c, http.StatusOK, "Proveedor desactivado", gin.H{"id": id})
}
