package transport

import (
	"errors"
	"net/http"
	"strconv"

	"catalog-api/internal/apperr"
	"catalog-api/internal/domain"
	"catalog-api/internal/middleware"
	"catalog-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProductRequest represents the create payload
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Price       float64  `json:"price" validate:"required,gt=0,lte=999999.99"`
	Category    string   `json:"category" validate:"required"`
	Stock       int      `json:"stock" validate:"gte=0"`
	ImageURL    string   `json:"imageUrl" validate:"omitempty,url"`
	Tags        []string `json:"tags"`
	IsActive    *bool    `json:"isActive"`
}

// UpdateProductRequest represents a partial update payload; absent fields
// stay untouched.
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	Description *string  `json:"description" validate:"omitempty,min=1"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0,lte=999999.99"`
	Category    *string  `json:"category" validate:"omitempty,min=1"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	ImageURL    *string  `json:"imageUrl" validate:"omitempty,url"`
	Tags        []string `json:"tags"`
	IsActive    *bool    `json:"isActive"`
}

// AdjustStockRequest represents the stock adjustment payload
type AdjustStockRequest struct {
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Operation string `json:"operation" validate:"required,oneof=add subtract"`
}

// ProductListResponse wraps a search result page
type ProductListResponse struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/stats", h.Statistics)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetByID)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Patch("/stock", h.AdjustStock)
		})
	})
}

// List handles filtered, sorted, paginated product queries
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, apperr.CodeValidation, err.Error())
		return
	}

	products, total, err := h.productService.Search(r.Context(), params)
	if err != nil {
		h.respondError(w, err, "Product search failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     params.Page,
		Limit:    params.Limit,
	})
}

// GetByID handles fetching a single product
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "Product lookup failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create handles product creation
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Create product validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return
	}

	product, err := h.productService.Create(r.Context(), service.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Tags:        req.Tags,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.respondError(w, err, "Product creation failed")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles partial product updates
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Update product validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return
	}

	product, err := h.productService.Update(r.Context(), id, service.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Tags:        req.Tags,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.respondError(w, err, "Product update failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete handles product removal
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.respondError(w, err, "Product deletion failed")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock handles stock additions and subtractions
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req AdjustStockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Adjust stock validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return
	}

	product, err := h.productService.AdjustStock(r.Context(), id, req.Quantity, service.StockOperation(req.Operation))
	if err != nil {
		h.respondError(w, err, "Stock adjustment failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Statistics handles the collection-level aggregate report
func (h *ProductHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.productService.Statistics(r.Context())
	if err != nil {
		h.respondError(w, err, "Statistics computation failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// parseID extracts and parses the {id} route parameter, responding with a
// 400 on malformed input.
func (h *ProductHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid product ID")
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps the application error taxonomy to HTTP status codes.
func (h *ProductHandler) respondError(w http.ResponseWriter, err error, logMsg string) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.Error(logMsg, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeDomain:
		status = http.StatusUnprocessableEntity
	case apperr.CodeStorage:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(logMsg, zap.Error(err))
	} else {
		h.logger.Debug(logMsg, zap.Error(err))
	}

	middleware.RespondWithErrorDetails(w, status, appErr.Code, appErr.Message, appErr.Details)
}

// validSortFields is the allowlist of sort keys accepted by the list endpoint.
var validSortFields = map[string]bool{
	service.SortByName:      true,
	service.SortByPrice:     true,
	service.SortByCreatedAt: true,
}

// parseSearchParams parses the list/search query string, applying the
// documented defaults: page 1, limit 10 (max 100), sortBy createdAt,
// sortOrder desc.
func parseSearchParams(r *http.Request) (service.SearchParams, error) {
	q := r.URL.Query()

	params := service.SearchParams{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Page:     service.DefaultPage,
		Limit:    service.DefaultLimit,
	}

	if v := q.Get("sortBy"); v != "" {
		if !validSortFields[v] {
			return params, errors.New("sortBy must be one of name, price or createdAt")
		}
		params.SortBy = v
	}

	if v := q.Get("sortOrder"); v != "" {
		order := service.SortOrder(v)
		if order != service.SortOrderAsc && order != service.SortOrderDesc {
			return params, errors.New(`sortOrder must be "asc" or "desc"`)
		}
		params.Order = order
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, errors.New("page must be a positive integer")
		}
		params.Page = page
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, errors.New("limit must be a positive integer")
		}
		if limit > service.MaxLimit {
			limit = service.MaxLimit
		}
		params.Limit = limit
	}

	if v := q.Get("isActive"); v != "" {
		isActive, err := strconv.ParseBool(v)
		if err != nil {
			return params, errors.New("isActive must be a boolean")
		}
		params.IsActive = &isActive
	}

	return params, nil
}
