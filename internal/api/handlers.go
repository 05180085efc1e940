package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/inventory-audit/internal/api/middleware"
	"github.com/example/inventory-audit/internal/domain"
	"github.com/example/inventory-audit/internal/domain/eventlog"
	"github.com/example/inventory-audit/internal/domain/product"
	"github.com/example/inventory-audit/internal/model"
	"go.uber.org/zap"
)

const (
	defaultPage         = 1
	defaultItemsPerPage = 10
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	products *product.Service
	logs     *eventlog.Recorder
	store    Pinger
	logger   *zap.Logger
}

func NewHandlers(products *product.Service, logs *eventlog.Recorder, store Pinger, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		products: products,
		logs:     logs,
		store:    store,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// Product Handlers

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	req, err := validateCreate(body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), req.Name, req.Quantity, req.Category)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"product": p})
}

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetAll(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	body, err := decodeObject(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := validateUpdate(body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), id, u)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": p,
	})
}

// DeleteProduct reports a missing product as 400, like a non-zero quantity
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.products.Delete(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		respondJSONError(w, "Product not found", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Product deleted successfully",
		"product": p,
	})
}

func (h *Handlers) FilterByCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("category") {
		respondJSONError(w, "Category query parameter is required", http.StatusBadRequest)
		return
	}

	products, err := h.products.FilterByCategory(r.Context(), q.Get("category"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) FilterByQuantity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	min, max := q.Get("minQuantity"), q.Get("maxQuantity")
	if min == "" || max == "" {
		respondJSONError(w, "Both minQuantity and maxQuantity are required", http.StatusBadRequest)
		return
	}

	products, err := h.products.FilterByQuantity(r.Context(), min, max)
	if errors.Is(err, product.ErrInvalidRange) {
		respondJSONError(w, "Quantity values must be valid numbers", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// PaginatedResponse is the GET /products/paginated body
type PaginatedResponse struct {
	Products      []model.Product `json:"products"`
	CurrentPage   int             `json:"currentPage"`
	ItemsPerPage  int             `json:"itemsPerPage"`
	TotalPages    int             `json:"totalPages"`
	TotalProducts int             `json:"totalProducts"`
}

func (h *Handlers) GetPaginatedProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, errPage := intParam(q.Get("page"), defaultPage)
	perPage, errPerPage := intParam(q.Get("itemsPerPage"), defaultItemsPerPage)
	if errPage != nil || errPerPage != nil {
		respondJSONError(w, "page and itemsPerPage must be positive integers", http.StatusBadRequest)
		return
	}

	result, err := h.products.Paginate(r.Context(), page, perPage)
	if errors.Is(err, product.ErrInvalidPagination) {
		respondJSONError(w, "page and itemsPerPage must be positive integers", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Products:      result.Items,
		CurrentPage:   result.CurrentPage,
		ItemsPerPage:  result.ItemsPerPage,
		TotalPages:    result.TotalPages,
		TotalProducts: result.TotalCount,
	})
}

// Health Handler

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("store ping failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func productID(r *http.Request) (int64, error) {
	raw := extractPathParam(r.URL.Path, "/products/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, invalid("Invalid product ID")
	}
	return id, nil
}

func intParam(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// statusFor maps the failure taxonomy onto HTTP status codes
func statusFor(err error) int {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoOp),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing text for err. Store and internal
// failures are never echoed.
func messageFor(err error) string {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return verr.msg
	case errors.Is(err, domain.ErrNoOp):
		return "No fields to update"
	case errors.Is(err, product.ErrDuplicateName):
		return "Product with this name already exists"
	case errors.Is(err, product.ErrQuantityNotZero):
		return "Product quantity must be 0 before it can be deleted"
	case errors.Is(err, product.ErrNegativeQuantity):
		return "Quantity must be greater than or equal to 0"
	case errors.Is(err, product.ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return err.Error()
	default:
		return "Server error"
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
	respondJSONError(w, messageFor(err), status)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
