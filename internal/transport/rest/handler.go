// Package rest provides HTTP handlers for product-related operations.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/abgdnv/catalog/internal/domain"
	perrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/service"
	"github.com/abgdnv/catalog/internal/validation"
	"github.com/abgdnv/catalog/pkg/web"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

type Handler struct {
	service   service.ProductService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewHandler creates a new instance of the product API with the provided service.
func NewHandler(service service.ProductService, validator *validation.Validator, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		validator: validator,
		logger:    logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the catalog.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Put("/", h.Update)
			r.Delete("/", h.DeleteByID)
		})
	})

	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadyCheck)
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	input, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	h.logger.DebugContext(ctx, "Received request to create product", "fields", len(input))

	product, err := h.validator.ValidateCreate(input)
	if err != nil {
		h.respondValidation(w, r, err)
		return
	}

	created, err := h.service.Create(ctx, product)
	if err != nil {
		if errors.Is(err, perrors.ErrProductConflict) {
			h.logger.WarnContext(ctx, "Product already exists", "ID", product.ID)
			web.RespondError(w, h.logger, http.StatusConflict, "Conflict", fmt.Sprintf("Product with ID %s already exists", product.ID))
			return
		}
		h.logger.ErrorContext(ctx, "Error creating product", "ID", product.ID, "error", err)
		web.RespondInternalError(w, h.logger)
		return
	}
	h.logger.InfoContext(ctx, "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondData(w, h.logger, http.StatusCreated, "Product created successfully", created)
}

// FindAll retrieves a list of all products.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.DebugContext(ctx, "Received request to find all products")
	list, err := h.service.FindAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error retrieving product list", "error", err)
		web.RespondInternalError(w, h.logger)
		return
	}
	h.logger.DebugContext(ctx, "Successfully retrieved product list", "count", len(list))
	web.RespondData(w, h.logger, http.StatusOK, "Retrieved all products successfully", productList{Products: list})
}

// FindByID retrieves a product by its ID. Ids that are not UUIDs are simply not found.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	h.logger.DebugContext(ctx, "Received request to find product by ID", "ID", id)

	found, err := h.service.FindByID(ctx, id)
	if err != nil {
		h.respondLookupError(w, r, id, err)
		return
	}
	web.RespondData(w, h.logger, http.StatusOK, "Product retrieved successfully", found)
}

// Update applies a partial update to a product.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		h.logger.WarnContext(ctx, "Invalid product ID format", "ID", chi.URLParam(r, "id"))
		return
	}
	input, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	h.logger.DebugContext(ctx, "Received request to update product", "ID", id, "fields", len(input))

	patch, err := h.validator.ValidateUpdate(id, input)
	if err != nil {
		h.respondValidation(w, r, err)
		return
	}

	updated, err := h.service.Update(ctx, id, patch)
	if err != nil {
		h.respondLookupError(w, r, id.String(), err)
		return
	}
	h.logger.InfoContext(ctx, "Product updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondData(w, h.logger, http.StatusOK, "Product updated successfully", updated)
}

// DeleteByID deletes a product by its ID.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	h.logger.DebugContext(ctx, "Received request to delete product", "ID", id)

	if err := h.service.DeleteByID(ctx, id); err != nil {
		h.respondLookupError(w, r, id, err)
		return
	}
	h.logger.InfoContext(ctx, "Product deleted successfully", "ID", id)
	web.RespondData(w, h.logger, http.StatusOK, "Product deleted successfully", nil)
}

// HealthCheck is a simple liveness endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	web.RespondData(w, h.logger, http.StatusOK, "OK", nil)
}

// ReadyCheck reports readiness together with the number of stored products.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	web.RespondData(w, h.logger, http.StatusOK, "Ready", readiness{Products: h.service.Count(r.Context())})
}

type productList struct {
	Products []domain.Product `json:"products"`
}

type readiness struct {
	Products int `json:"products"`
}

var errTrailingData = errors.New("unexpected data after JSON object")

// decodeBody reads exactly one JSON object, keeping numbers as json.Number so integral checks stay exact.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var input map[string]any
	err := dec.Decode(&input)
	if err == nil && !errors.Is(dec.Decode(&struct{}{}), io.EOF) {
		err = errTrailingData
	}
	if err != nil || input == nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, web.MsgValidationFailed, web.ErrInvalidBody)
		return nil, false
	}
	return input, true
}

func (h *Handler) respondValidation(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", verr.Fields)
		web.RespondValidationError(w, h.logger, web.MsgValidationFailed, verr.Error(), verr.Fields)
		return
	}
	h.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondInternalError(w, h.logger)
}

func (h *Handler) respondLookupError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, perrors.ErrProductNotFound) {
		h.logger.WarnContext(r.Context(), "Product not found", "ID", id)
		web.RespondError(w, h.logger, http.StatusNotFound, "Product not found", fmt.Sprintf("No product found with ID %s", id))
		return
	}
	h.logger.ErrorContext(r.Context(), "Error accessing product", "ID", id, "error", err)
	web.RespondInternalError(w, h.logger)
}
