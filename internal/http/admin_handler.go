package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cicadacove/storefront/internal/catalog"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ProductAdmin interface {
	List(ctx context.Context, filter repository.ProductFilter) (*catalog.ProductPage, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Create(ctx context.Context, n *catalog.NewProduct) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, u *catalog.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AdminHandler struct {
	admin   ProductAdmin
	timeout time.Duration
}

func NewAdminHandler(admin ProductAdmin, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		admin:   admin,
		timeout: timeout,
	}
}

// GET /api/admin/products
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		respondValidation(w, err)
		return
	}

	page, err := h.admin.List(ctx, filter)
	if err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// POST /api/admin/products
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req catalog.NewProduct
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondBadBody(w, err)
		return
	}

	p, err := h.admin.Create(ctx, &req)
	if err != nil {
		respondAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// GET /api/admin/products/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := adminProductID(w, r)
	if !ok {
		return
	}

	p, err := h.admin.Get(ctx, id)
	if err != nil {
		respondAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// PATCH /api/admin/products/{id}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := adminProductID(w, r)
	if !ok {
		return
	}

	// id and created_at are not part of ProductUpdate, so strict decoding rejects them
	var req catalog.ProductUpdate
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondBadBody(w, err)
		return
	}

	p, err := h.admin.Update(ctx, id, &req)
	if err != nil {
		respondAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DELETE /api/admin/products/{id}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := adminProductID(w, r)
	if !ok {
		return
	}

	if err := h.admin.Delete(ctx, id); err != nil {
		respondAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Product deleted"})
}

func adminProductID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func respondAdminError(w http.ResponseWriter, err error) {
	switch {
	case respondValidation(w, err):
	case errors.Is(err, repository.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, repository.ErrDuplicateSlug):
		respondError(w, http.StatusConflict, "duplicate_slug", err.Error())
	default:
		respondInternal(w, err)
	}
}
