package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cicadacove/storefront/internal/catalog"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxRelated = 12

type Catalog interface {
	List(ctx context.Context, filter repository.ProductFilter) (*catalog.ProductPage, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	Related(ctx context.Context, p *domain.Product, limit int) ([]*domain.Product, error)
	Slugs(ctx context.Context) ([]string, error)
}

type CatalogHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewCatalogHandler(c Catalog, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: c,
		timeout: timeout,
	}
}

type ProductResponse struct {
	*domain.Product
	Related []*domain.Product `json:"related,omitempty"`
}

// GET /api/products
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		respondValidation(w, err)
		return
	}

	page, err := h.catalog.List(ctx, filter)
	if err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GET /api/products/{slug}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetBySlug(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, repository.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
		return
	}
	if err != nil {
		respondInternal(w, err)
		return
	}

	resp := ProductResponse{Product: p}
	if n, _ := strconv.Atoi(r.URL.Query().Get("related")); n > 0 {
		if n > maxRelated {
			n = maxRelated
		}
		if resp.Related, err = h.catalog.Related(ctx, p, n); err != nil {
			respondInternal(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type SitemapResponse struct {
	Slugs []string `json:"slugs"`
}

// GET /api/sitemap
func (h *CatalogHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	slugs, err := h.catalog.Slugs(ctx)
	if err != nil {
		respondInternal(w, err)
		return
	}
	if slugs == nil {
		slugs = []string{}
	}
	respondJSON(w, http.StatusOK, SitemapResponse{Slugs: slugs})
}

// parseProductFilter maps catalog query parameters onto a filter. Limits and
// sort keys are normalised later; only malformed values are rejected here.
func parseProductFilter(q url.Values) (repository.ProductFilter, error) {
	var v domain.ValidationError
	f := repository.ProductFilter{
		Designer:  q.Get("designer"),
		Era:       q.Get("era"),
		Condition: q.Get("condition"),
		Category:  q.Get("category"),
		Search:    strings.TrimSpace(q.Get("search")),
		Status:    q.Get("status"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	price := func(key string) *decimal.Decimal {
		raw := q.Get(key)
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			v.Add(key)
			return nil
		}
		return &d
	}
	f.MinPrice = price("minPrice")
	f.MaxPrice = price("maxPrice")

	integer := func(key string) int {
		raw := q.Get(key)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add(key)
		}
		return n
	}
	f.Limit = integer("limit")
	f.Offset = integer("offset")

	if raw := q.Get("featured"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			v.Add("featured")
		} else {
			f.Featured = &b
		}
	}
	if f.Status != "" && f.Status != repository.StatusAll && !domain.ProductStatus(f.Status).Valid() {
		v.Add("status")
	}

	return f, v.Err()
}
