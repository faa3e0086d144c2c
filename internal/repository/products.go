package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const productColumns = `id, title, slug, description, price, images, designer, era, condition,
	materials, measurements, category, status, featured, created_at, updated_at`

const (
	DefaultLimit = 12
	MaxLimit     = 100
	StatusAll    = "all"
)

var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"price":      "price",
	"title":      "title",
	"designer":   "designer",
}

// ProductFilter narrows catalog listings. Zero values mean "no filter", except
// Status which defaults to available products; StatusAll lists every status.
type ProductFilter struct {
	Designer  string
	Era       string
	Condition string
	Category  string
	Search    string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	Featured  *bool
	Status    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (f *ProductFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status == "" {
		f.Status = string(domain.ProductAvailable)
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		f.SortBy = "created_at"
	}
	if strings.ToLower(f.SortOrder) != "asc" {
		f.SortOrder = "desc"
	} else {
		f.SortOrder = "asc"
	}
}

func (f *ProductFilter) where() (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, arg ...interface{}) {
		clauses = append(clauses, clause)
		args = append(args, arg...)
	}

	if f.Status != StatusAll {
		add("status = ?", f.Status)
	}
	if f.Designer != "" {
		add("designer = ?", f.Designer)
	}
	if f.Era != "" {
		add("era = ?", f.Era)
	}
	if f.Condition != "" {
		add("condition = ?", f.Condition)
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.MinPrice != nil {
		add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= ?", *f.MaxPrice)
	}
	if f.Featured != nil {
		add("featured = ?", *f.Featured)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		add("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	filter.Normalize()
	where, args := filter.where()

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM products" + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := r.db.Rebind(fmt.Sprintf(
		"SELECT %s FROM products%s ORDER BY %s %s, id LIMIT ? OFFSET ?",
		productColumns, where, sortColumns[filter.SortBy], filter.SortOrder))
	args = append(args, filter.Limit, filter.Offset)

	products := []*domain.Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}

	return products, total, nil
}

func (r *Repository) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := r.db.Rebind("SELECT " + productColumns + " FROM products WHERE slug = ?")

	var p domain.Product
	if err := r.db.GetContext(ctx, &p, query, slug); err != nil {
		return nil, fmt.Errorf("get product by slug: %w", notFound(err, ErrProductNotFound))
	}
	return &p, nil
}

func (r *Repository) GetProductByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := r.db.Rebind("SELECT " + productColumns + " FROM products WHERE id = ?")

	var p domain.Product
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("get product by id: %w", notFound(err, ErrProductNotFound))
	}
	return &p, nil
}

// GetProductsByIDs returns whichever of the requested products exist, in any order.
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	products := []*domain.Product{}
	if len(ids) == 0 {
		return products, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build products query: %w", err)
	}

	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return products, nil
}

// RelatedProducts returns available products sharing the designer or era of p.
func (r *Repository) RelatedProducts(ctx context.Context, p *domain.Product, limit int) ([]*domain.Product, error) {
	if limit <= 0 {
		limit = 4
	}
	query := r.db.Rebind("SELECT " + productColumns + ` FROM products
		WHERE id <> ? AND status = ? AND (designer = ? OR era = ?)
		ORDER BY created_at DESC, id LIMIT ?`)

	products := []*domain.Product{}
	err := r.db.SelectContext(ctx, &products, query, p.ID, domain.ProductAvailable, p.Designer, p.Era, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query related products: %w", err)
	}
	return products, nil
}

func (r *Repository) AllSlugs(ctx context.Context) ([]string, error) {
	slugs := []string{}
	if err := r.db.SelectContext(ctx, &slugs, "SELECT slug FROM products ORDER BY slug"); err != nil {
		return nil, fmt.Errorf("failed to query slugs: %w", err)
	}
	return slugs, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO products (` + productColumns + `)
		VALUES (:id, :title, :slug, :description, :price, :images, :designer, :era, :condition,
		:materials, :measurements, :category, :status, :featured, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// UpdateProduct writes every mutable column of p.
func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `UPDATE products SET title = :title, slug = :slug, description = :description,
		price = :price, images = :images, designer = :designer, era = :era, condition = :condition,
		materials = :materials, measurements = :measurements, category = :category,
		status = :status, featured = :featured, updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM products WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}
