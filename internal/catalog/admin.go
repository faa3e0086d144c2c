package catalog

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type NewProduct struct {
	Title        string               `json:"title"`
	Slug         string               `json:"slug"`
	Description  string               `json:"description"`
	Price        decimal.Decimal      `json:"price"`
	Images       []string             `json:"images"`
	Designer     string               `json:"designer"`
	Era          string               `json:"era"`
	Condition    string               `json:"condition"`
	Materials    string               `json:"materials"`
	Measurements string               `json:"measurements"`
	Category     string               `json:"category"`
	Status       domain.ProductStatus `json:"status"`
	Featured     bool                 `json:"featured"`
}

func (n *NewProduct) Validate() error {
	var v domain.ValidationError
	for field, value := range map[string]string{
		"title":     n.Title,
		"designer":  n.Designer,
		"era":       n.Era,
		"condition": n.Condition,
	} {
		if strings.TrimSpace(value) == "" {
			v.Add(field)
		}
	}
	if !slugPattern.MatchString(n.Slug) {
		v.Add("slug")
	}
	if !validPrice(n.Price) {
		v.Add("price")
	}
	if n.Status != "" && !n.Status.Valid() {
		v.Add("status")
	}
	sort.Strings(v.Fields)
	return v.Err()
}

// validPrice accepts positive amounts in whole cents.
func validPrice(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}

func (n *NewProduct) product() *domain.Product {
	status := n.Status
	if status == "" {
		status = domain.ProductAvailable
	}
	images := domain.StringList(n.Images)
	if images == nil {
		images = domain.StringList{}
	}
	return &domain.Product{
		Title:        strings.TrimSpace(n.Title),
		Slug:         n.Slug,
		Description:  n.Description,
		Price:        n.Price,
		Images:       images,
		Designer:     strings.TrimSpace(n.Designer),
		Era:          strings.TrimSpace(n.Era),
		Condition:    strings.TrimSpace(n.Condition),
		Materials:    n.Materials,
		Measurements: n.Measurements,
		Category:     n.Category,
		Status:       status,
		Featured:     n.Featured,
	}
}

// ProductUpdate holds the fields an admin may change. Nil fields are left
// untouched.
type ProductUpdate struct {
	Title        *string               `json:"title"`
	Slug         *string               `json:"slug"`
	Description  *string               `json:"description"`
	Price        *decimal.Decimal      `json:"price"`
	Images       *[]string             `json:"images"`
	Designer     *string               `json:"designer"`
	Era          *string               `json:"era"`
	Condition    *string               `json:"condition"`
	Materials    *string               `json:"materials"`
	Measurements *string               `json:"measurements"`
	Category     *string               `json:"category"`
	Status       *domain.ProductStatus `json:"status"`
	Featured     *bool                 `json:"featured"`
}

func (u *ProductUpdate) Validate() error {
	var v domain.ValidationError
	required := map[string]*string{
		"title":     u.Title,
		"designer":  u.Designer,
		"era":       u.Era,
		"condition": u.Condition,
	}
	for field, value := range required {
		if value != nil && strings.TrimSpace(*value) == "" {
			v.Add(field)
		}
	}
	if u.Slug != nil && !slugPattern.MatchString(*u.Slug) {
		v.Add("slug")
	}
	if u.Price != nil && !validPrice(*u.Price) {
		v.Add("price")
	}
	if u.Status != nil && !u.Status.Valid() {
		v.Add("status")
	}
	sort.Strings(v.Fields)
	return v.Err()
}

// Apply copies the set fields onto p.
func (u *ProductUpdate) Apply(p *domain.Product) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&p.Title, u.Title)
	setString(&p.Slug, u.Slug)
	setString(&p.Designer, u.Designer)
	setString(&p.Era, u.Era)
	setString(&p.Condition, u.Condition)
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Materials != nil {
		p.Materials = *u.Materials
	}
	if u.Measurements != nil {
		p.Measurements = *u.Measurements
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Images != nil {
		p.Images = domain.StringList(*u.Images)
		if p.Images == nil {
			p.Images = domain.StringList{}
		}
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Featured != nil {
		p.Featured = *u.Featured
	}
}

// AdminService is the product CRUD surface behind the admin role gate.
type AdminService struct {
	*Service
}

func NewAdminService(s *Service) *AdminService {
	return &AdminService{Service: s}
}

// List lists every status unless the filter asks for one.
func (a *AdminService) List(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	if filter.Status == "" {
		filter.Status = repository.StatusAll
	}
	return a.Service.List(ctx, filter)
}

func (a *AdminService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return a.store.GetProductByID(ctx, id)
}

func (a *AdminService) Create(ctx context.Context, n *NewProduct) (*domain.Product, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	p := n.product()
	if err := a.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"product_id": p.ID, "slug": p.Slug}).Info("product created")
	return p, nil
}

func (a *AdminService) Update(ctx context.Context, id uuid.UUID, u *ProductUpdate) (*domain.Product, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	p, err := a.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlug := p.Slug

	u.Apply(p)
	if err := a.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	a.invalidate(ctx, oldSlug, p.Slug)
	a.log.WithField("product_id", p.ID).Info("product updated")
	return p, nil
}

func (a *AdminService) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := a.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteProduct(ctx, id); err != nil {
		return err
	}

	a.invalidate(ctx, p.Slug)
	a.log.WithField("product_id", id).Info("product deleted")
	return nil
}
