// Package catalog serves the storefront's product listings and the admin
// product surface.
package catalog

import (
	"context"
	"errors"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultRelated = 4

type ProductStore interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error)
	RelatedProducts(ctx context.Context, p *domain.Product, limit int) ([]*domain.Product, error)
	AllSlugs(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type ProductPage struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type Service struct {
	store ProductStore
	cache ProductCache
	log   logrus.FieldLogger
}

func NewService(store ProductStore, cache ProductCache, log logrus.FieldLogger) *Service {
	return &Service{
		store: store,
		cache: cache,
		log:   log.WithField("component", "catalog"),
	}
}

// List returns one page of products matching filter.
func (s *Service) List(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	filter.Normalize()
	products, total, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ProductPage{
		Products: products,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// GetBySlug reads through the product cache.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := s.cache.Get(ctx, slug)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.WithError(err).Warn("product cache get failed")
	}

	p, err = s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, p); err != nil {
		s.log.WithError(err).Warn("product cache set failed")
	}
	return p, nil
}

func (s *Service) GetProductByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.store.GetProductByID(ctx, id)
}

func (s *Service) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	return s.store.GetProductsByIDs(ctx, ids)
}

func (s *Service) Related(ctx context.Context, p *domain.Product, limit int) ([]*domain.Product, error) {
	if limit <= 0 {
		limit = DefaultRelated
	}
	return s.store.RelatedProducts(ctx, p, limit)
}

func (s *Service) Slugs(ctx context.Context) ([]string, error) {
	return s.store.AllSlugs(ctx)
}

func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	if err := s.cache.Delete(ctx, slugs...); err != nil {
		s.log.WithError(err).WithField("slugs", slugs).Warn("product cache invalidate failed")
	}
}
