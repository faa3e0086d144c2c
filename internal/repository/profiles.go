package repository

import (
	"context"
	"fmt"

	"github.com/cicadacove/storefront/internal/domain"
)

func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := r.db.Rebind("SELECT id, email, role FROM profiles WHERE id = ?")

	var p domain.Profile
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		return nil, fmt.Errorf("get profile: %w", notFound(err, ErrProfileNotFound))
	}
	return &p, nil
}

func (r *Repository) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	query := r.db.Rebind(`INSERT INTO profiles (id, email, role) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, role = excluded.role`)
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Email, p.Role); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
