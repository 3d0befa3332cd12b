package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fluxmarket/availability-api/internal/models"
)

// ProviderRepository reads provider accounts for authentication.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository constructs a provider repository.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// FindByEmail fetches a provider by email.
func (r *ProviderRepository) FindByEmail(ctx context.Context, email string) (*models.Provider, error) {
	const query = `SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
FROM providers WHERE email = $1`
	var provider models.Provider
	if err := r.db.GetContext(ctx, &provider, query, email); err != nil {
		return nil, err
	}
	return &provider, nil
}

// FindByID fetches a provider by ID.
func (r *ProviderRepository) FindByID(ctx context.Context, id string) (*models.Provider, error) {
	const query = `SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
FROM providers WHERE id = $1`
	var provider models.Provider
	if err := r.db.GetContext(ctx, &provider, query, id); err != nil {
		return nil, err
	}
	return &provider, nil
}

// UpdateLastLogin stamps the provider's last login time.
func (r *ProviderRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE providers SET last_login = $1, updated_at = $1 WHERE id = $2", ts, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
