package repository

import (
	"context"

	"account-platform/backend/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when no
// row matches; errors are reserved for database failures.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByProvider looks a user up by its (oauth_provider, oauth_provider_id) pair.
	GetByProvider(ctx context.Context, provider, providerID string) (*domain.User, error)
	// ExistsByEmailOrUsername covers both uniqueness checks in a single query
	// so registration has one conflict window, not two.
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	// UpdateRefreshToken replaces the user's stored refresh token; any prior
	// token is invalidated by the overwrite.
	UpdateRefreshToken(ctx context.Context, id, token string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
}
