// Package service provides profile and administration operations over the
// user store. Session concerns (login, tokens) live in internal/auth/service.
package service

import (
	"context"
	"errors"
	"time"

	"account-platform/backend/internal/user/domain"
)

// ErrNotFound is returned when the target user does not exist.
var ErrNotFound = errors.New("user not found")

// Repo is the slice of the user repository this service needs.
type Repo interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// UserService serves profile reads and edits plus the admin operations.
type UserService struct {
	repo Repo
}

// NewUserService returns a UserService over repo.
func NewUserService(repo Repo) *UserService {
	return &UserService{repo: repo}
}

// Get returns the user for id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// GetByUsername returns the user with the given username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// UpdateProfile sets the user's display fields. Empty values clear the field.
func (s *UserService) UpdateProfile(ctx context.Context, id, fullName, avatarURL string) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	u.FullName = fullName
	u.AvatarURL = avatarURL
	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetActive enables or disables the account. A disabled account cannot log in
// or refresh; access tokens already issued keep working until they expire.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateRole assigns role to the user. The role must be one of the known
// roles; callers gate who may do this via rbac.
func (s *UserService) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	return u, nil
}

// ListUsers returns a page of users in creation order. limit is clamped to
// [1, maxPageSize]; a non-positive limit uses the default page size.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
