// Package rbac gates operations on the caller's role. Roles form a total
// order (user < moderator < admin), so holding a role grants everything the
// lower roles may do.
package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"account-platform/backend/internal/server/interceptors"
	"account-platform/backend/internal/user/domain"
)

// UserGetter resolves the context identity to a user row. Used by Require to
// read the caller's current role rather than trusting the token's snapshot.
type UserGetter interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// HasRole reports whether u's role ranks at or above required. Unknown roles
// rank lowest, so they can satisfy only the user tier.
func HasRole(u *domain.User, required domain.Role) bool {
	return u != nil && u.HasRole(required)
}

// Require ensures the caller is authenticated and holds at least the required
// role. Returns the caller on success; returns a gRPC error on failure:
// Unauthenticated when no identity is present or it no longer resolves to an
// account, PermissionDenied when the account ranks below required. The two
// cases are never conflated.
func Require(ctx context.Context, getter UserGetter, required domain.Role) (*domain.User, error) {
	username, ok := interceptors.GetUsername(ctx)
	if !ok || username == "" {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	u, err := getter.GetByUsername(ctx, username)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to resolve caller")
	}
	if u == nil {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if !HasRole(u, required) {
		return nil, status.Error(codes.PermissionDenied, string(required)+" role required")
	}
	return u, nil
}
