package interceptors

import "context"

type contextKey struct{ name string }

var (
	usernameKey = contextKey{"username"}
	roleKey     = contextKey{"role"}
)

// WithIdentity returns a context carrying the caller's username and role.
// Handlers and rbac read these via GetUsername and GetRole.
func WithIdentity(ctx context.Context, username, role string) context.Context {
	ctx = context.WithValue(ctx, usernameKey, username)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

// GetUsername returns the username from context and true if set; otherwise "", false.
func GetUsername(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(usernameKey).(string)
	return v, ok
}

// GetRole returns the role from context and true if set; otherwise "", false.
func GetRole(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey).(string)
	return v, ok
}
