package common

import "context"

type ctxKey string

const (
	userIDKey ctxKey = "session/user-id"
	anonIDKey ctxKey = "session/anon-id"
	roleKey   ctxKey = "session/role"
)

// RoleAdmin marks sessions allowed to use the admin surface.
const RoleAdmin = "admin"

// WithUserID stores the authenticated user identifier on the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier if present.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

// IsAuthenticated reports whether the request carries a verified session.
// Price redaction for guest sessions keys off this flag.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := UserID(ctx)
	return ok
}

// WithAnonID stores the guest cart identifier on the context.
func WithAnonID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, anonIDKey, id)
}

// AnonID extracts the guest cart identifier if present.
func AnonID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(anonIDKey).(string)
	return v, ok && v != ""
}

// WithRole stores the session role on the context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// Role extracts the session role if present.
func Role(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey).(string)
	return v, ok && v != ""
}

// IsAdmin reports whether the session carries the admin role.
func IsAdmin(ctx context.Context) bool {
	role, ok := Role(ctx)
	return ok && role == RoleAdmin
}
