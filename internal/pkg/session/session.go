package session

import (
	"context"

	"github.com/staffma/staffma-backend/internal/domain/user"
)

// Session is the authenticated caller of a request.
type Session struct {
	UserID    string
	CompanyID string
	Role      user.Role
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session set by the auth middleware.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
