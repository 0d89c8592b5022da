package middleware

import (
	"fmt"
	"net/http"

	"github.com/staffma/staffma-backend/internal/domain/auth"
	"github.com/staffma/staffma-backend/internal/domain/user"
	"github.com/staffma/staffma-backend/internal/handler/http/response"
	"github.com/staffma/staffma-backend/internal/pkg/logger"
	"github.com/staffma/staffma-backend/internal/pkg/session"
)

// Authorizer decides whether a role holds a capability within a tenant.
type Authorizer interface {
	Authorize(role user.Role, tenantID string, capability user.Capability) (allowed bool, enforced bool, err error)
}

// RequireCapability checks the session role against capability. When the
// authorizer is in shadow mode a denial is logged and the request proceeds.
func RequireCapability(authorizer Authorizer, capability user.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok {
				response.HandleError(w, auth.ErrMissingSession)
				return
			}
			if sess.CompanyID == "" {
				response.HandleError(w, user.ErrCompanyIDRequired)
				return
			}

			allowed, enforced, err := authorizer.Authorize(sess.Role, sess.CompanyID, capability)
			if err != nil {
				logger.From(r.Context()).Error("authorization check failed", "capability", capability, "error", err)
				if enforced {
					response.InternalServerError(w, "An unexpected error occurred")
					return
				}
			}

			if !allowed {
				if enforced {
					response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s', but user role is '%s'", capability, sess.Role))
					return
				}
				logger.From(r.Context()).Warn("authorization denied in shadow mode",
					"capability", capability,
					"company_id", sess.CompanyID)
			}

			next.ServeHTTP(w, r)
		})
	}
}
