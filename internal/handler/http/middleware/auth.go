package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/staffma/staffma-backend/internal/domain/auth"
	"github.com/staffma/staffma-backend/internal/domain/user"
	"github.com/staffma/staffma-backend/internal/handler/http/response"
	"github.com/staffma/staffma-backend/internal/pkg/logger"
	"github.com/staffma/staffma-backend/internal/pkg/session"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
)

// AuthRequired rejects requests without a verified access token. It expects
// jwtauth.Verifier earlier in the chain.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			claims, err := token.AsMap(r.Context())
			if err != nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}
			tokenType, ok := claims["type"].(string)
			if tokenType != "access" || !ok {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// SessionFromToken builds the request session from verified claims once, so
// handlers and services never read raw claims.
func SessionFromToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		// Users still onboarding have no company yet.
		companyID, _ := claims["company_id"].(string)
		if companyID != "" && !validator.IsValidUUID(companyID) {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		roleStr, _ := claims["role"].(string)
		sess := session.Session{
			UserID:    userID,
			CompanyID: companyID,
			Role:      user.ParseRole(roleStr),
		}

		ctx := session.WithSession(r.Context(), sess)
		ctx = logger.With(ctx, "user_id", sess.UserID, "role", sess.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
