package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
)

// Enforcer decides whether a subject may perform an action on an object.
// *casbin.Enforcer satisfies it.
type Enforcer interface {
	Enforce(rvals ...any) (bool, error)
}

func (r *Router) middlewareAuthentication(verifier jwt.JWT) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.isPublic(req.Method, matchedRoutePath(req)) {
				next.ServeHTTP(w, req)
				return
			}

			scheme, token, ok := strings.Cut(strings.TrimSpace(req.Header.Get("Authorization")), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeJSON(w, errorResponse{Message: "Authentication required"}, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				writeJSON(w, errorResponse{Message: "Invalid or expired token"}, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, req.WithContext(jwt.SetAuth(req.Context(), claims)))
		})
	}
}

// Authorize allows the request only when enforcer grants the authenticated
// email access to the matched route pattern with the request method.
func Authorize(enforcer Enforcer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := jwt.GetAuth(r.Context())
			if claims == nil {
				writeJSON(w, errorResponse{Message: "Authentication required"}, http.StatusUnauthorized)
				return
			}

			allowed, err := enforcer.Enforce(claims.UserEmail, matchedRoutePath(r), r.Method)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to enforce policy", "email", claims.UserEmail, "error", err)
				writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
				return
			}
			if !allowed {
				writeJSON(w, errorResponse{Message: "Access denied"}, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
