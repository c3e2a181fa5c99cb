package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"forest-auth/internal/model"
	"forest-auth/internal/signer"
)

type credentialVerifier interface {
	Verify(tokenString string) (*signer.Claims, error)
}

type contextKey string

const principalContextKey contextKey = "principal"

// AuthMiddleware resolves the bearer credential on inbound requests. The
// base filter is permissive: requests without a usable access token continue
// anonymously and downstream authorization decides what anonymous callers
// may do. RequireAuth and RequireRoles are the guards for protected routes.
type AuthMiddleware struct {
	verifier credentialVerifier
	now      func() time.Time
}

func NewAuthMiddleware(verifier credentialVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, now: time.Now}
}

// Authenticate attaches a principal when a valid, unexpired access token is
// presented. A principal already attached to the request is never replaced.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			// Invalid credentials pass through unauthenticated rather than
			// failing the request here.
			next.ServeHTTP(w, r)
			return
		}

		if claims.Expired(m.now()) || claims.Refresh {
			next.ServeHTTP(w, r)
			return
		}

		// The role honored is the token's embedded claim; the live user row
		// is not consulted on the request path.
		principal := model.Principal{Username: claims.Subject, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeAuthError(w, "UNAUTHORIZED", "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowedRoles {
		roleSet[strings.ToUpper(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, "UNAUTHORIZED", "authentication required")
				return
			}

			if _, allowed := roleSet[strings.ToUpper(principal.Role)]; !allowed {
				writeAuthError(w, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	return principal, ok
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func writeAuthError(w http.ResponseWriter, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	if code == "FORBIDDEN" {
		w.WriteHeader(http.StatusForbidden)
	} else {
		w.WriteHeader(http.StatusUnauthorized)
	}

	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
