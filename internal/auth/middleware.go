package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-checkin/internal/models"
)

type contextKey string

const operatorKey contextKey = "operator"

// Middleware verifies the bearer token against the OIDC issuer and puts the
// resolved operator (subject + role claims) into the request context.
func Middleware(issuer string) func(http.Handler) http.Handler {
	if issuer == "" {
		panic("OIDC issuer not configured")
	}

	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		panic(fmt.Sprintf("Failed to create OIDC provider: %v", err))
	}

	// SkipClientIDCheck: scanner devices authenticate through several
	// frontends sharing the realm.
	verifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			idToken, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			operator, err := operatorFromClaims(idToken)
			if err != nil {
				http.Error(w, "failed to parse claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func operatorFromClaims(idToken *oidc.IDToken) (models.Operator, error) {
	var claims struct {
		Sub         string `json:"sub"`
		RealmAccess struct {
			Roles []string `json:"roles"`
		} `json:"realm_access"`
		EventRoles map[string][]string `json:"event_roles"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return models.Operator{}, err
	}
	return models.Operator{
		ID:         claims.Sub,
		Roles:      claims.RealmAccess.Roles,
		EventRoles: claims.EventRoles,
	}, nil
}

// OperatorFromContext returns the operator stored by the middleware.
func OperatorFromContext(ctx context.Context) (models.Operator, bool) {
	op, ok := ctx.Value(operatorKey).(models.Operator)
	return op, ok
}

// WithOperator is used by tests and internal callers to seed a context.
func WithOperator(ctx context.Context, operator models.Operator) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}
