package mw

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// HumaAuth returns a Huma middleware that handles authentication based on
// operation security. Operations without a bearer security requirement pass
// through untouched.
func HumaAuth(api huma.API, jwtSecret []byte) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := VerifyToken(jwtSecret, token)
		if err != nil {
			slog.Debug("auth validation failed", "error", err)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		next(huma.WithContext(ctx, WithUserClaims(ctx.Context(), claims)))
	}
}

// operationRequiresAuth checks if an operation declares bearer security.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, sec := range op.Security {
		if _, ok := sec[SecurityScheme]; ok {
			return true
		}
	}
	return false
}
