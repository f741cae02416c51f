package middleware

import (
	"net/http"
	"strings"

	"paypal-bridge/internal/admin"
	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/utils"

	"go.uber.org/zap"
)

// RequireAdmin rejects requests without a valid admin bearer token and puts
// the admin identity into the request context.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenStr == "" {
				utils.WriteJSONError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := admin.ParseJWT(secret, tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Warn("Rejected admin token", zap.Error(err))
				utils.WriteJSONError(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Role != utils.RoleAdmin {
				utils.WriteJSONError(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := utils.SetAdminContext(r.Context(), claims.Email, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
