package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/restaurant-checkout/api/responses"
	pkgAuth "github.com/angelmondragon/restaurant-checkout/pkg/auth"
	"github.com/angelmondragon/restaurant-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

// StaffAuth validates a staff bearer token and seeds the request context with its claims.
func StaffAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseStaffToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			staffID := claims.StaffID.String()
			ctx := WithStaff(r.Context(), staffID, claims.Role)
			if logg != nil {
				ctx = logg.WithStaffID(ctx, staffID)
				ctx = logg.WithField(ctx, "staff_role", string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
