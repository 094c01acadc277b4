package chi

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/logger"
)

const adminTokenHeader = "X-Admin-Token"

// AdminAuthMiddleware returns a middleware that validates the X-Admin-Token header.
// An empty configured token rejects every request.
func AdminAuthMiddleware(token string) func(http.Handler) http.Handler {
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(adminTokenHeader)
			if len(want) == 0 || got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				provided := "missing"
				if got != "" {
					provided = "***"
				}
				logger.FromContext(r.Context()).Warn("unauthorized admin access attempt",
					zap.String("provided_token", provided),
					zap.String("path", r.URL.Path),
				)
				writeError(w, r, http.StatusForbidden, domain.CodeForbidden, "valid admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
