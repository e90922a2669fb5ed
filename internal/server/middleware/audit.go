package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"proctor-integrity/backend/internal/audit"
)

// Audit records one audit log entry after each authenticated state-changing request, with action and
// resource derived from the matched chi route pattern. Reads and anonymous requests are not recorded.
// Recording is best-effort and never changes the response.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			if logger == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				return
			}
			userID, ok := GetUserID(r.Context())
			if !ok {
				return
			}
			pattern := routePattern(r)
			if pattern == "" {
				pattern = r.URL.Path
			}
			ar := audit.ParseRoute(r.Method, pattern)
			logger.LogEvent(r.Context(), userID, ar.Action, ar.Resource, "status="+strconv.Itoa(rec.status))
		})
	}
}

// routePattern returns the matched chi pattern, or "" outside a chi router or for unmatched paths.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
