package tenant

import (
	"log/slog"
	"net/http"

	"github.com/skycms/skycms/internal/logfields"
)

// OriginHeader carries the original hostname when requests arrive
// through a reverse proxy or CDN edge.
const OriginHeader = "x-origin-hostname"

// Middleware resolves the request's tenant and stores it in the request
// context. The x-origin-hostname header takes precedence over the Host
// header. Requests for unknown hostnames receive 421 Misdirected Request
// unless a default tenant is configured.
func Middleware(registry *Registry, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Header.Get(OriginHeader)
			if host == "" {
				host = r.Host
			}

			t, err := registry.Resolve(host)
			if err != nil {
				logger.Warn("request for unknown tenant hostname",
					slog.String("host", host),
					logfields.Path(r.URL.Path))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusMisdirectedRequest)
				w.Write([]byte(`{"error":"unknown tenant hostname"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}
