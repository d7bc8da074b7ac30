package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authkernel/internal/http/middlewares"
	"github.com/dropDatabas3/authkernel/internal/metrics"
)

// NewRouter arma el router con la cadena de middlewares estándar.
// MetricsHandler (opcional) cuelga /metrics.
func NewRouter(d *Deps, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	// no-store en cada endpoint que puede devolver material sensible
	// (RFC 6749 §5.1, RFC 6750 §5.3).
	noStore := middlewares.WithNoStore()

	r.Method(http.MethodGet, "/oauth2/authorize", http.HandlerFunc(d.handleAuthorize))
	r.Method(http.MethodPost, "/oauth2/authorize", http.HandlerFunc(d.handleAuthorize))
	r.Method(http.MethodPost, "/oauth2/token", middlewares.ChainFunc(d.handleToken, noStore))
	r.Method(http.MethodPost, "/oauth2/introspect", middlewares.ChainFunc(d.handleIntrospect, noStore))
	r.Method(http.MethodPost, "/oauth2/revoke", middlewares.ChainFunc(d.handleRevoke, noStore))
	if d.RevokeAllowCallback {
		r.Method(http.MethodGet, "/oauth2/revoke", middlewares.ChainFunc(d.handleRevoke, noStore))
	}
	r.Method(http.MethodPost, "/oauth2/consent", http.HandlerFunc(d.handleConsent))

	r.Method(http.MethodGet, "/.well-known/openid-configuration", http.HandlerFunc(d.handleDiscovery))
	r.Method(http.MethodGet, "/.well-known/jwks.json", http.HandlerFunc(d.handleJWKS))

	r.Method(http.MethodGet, "/healthz", http.HandlerFunc(d.handleHealthz))
	r.Method(http.MethodGet, "/readyz", http.HandlerFunc(d.handleReadyz))
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return middlewares.Chain(r,
		middlewares.WithRecover(),
		middlewares.WithRequestID(),
		middlewares.WithSecurityHeaders(),
		middlewares.WithLogging(),
		metrics.WithHTTP,
	)
}
