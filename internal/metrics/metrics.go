// Package metrics registra y expone las métricas Prometheus del servidor:
// instrumentación HTTP genérica más contadores del protocolo (emisión,
// errores, revocaciones, introspecciones).
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Protocol metrics
	tokensIssuedTotal       *prometheus.CounterVec
	protocolErrorsTotal     *prometheus.CounterVec
	revocationsTotal        *prometheus.CounterVec
	introspectionsTotal     *prometheus.CounterVec
	authorizationsTotal     *prometheus.CounterVec
	clientAuthFailuresTotal *prometheus.CounterVec
)

// Config agrupa dependencias para exponer /metrics.
type Config struct {
	Registry prometheus.Registerer
	// Pool opcional: expone gauges del pool pgx.
	Pool func() *pgxpool.Pool
}

// Register inicializa las métricas y devuelve el handler para /metrics.
func Register(cfg Config) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_tokens_issued_total",
			Help: "Tokens emitidos por grant type",
		}, []string{"grant_type"})

		protocolErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_protocol_errors_total",
			Help: "Errores de protocolo por endpoint y código",
		}, []string{"endpoint", "code"})

		revocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_revocations_total",
			Help: "Revocaciones procesadas por hint",
		}, []string{"hint"})

		introspectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_introspections_total",
			Help: "Introspecciones por resultado (active|inactive)",
		}, []string{"result"})

		authorizationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_authorizations_total",
			Help: "Autorizaciones otorgadas por response type",
		}, []string{"response_type"})

		clientAuthFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_client_auth_failures_total",
			Help: "Fallos de autenticación de client por método",
		}, []string{"method"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			tokensIssuedTotal, protocolErrorsTotal, revocationsTotal,
			introspectionsTotal, authorizationsTotal, clientAuthFailuresTotal,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	if cfg.Pool != nil {
		if err := registerCollector(registry, newPoolCollector(cfg.Pool)); err != nil {
			return nil, err
		}
	}

	// Usamos el gatherer global por compatibilidad, ya que las métricas se registran allí.
	return promhttp.Handler(), nil
}

// WithHTTP instrumenta requests HTTP (contadores, latencia, inflight).
func WithHTTP(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := r.URL.Path

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RecordTokenIssued registra una emisión exitosa.
func RecordTokenIssued(grantType string) {
	if tokensIssuedTotal != nil {
		tokensIssuedTotal.WithLabelValues(grantType).Inc()
	}
}

// RecordProtocolError registra un error de protocolo servido.
func RecordProtocolError(endpoint, code string) {
	if protocolErrorsTotal != nil {
		protocolErrorsTotal.WithLabelValues(endpoint, code).Inc()
	}
}

// RecordRevocation registra una revocación procesada.
func RecordRevocation(hint string) {
	if revocationsTotal != nil {
		revocationsTotal.WithLabelValues(hint).Inc()
	}
}

// RecordIntrospection registra una introspección.
func RecordIntrospection(active bool) {
	if introspectionsTotal != nil {
		result := "inactive"
		if active {
			result = "active"
		}
		introspectionsTotal.WithLabelValues(result).Inc()
	}
}

// RecordAuthorization registra una autorización otorgada.
func RecordAuthorization(responseType string) {
	if authorizationsTotal != nil {
		authorizationsTotal.WithLabelValues(responseType).Inc()
	}
}

// RecordClientAuthFailure registra un fallo de autenticación de client.
func RecordClientAuthFailure(method string) {
	if clientAuthFailuresTotal != nil {
		clientAuthFailuresTotal.WithLabelValues(method).Inc()
	}
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// poolCollector expone gauges del pool pgx.
type poolCollector struct {
	pool func() *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newPoolCollector(pool func() *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	pool := c.pool()
	if pool == nil {
		return
	}
	stat := pool.Stat()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}
