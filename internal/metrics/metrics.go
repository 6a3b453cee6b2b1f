// Package metrics expone las métricas Prometheus del relying party: HTTP y
// del flujo authorization code.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors. Un *Metrics nil es válido y no registra nada.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        prometheus.Gauge

	authorizationRequests *prometheus.CounterVec
	callbacks             *prometheus.CounterVec
	exchangeDuration      *prometheus.HistogramVec
}

// New crea y registra los collectors. Con reg nil usa un registry propio.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo",
		}),
		authorizationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth2_client_authorization_requests_total",
			Help: "Authorization requests iniciados por configuración y resultado",
		}, []string{"config_id", "result"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth2_client_callbacks_total",
			Help: "Callbacks procesados por configuración y outcome",
		}, []string{"config_id", "outcome"}),
		exchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oauth2_client_token_exchange_duration_seconds",
			Help:    "Duración de la llamada al token endpoint",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"config_id", "outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequestsTotal, m.httpRequestDuration, m.httpInflight,
		m.authorizationRequests, m.callbacks, m.exchangeDuration,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// AuthorizationRequest cuenta un intento de iniciar el flujo.
func (m *Metrics) AuthorizationRequest(configID, result string) {
	if m == nil {
		return
	}
	m.authorizationRequests.WithLabelValues(configID, result).Inc()
}

// Callback cuenta un callback terminado con el outcome dado (core.Kind).
func (m *Metrics) Callback(configID, outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(configID, outcome).Inc()
}

// ObserveExchange registra la duración de una llamada al token endpoint.
func (m *Metrics) ObserveExchange(configID, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.exchangeDuration.WithLabelValues(configID, outcome).Observe(d.Seconds())
}

// Middleware instrumenta requests HTTP (contadores, latencia, inflight).
// pattern devuelve la ruta registrada; si retorna "" se normaliza el path.
func (m *Metrics) Middleware(pattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.httpInflight.Inc()
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				m.httpInflight.Dec()
				path := ""
				if pattern != nil {
					path = pattern(r)
				}
				if path == "" {
					path = normalizePath(r.URL.Path)
				}
				method := strings.ToUpper(r.Method)
				status := rec.status
				if status == 0 {
					status = http.StatusOK
				}
				m.httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
				m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// normalizePath colapsa segmentos dinámicos para acotar la cardinalidad.
func normalizePath(p string) string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		switch {
		case seg == "":
			continue
		case len(seg) > 48, uuidSegmentRE.MatchString(seg), tokenSegmentRE.MatchString(seg):
			out = append(out, ":param")
		default:
			if _, err := strconv.Atoi(seg); err == nil {
				out = append(out, ":param")
				continue
			}
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}
