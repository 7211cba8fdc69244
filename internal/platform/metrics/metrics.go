package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. All methods are
// safe on a nil receiver so components can run without instrumentation.
type Metrics struct {
	registry prometheus.Gatherer

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Schedule engine
	ScheduleLatency prometheus.Histogram
	DueDoses        *prometheus.CounterVec

	// Child status recomputations by resulting label
	StatusRefreshes *prometheus.CounterVec

	// Catalog cache lookups by tier and result
	CacheLookups *prometheus.CounterVec
}

// New registers all collectors on reg. Passing a fresh registry keeps tests
// independent of the global default one.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),

		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vaxtrack_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		ScheduleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaxtrack_schedule_compute_duration_seconds",
			Help:    "Duration of a single child schedule computation",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		DueDoses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_schedule_due_doses_total",
			Help: "Due doses emitted by the schedule engine by status",
		}, []string{"status"}), // status: "upcoming", "overdue"

		StatusRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_child_status_refreshes_total",
			Help: "Child vaccination status recomputations by resulting status",
		}, []string{"status"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_catalog_cache_lookups_total",
			Help: "Vaccine catalog cache lookups by tier and result",
		}, []string{"tier", "result"}),
	}
}

// ObserveSchedule records one engine run.
func (m *Metrics) ObserveSchedule(d time.Duration, overdue, total int) {
	if m == nil {
		return
	}
	m.ScheduleLatency.Observe(d.Seconds())
	m.DueDoses.WithLabelValues("overdue").Add(float64(overdue))
	m.DueDoses.WithLabelValues("upcoming").Add(float64(total - overdue))
}

func (m *Metrics) IncrementStatusRefresh(status string) {
	if m != nil {
		m.StatusRefreshes.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementCacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(tier, result).Inc()
}

// Middleware records request counts and latency keyed by the matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			route := c.Path()
			method := c.Request().Method
			m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
			m.HTTPLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
