package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveSchedule(time.Millisecond, 1, 2)
	m.IncrementStatusRefresh("behind")
	m.IncrementCacheLookup("memory", true)
}

func TestObserveSchedule_SplitsByStatus(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveSchedule(time.Millisecond, 2, 5)

	if got := testutil.ToFloat64(m.DueDoses.WithLabelValues("overdue")); got != 2 {
		t.Errorf("expected 2 overdue, got %v", got)
	}
	if got := testutil.ToFloat64(m.DueDoses.WithLabelValues("upcoming")); got != 3 {
		t.Errorf("expected 3 upcoming, got %v", got)
	}
}

func TestMiddleware_CountsRequests(t *testing.T) {
	m := New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/ping", "200")); got != 1 {
		t.Errorf("expected 1 request counted, got %v", got)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "vaxtrack_http_requests_total") {
		t.Error("expected metrics output to include request counter")
	}
}
