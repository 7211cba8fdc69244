package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/config"
	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/metrics"
)

const testKey = "0123456789abcdef0123456789abcdef"

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:              env,
		CORSOrigins:      []string{"http://localhost:3000"},
		JWTSigningKey:    testKey,
		JWTIssuer:        "vaxtrack",
		JWTTTL:           time.Hour,
		RateLimitRPS:     100,
		RateLimitBurst:   200,
		RequestTimeout:   5 * time.Second,
		BodyLimit:        "64K",
		CatalogCacheTTL:  time.Minute,
		CatalogCacheSize: 16,
		BatchConcurrency: 4,
	}
}

func newTestServer(t *testing.T, env string) *echo.Echo {
	t.Helper()
	e := newEcho(testConfig(env), zerolog.Nop(), metrics.New(prometheus.NewRegistry()))
	e.GET("/api/v1/whoami", func(c echo.Context) error {
		p, _ := auth.PrincipalFromContext(c.Request().Context())
		return c.String(http.StatusOK, string(p.Role))
	})
	return e
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, "production")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"version":"`+version+`"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected request id header")
	}
}

func TestMetricsEndpoint_Public(t *testing.T) {
	e := newTestServer(t, "production")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuth_ProductionRequiresToken(t *testing.T) {
	e := newTestServer(t, "production")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	tok, err := issueToken(testConfig("production"), "health_worker", "", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "health_worker" {
		t.Fatalf("expected 200 health_worker, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuth_DevelopmentHeaders(t *testing.T) {
	e := newTestServer(t, "development")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	if rec.Body.String() != "admin" {
		t.Errorf("expected default admin principal, got %q", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("X-Dev-Role", "mother")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Body.String() != "mother" {
		t.Errorf("expected mother, got %q", rec.Body.String())
	}
}

func TestIssueToken_RoundTrip(t *testing.T) {
	cfg := testConfig("production")
	id := uuid.New()

	tok, err := issueToken(cfg, "hospital_staff", id.String(), time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	p, err := auth.ParseToken(jwtConfig(cfg), tok)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if p.UserID != id || p.Role != auth.RoleHospitalStaff {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestIssueToken_Rejects(t *testing.T) {
	cfg := testConfig("production")
	if _, err := issueToken(cfg, "surgeon", "", time.Minute); err == nil {
		t.Error("expected error for unknown role")
	}
	if _, err := issueToken(cfg, "admin", "not-a-uuid", time.Minute); err == nil {
		t.Error("expected error for malformed user id")
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := testConfig("development")
	if schedule.New(engineOptions(cfg, nil)...).CompletedOnly() {
		t.Error("expected all records to count by default")
	}
	cfg.ScheduleCompletedOnly = true
	if !schedule.New(engineOptions(cfg, nil)...).CompletedOnly() {
		t.Error("expected completed-only counting")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Info().Str("k", "v").Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	logger = newLogger("development", &buf)
	logger.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}
