package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, setup func(*http.Request)) (Principal, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if setup != nil {
		setup(req)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var got Principal
	err := mw(func(c echo.Context) error {
		got, _ = PrincipalFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})(c)
	return got, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), func(r *http.Request) {
				r.Header.Set("Authorization", tt.header)
			})
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "vaxtrack"}
	want := Principal{UserID: uuid.New(), Role: RoleHealthWorker}
	token, err := IssueToken(cfg, want, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	got, err := runMiddleware(t, JWTMiddleware(cfg), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != want {
		t.Errorf("expected principal %+v, got %+v", want, got)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey}
	token, err := IssueToken(cfg, Principal{UserID: uuid.New(), Role: RoleMother}, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	_, err = runMiddleware(t, JWTMiddleware(cfg), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token, err := IssueToken(JWTConfig{SigningKey: []byte("other-key")}, Principal{UserID: uuid.New(), Role: RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	_, err = runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "physician",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Skipper: func(echo.Context) bool { return true }}
	if _, err := runMiddleware(t, JWTMiddleware(cfg), nil); err != nil {
		t.Errorf("expected skipped request to pass, got %v", err)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	got, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{}), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != RoleAdmin || got.UserID != DevUserID {
		t.Errorf("expected dev admin, got %+v", got)
	}
}

func TestDevAuthMiddleware_Headers(t *testing.T) {
	uid := uuid.New()
	got, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{}), func(r *http.Request) {
		r.Header.Set("X-Dev-Role", "mother")
		r.Header.Set("X-Dev-User", uid.String())
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != RoleMother || got.UserID != uid {
		t.Errorf("expected mother %s, got %+v", uid, got)
	}
}

func TestDevAuthMiddleware_BadRole(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{}), func(r *http.Request) {
		r.Header.Set("X-Dev-Role", "physician")
	})
	expectStatus(t, err, http.StatusBadRequest)
}

func TestDevAuthMiddleware_HonoursToken(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey}
	want := Principal{UserID: uuid.New(), Role: RoleHospitalStaff}
	token, err := IssueToken(cfg, want, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	got, err := runMiddleware(t, DevAuthMiddleware(cfg), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}
