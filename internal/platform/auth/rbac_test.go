package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func contextWithRole(role Role) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: uuid.New(), Role: role}))
	return e.NewContext(req, httptest.NewRecorder())
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleAdmin, UsersDelete, true},
		{RoleAdmin, DefaultersRead, true},
		{RoleHealthWorker, RecordsWrite, true},
		{RoleHealthWorker, MothersRead, true},
		{RoleHealthWorker, StockWrite, false},
		{RoleHospitalStaff, StockWrite, true},
		{RoleHospitalStaff, RecordsWrite, true},
		{RoleHospitalStaff, DefaultersRead, false},
		{RoleMother, ChildrenWrite, true},
		{RoleMother, RecordsWrite, false},
		{RoleMother, UsersRead, false},
		{Role("nurse"), ChildrenRead, false},
	}
	for _, tt := range tests {
		if got := tt.role.Can(tt.cap); got != tt.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestAdminHoldsEveryCapability(t *testing.T) {
	if got := len(RoleAdmin.Capabilities()); got != int(capabilityCount) {
		t.Errorf("expected admin to hold %d capabilities, got %d", capabilityCount, got)
	}
}

func TestCapabilityNamesAreComplete(t *testing.T) {
	seen := map[string]bool{}
	for c := Capability(0); c < capabilityCount; c++ {
		name := c.String()
		if name == "" {
			t.Errorf("capability %d has no name", c)
		}
		if seen[name] {
			t.Errorf("duplicate capability name %q", name)
		}
		seen[name] = true
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Health_Worker ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != RoleHealthWorker {
		t.Errorf("expected health_worker, got %s", r)
	}
	if _, err := ParseRole("physician"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRequireCapability_Allowed(t *testing.T) {
	c := contextWithRole(RoleHospitalStaff)
	if err := RequireCapability(StockWrite)(okHandler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireCapability_Denied(t *testing.T) {
	c := contextWithRole(RoleMother)
	err := RequireCapability(StockWrite)(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireCapability_NoPrincipal(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequireCapability(ChildrenRead)(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role    Role
		allowed bool
	}{
		{RoleHealthWorker, true},
		{RoleAdmin, true},
		{RoleMother, false},
	}
	for _, tt := range tests {
		err := RequireRole(RoleHealthWorker, RoleHospitalStaff)(okHandler)(contextWithRole(tt.role))
		if tt.allowed && err != nil {
			t.Errorf("%s: expected access, got %v", tt.role, err)
		}
		if !tt.allowed {
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusForbidden {
				t.Errorf("%s: expected 403, got %v", tt.role, err)
			}
		}
	}
}
