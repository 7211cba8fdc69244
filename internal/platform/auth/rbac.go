package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Role is the single role a user account carries.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleHealthWorker  Role = "health_worker"
	RoleHospitalStaff Role = "hospital_staff"
	RoleMother        Role = "mother"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleHealthWorker, RoleHospitalStaff, RoleMother}

func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// ParseRole returns the role named s or an error for an unknown name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// Capability is one permission a role may be granted. The set is closed; the
// value is a bit index into a role's permission mask.
type Capability uint8

const (
	UsersRead Capability = iota
	UsersWrite
	UsersDelete
	VaccinesRead
	VaccinesWrite
	VaccinesDelete
	ChildrenRead
	ChildrenWrite
	ChildrenDelete
	RecordsRead
	RecordsWrite
	RecordsDelete
	ReportsRead
	ReportsWrite
	HospitalsRead
	HospitalsWrite
	HospitalsDelete
	StockRead
	StockWrite
	StockDelete
	CoverageRead
	CoverageWrite
	CoverageDelete
	MothersRead
	DefaultersRead
	ScheduleRead
	ScheduleWrite
	AppointmentsRead
	AppointmentsWrite
	RemindersRead
	ProfileRead
	ProfileWrite

	capabilityCount
)

var capabilityNames = [capabilityCount]string{
	UsersRead: "users:read", UsersWrite: "users:write", UsersDelete: "users:delete",
	VaccinesRead: "vaccines:read", VaccinesWrite: "vaccines:write", VaccinesDelete: "vaccines:delete",
	ChildrenRead: "children:read", ChildrenWrite: "children:write", ChildrenDelete: "children:delete",
	RecordsRead: "records:read", RecordsWrite: "records:write", RecordsDelete: "records:delete",
	ReportsRead: "reports:read", ReportsWrite: "reports:write",
	HospitalsRead: "hospitals:read", HospitalsWrite: "hospitals:write", HospitalsDelete: "hospitals:delete",
	StockRead: "stock:read", StockWrite: "stock:write", StockDelete: "stock:delete",
	CoverageRead: "coverage:read", CoverageWrite: "coverage:write", CoverageDelete: "coverage:delete",
	MothersRead: "mothers:read", DefaultersRead: "defaulters:read",
	ScheduleRead: "schedule:read", ScheduleWrite: "schedule:write",
	AppointmentsRead: "appointments:read", AppointmentsWrite: "appointments:write",
	RemindersRead: "reminders:read",
	ProfileRead:   "profile:read", ProfileWrite: "profile:write",
}

func (c Capability) String() string {
	if c < capabilityCount {
		return capabilityNames[c]
	}
	return fmt.Sprintf("capability(%d)", c)
}

type capabilitySet uint64

func setOf(caps ...Capability) capabilitySet {
	var s capabilitySet
	for _, c := range caps {
		s |= 1 << c
	}
	return s
}

func (s capabilitySet) has(c Capability) bool { return s&(1<<c) != 0 }

// rolePermissions is the static grant table. Admin holds every capability.
var rolePermissions = map[Role]capabilitySet{
	RoleAdmin: 1<<capabilityCount - 1,
	RoleHealthWorker: setOf(
		UsersRead, VaccinesRead,
		ChildrenRead, ChildrenWrite,
		RecordsRead, RecordsWrite,
		ReportsRead, ReportsWrite,
		MothersRead, DefaultersRead,
		ScheduleRead, ScheduleWrite,
		AppointmentsRead,
	),
	RoleHospitalStaff: setOf(
		VaccinesRead, StockRead, StockWrite,
		RecordsRead, RecordsWrite, ChildrenRead, UsersRead,
		AppointmentsRead, AppointmentsWrite,
		CoverageRead, CoverageWrite,
		HospitalsRead, ReportsRead, ReportsWrite,
	),
	RoleMother: setOf(
		ChildrenRead, ChildrenWrite, RecordsRead,
		ScheduleRead, RemindersRead, AppointmentsRead,
		ProfileRead, ProfileWrite,
	),
}

// Can reports whether role r is granted capability c.
func (r Role) Can(c Capability) bool {
	return rolePermissions[r].has(c)
}

// Capabilities returns the names of every capability granted to r.
func (r Role) Capabilities() []string {
	set := rolePermissions[r]
	var out []string
	for c := Capability(0); c < capabilityCount; c++ {
		if set.has(c) {
			out = append(out, c.String())
		}
	}
	return out
}

// RequireCapability returns middleware that rejects principals whose role
// lacks capability c.
func RequireCapability(c Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, ok := PrincipalFromContext(ctx.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !p.Role.Can(c) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required permission: %s", c))
			}
			return next(ctx)
		}
	}
}

// RequireRole returns middleware that checks the principal has one of the
// given roles. Admin always passes.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if p.Role == RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
