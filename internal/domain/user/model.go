package user

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
)

type User struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Email         string     `db:"email" json:"email"`
	Phone         string     `db:"phone" json:"phone,omitempty"`
	Role          auth.Role  `db:"role" json:"role"`
	County        string     `db:"county" json:"county,omitempty"`
	SubCounty     string     `db:"sub_county" json:"sub_county,omitempty"`
	Ward          string     `db:"ward" json:"ward,omitempty"`
	Village       string     `db:"village" json:"village,omitempty"`
	AssignedCHWID *uuid.UUID `db:"assigned_chw_id" json:"assigned_chw_id,omitempty"`
	HospitalID    *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	Active        bool       `db:"active" json:"active"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Filter narrows ListUsers. Zero fields are ignored.
type Filter struct {
	Role       auth.Role
	Active     *bool
	County     string
	HospitalID *uuid.UUID
	Search     string
}

// ProfileUpdate carries the fields a user may change on their own account.
type ProfileUpdate struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	SubCounty *string `json:"sub_county"`
	Ward      *string `json:"ward"`
	Village   *string `json:"village"`
}

var (
	kenyanPhone = regexp.MustCompile(`^254\d{9}$`)
	nonDigits   = regexp.MustCompile(`\D`)
	emailFormat = regexp.MustCompile(`^\w+([.+-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)
)

// NormalizePhone rewrites a Kenyan mobile number into 2547XXXXXXXX form.
// Local numbers with a leading 0 and bare nine digit numbers gain the 254
// country code. An empty input stays empty.
func NormalizePhone(raw string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case digits == "":
		return "", nil
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		digits = "254" + digits[1:]
	case len(digits) == 9:
		digits = "254" + digits
	}
	if !kenyanPhone.MatchString(digits) {
		return "", apperr.Invalid("Phone must be in format 254712345678")
	}
	return digits, nil
}

// ParseRole accepts the canonical role names plus the aliases older clients
// send ("health-worker", "hospital").
func ParseRole(s string) (auth.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "health-worker":
		return auth.RoleHealthWorker, nil
	case "hospital":
		return auth.RoleHospitalStaff, nil
	}
	r, err := auth.ParseRole(s)
	if err != nil {
		return "", apperr.Invalid("Invalid role provided")
	}
	return r, nil
}
