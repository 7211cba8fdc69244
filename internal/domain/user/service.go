package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
)

// HospitalChecker confirms a facility exists before staff are attached to it.
type HospitalChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	hospitals HospitalChecker
}

func NewService(repo Repository, hospitals HospitalChecker) *Service {
	return &Service{repo: repo, hospitals: hospitals}
}

func (s *Service) validate(ctx context.Context, u *User) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Name == "" || u.Email == "" || u.Role == "" {
		return apperr.Invalid("Name, email and role are required")
	}
	if len(u.Name) > 100 {
		return apperr.Invalid("Name cannot exceed 100 characters")
	}
	if !emailFormat.MatchString(u.Email) {
		return apperr.Invalid("Please provide a valid email address")
	}
	role, err := ParseRole(string(u.Role))
	if err != nil {
		return err
	}
	u.Role = role

	if u.Phone, err = NormalizePhone(u.Phone); err != nil {
		return err
	}
	if u.Role == auth.RoleMother && (u.Phone == "" || u.SubCounty == "" || u.Ward == "" || u.Village == "") {
		return apperr.Invalid("Phone, sub-county, ward, and village are required for mother role")
	}

	switch u.Role {
	case auth.RoleHospitalStaff, auth.RoleHealthWorker:
		if u.HospitalID != nil && s.hospitals != nil {
			ok, err := s.hospitals.Exists(ctx, *u.HospitalID)
			if err != nil {
				return fmt.Errorf("check hospital: %w", err)
			}
			if !ok {
				return apperr.NotFound("hospital")
			}
		}
	default:
		u.HospitalID = nil
	}
	if u.Role != auth.RoleMother {
		u.AssignedCHWID = nil
	}
	return nil
}

// ensureUnique rejects an email or phone held by a user other than self.
func (s *Service) ensureUnique(ctx context.Context, u *User) error {
	existing, err := s.repo.GetByEmail(ctx, u.Email)
	if err == nil && existing.ID != u.ID {
		return apperr.Conflict("User with this email already exists")
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if u.Phone == "" {
		return nil
	}
	existing, err = s.repo.GetByPhone(ctx, u.Phone)
	if err == nil && existing.ID != u.ID {
		return apperr.Conflict("User with this phone number already exists")
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if err := s.validate(ctx, u); err != nil {
		return err
	}
	if err := s.ensureUnique(ctx, u); err != nil {
		return err
	}
	if u.AssignedCHWID != nil {
		if _, err := s.healthWorker(ctx, *u.AssignedCHWID); err != nil {
			return err
		}
	}
	return s.repo.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	if err := s.validate(ctx, u); err != nil {
		return err
	}
	if err := s.ensureUnique(ctx, u); err != nil {
		return err
	}
	return s.repo.Update(ctx, u)
}

// UpdateProfile applies the self-service fields of p to user id.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.SubCounty != nil {
		u.SubCounty = *p.SubCounty
	}
	if p.Ward != nil {
		u.Ward = *p.Ward
	}
	if p.Village != nil {
		u.Village = *p.Village
	}
	if err := s.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, f Filter, limit, offset int) ([]*User, int, error) {
	return s.repo.Search(ctx, f, limit, offset)
}

// RequireRole loads user id and checks it carries role.
func (s *Service) RequireRole(ctx context.Context, id uuid.UUID, role auth.Role) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, apperr.Invalid("user %s is not a %s", id, role)
	}
	return u, nil
}

func (s *Service) healthWorker(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.RequireRole(ctx, id, auth.RoleHealthWorker)
}

// AssignCHW links a mother to the community health worker who follows her up.
func (s *Service) AssignCHW(ctx context.Context, motherID, chwID uuid.UUID) (*User, error) {
	mother, err := s.RequireRole(ctx, motherID, auth.RoleMother)
	if err != nil {
		return nil, err
	}
	if _, err := s.healthWorker(ctx, chwID); err != nil {
		return nil, err
	}
	if err := s.repo.SetCHW(ctx, motherID, chwID); err != nil {
		return nil, err
	}
	mother.AssignedCHWID = &chwID
	return mother, nil
}

// ListMothersByCHW returns the active mothers assigned to chwID, optionally
// narrowed by a name, phone or village search.
func (s *Service) ListMothersByCHW(ctx context.Context, chwID uuid.UUID, search string) ([]*User, error) {
	return s.repo.ListByCHW(ctx, chwID, strings.TrimSpace(search))
}
