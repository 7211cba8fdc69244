package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
)

type mockRepo struct {
	store map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	u.ID = uuid.New()
	m.store[u.ID] = u
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) find(match func(*User) bool) (*User, error) {
	for _, u := range m.store {
		if match(u) {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u *User) bool { return u.Email == email })
}

func (m *mockRepo) GetByPhone(_ context.Context, phone string) (*User, error) {
	return m.find(func(u *User) bool { return u.Phone == phone })
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.store[u.ID]; !ok {
		return apperr.NotFound("user")
	}
	m.store[u.ID] = u
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("user")
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, f Filter, limit, offset int) ([]*User, int, error) {
	var result []*User
	for _, u := range m.store {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		result = append(result, u)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByCHW(_ context.Context, chwID uuid.UUID, search string) ([]*User, error) {
	var result []*User
	for _, u := range m.store {
		if u.AssignedCHWID == nil || *u.AssignedCHWID != chwID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(search)) {
			continue
		}
		result = append(result, u)
	}
	return result, nil
}

func (m *mockRepo) SetCHW(_ context.Context, motherID, chwID uuid.UUID) error {
	u, ok := m.store[motherID]
	if !ok {
		return apperr.NotFound("user")
	}
	u.AssignedCHWID = &chwID
	return nil
}

type hospitalSet map[uuid.UUID]bool

func (h hospitalSet) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return h[id], nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, hospitalSet{}), repo
}

func mother(name, phone string) *User {
	return &User{
		Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Phone: phone, Role: auth.RoleMother,
		SubCounty: "Kitui Central", Ward: "Township", Village: "Kalundu",
		Active: true,
	}
}

func chw(name string) *User {
	return &User{
		Name: name, Email: strings.ToLower(name) + "@chw.example.com",
		Role: auth.RoleHealthWorker, Active: true,
	}
}

func TestCreateUser_NormalizesInput(t *testing.T) {
	svc, _ := newTestService()
	u := mother("Alice Mama", "0712345678")
	u.Email = "  Alice.Mama@Example.COM "
	if err := svc.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Phone != "254712345678" {
		t.Errorf("expected normalised phone, got %q", u.Phone)
	}
	if u.Email != "alice.mama@example.com" {
		t.Errorf("expected lower-cased email, got %q", u.Email)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*User)
		want   string
	}{
		{"missing name", func(u *User) { u.Name = " " }, "required"},
		{"long name", func(u *User) { u.Name = strings.Repeat("a", 101) }, "100 characters"},
		{"bad email", func(u *User) { u.Email = "not-an-email" }, "valid email"},
		{"bad role", func(u *User) { u.Role = "nurse" }, "Invalid role"},
		{"bad phone", func(u *User) { u.Phone = "12345" }, "254712345678"},
		{"mother without ward", func(u *User) { u.Ward = "" }, "required for mother"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			u := mother("Betty Mama", "254700000003")
			tt.mutate(u)
			err := svc.CreateUser(context.Background(), u)
			if !errors.Is(err, apperr.ErrValidation) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected validation error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.CreateUser(ctx, mother("Carol Mama", "254700000004")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dupEmail := mother("Carol Mama", "254700000099")
	if err := svc.CreateUser(ctx, dupEmail); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected email conflict, got %v", err)
	}
	dupPhone := mother("Diana Mama", "0700000004")
	if err := svc.CreateUser(ctx, dupPhone); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected phone conflict, got %v", err)
	}
}

func TestCreateUser_HospitalMustExist(t *testing.T) {
	hospitalID := uuid.New()
	svc := NewService(newMockRepo(), hospitalSet{hospitalID: true})
	ctx := context.Background()

	staff := &User{Name: "Nurse", Email: "nurse@example.com", Role: auth.RoleHospitalStaff, HospitalID: &hospitalID}
	if err := svc.CreateUser(ctx, staff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing := uuid.New()
	other := &User{Name: "Other", Email: "other@example.com", Role: auth.RoleHospitalStaff, HospitalID: &missing}
	if err := svc.CreateUser(ctx, other); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected hospital not found, got %v", err)
	}

	m := mother("Eve Mama", "254700000006")
	m.HospitalID = &hospitalID
	if err := svc.CreateUser(ctx, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.HospitalID != nil {
		t.Error("mothers are never attached to a hospital")
	}
}

func TestAssignCHW(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m := mother("Faith Mama", "254700000007")
	w := chw("Grace")
	svc.CreateUser(ctx, m)
	svc.CreateUser(ctx, w)

	got, err := svc.AssignCHW(ctx, m.ID, w.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AssignedCHWID == nil || *got.AssignedCHWID != w.ID {
		t.Errorf("expected CHW %s, got %v", w.ID, got.AssignedCHWID)
	}
	if *repo.store[m.ID].AssignedCHWID != w.ID {
		t.Error("expected the assignment to be persisted")
	}

	if _, err := svc.AssignCHW(ctx, w.ID, w.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected error assigning a CHW to a non-mother, got %v", err)
	}
	if _, err := svc.AssignCHW(ctx, m.ID, m.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected error assigning a non-CHW, got %v", err)
	}
	if _, err := svc.AssignCHW(ctx, uuid.New(), w.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown mother, got %v", err)
	}
}

func TestListMothersByCHW(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := chw("Halima")
	svc.CreateUser(ctx, w)
	for i, name := range []string{"Irene Mama", "Joy Mama", "Irma Mama"} {
		m := mother(name, "2547000001"+string(rune('0'+i))+"0")
		m.AssignedCHWID = &w.ID
		if err := svc.CreateUser(ctx, m); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	all, _ := svc.ListMothersByCHW(ctx, w.ID, "")
	if len(all) != 3 {
		t.Errorf("expected 3 mothers, got %d", len(all))
	}
	some, _ := svc.ListMothersByCHW(ctx, w.ID, "  ir ")
	if len(some) != 2 {
		t.Errorf("expected 2 mothers matching 'ir', got %d", len(some))
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	m := mother("Kemunto Mama", "254700000011")
	svc.CreateUser(ctx, m)

	village := "Mulutu"
	phone := "0722000000"
	got, err := svc.UpdateProfile(ctx, m.ID, ProfileUpdate{Village: &village, Phone: &phone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Village != "Mulutu" || got.Phone != "254722000000" || got.Name != "Kemunto Mama" {
		t.Errorf("unexpected profile %+v", got)
	}

	empty := ""
	if _, err := svc.UpdateProfile(ctx, m.ID, ProfileUpdate{Village: &empty}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected mothers to keep a village, got %v", err)
	}
}
