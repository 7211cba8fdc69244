package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

// maxCaseload caps the mothers returned for a single CHW.
const maxCaseload = 1000

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const userCols = `id, name, email, phone, role, county, sub_county, ward, village,
	assigned_chw_id, hospital_id, active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.County, &u.SubCounty, &u.Ward, &u.Village,
		&u.AssignedCHWID, &u.HospitalID, &u.Active, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (id, name, email, phone, role, county, sub_county, ward, village,
			assigned_chw_id, hospital_id, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.Phone, u.Role, u.County, u.SubCounty, u.Ward, u.Village,
		u.AssignedCHWID, u.HospitalID, u.Active).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("User with this email or phone number already exists")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (r *repoPG) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE phone = $1`, phone))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET name=$2, email=$3, phone=$4, role=$5, county=$6, sub_county=$7,
			ward=$8, village=$9, assigned_chw_id=$10, hospital_id=$11, active=$12, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Name, u.Email, u.Phone, u.Role, u.County, u.SubCounty,
		u.Ward, u.Village, u.AssignedCHWID, u.HospitalID, u.Active)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("User with this email or phone number already exists")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*User, int, error) {
	qb := db.NewSearchQuery("users", userCols)
	if f.Role != "" {
		qb.Eq("role", f.Role)
	}
	if f.Active != nil {
		qb.Eq("active", *f.Active)
	}
	if f.County != "" {
		qb.Eq("county", f.County)
	}
	if f.HospitalID != nil {
		qb.Eq("hospital_id", *f.HospitalID)
	}
	qb.Contains(f.Search, "name", "email", "phone")
	qb.OrderBy("created_at DESC")

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByCHW(ctx context.Context, chwID uuid.UUID, search string) ([]*User, error) {
	qb := db.NewSearchQuery("users", userCols)
	qb.Eq("assigned_chw_id", chwID)
	qb.Eq("role", "mother")
	qb.Eq("active", true)
	qb.Contains(search, "name", "phone", "village")
	qb.OrderBy("name")
	rows, err := db.Conn(ctx, r.pool).Query(ctx, qb.DataSQL(maxCaseload, 0), qb.DataArgs(maxCaseload, 0)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) SetCHW(ctx context.Context, motherID, chwID uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE users SET assigned_chw_id = $2, updated_at = NOW() WHERE id = $1`, motherID, chwID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func collect(rows pgx.Rows) ([]*User, error) {
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
