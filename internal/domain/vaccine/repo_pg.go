package vaccine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const vaccineCols = `id, code, name, description, protects_against, due_at_birth,
	recommended_months, recommended_weeks, dosage, route, site, booster_doses,
	active, created_at, updated_at`

func scanVaccine(row pgx.Row) (*Vaccine, error) {
	var v Vaccine
	err := row.Scan(&v.ID, &v.Code, &v.Name, &v.Description, &v.ProtectsAgainst, &v.DueAtBirth,
		&v.RecommendedMonths, &v.RecommendedWeeks, &v.Dosage, &v.Route, &v.Site, &v.BoosterDoses,
		&v.Active, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("vaccine")
	}
	return &v, err
}

func (r *repoPG) insert(ctx context.Context, v *Vaccine, suffix string) (int64, error) {
	v.ID = uuid.New()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO vaccines (id, code, name, description, protects_against, due_at_birth,
			recommended_months, recommended_weeks, dosage, route, site, booster_doses, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`+suffix,
		v.ID, v.Code, v.Name, v.Description, v.ProtectsAgainst, v.DueAtBirth,
		v.RecommendedMonths, v.RecommendedWeeks, v.Dosage, v.Route, v.Site, v.BoosterDoses, v.Active)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) Create(ctx context.Context, v *Vaccine) error {
	_, err := r.insert(ctx, v, "")
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("Vaccine with this code already exists")
	}
	return err
}

func (r *repoPG) CreateIfAbsent(ctx context.Context, v *Vaccine) (bool, error) {
	n, err := r.insert(ctx, v, ` ON CONFLICT (code) DO NOTHING`)
	return n == 1, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	return scanVaccine(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+vaccineCols+` FROM vaccines WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Vaccine, error) {
	return scanVaccine(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+vaccineCols+` FROM vaccines WHERE code = $1`, code))
}

func (r *repoPG) Update(ctx context.Context, v *Vaccine) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE vaccines SET code=$2, name=$3, description=$4, protects_against=$5,
			due_at_birth=$6, recommended_months=$7, recommended_weeks=$8, dosage=$9,
			route=$10, site=$11, booster_doses=$12, active=$13, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.Code, v.Name, v.Description, v.ProtectsAgainst, v.DueAtBirth,
		v.RecommendedMonths, v.RecommendedWeeks, v.Dosage, v.Route, v.Site, v.BoosterDoses, v.Active)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("Vaccine with this code already exists")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("vaccine")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM vaccines WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Conflict("vaccine is referenced by existing records; deactivate it instead")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("vaccine")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Vaccine, int, error) {
	where := ""
	if activeOnly {
		where = ` WHERE active`
	}
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM vaccines`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+vaccineCols+` FROM vaccines`+where+`
		ORDER BY recommended_months, recommended_weeks, code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Vaccine, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+vaccineCols+` FROM vaccines
		WHERE active ORDER BY recommended_months, recommended_weeks, created_at`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Vaccine, error) {
	defer rows.Close()
	var items []*Vaccine
	for rows.Next() {
		v, err := scanVaccine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
