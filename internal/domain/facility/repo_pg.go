package facility

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

const hospitalCols = `id, name, type, facility_level, phone, email, address, county, sub_county, ward,
	latitude, longitude, coverage_target, current_coverage, coverage_updated_at, active,
	created_at, updated_at`

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Type, &h.FacilityLevel, &h.Phone, &h.Email, &h.Address,
		&h.County, &h.SubCounty, &h.Ward, &h.Latitude, &h.Longitude, &h.CoverageTarget,
		&h.CurrentCoverage, &h.CoverageUpdatedAt, &h.Active, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("hospital")
	}
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *Hospital) error {
	h.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO hospitals (id, name, type, facility_level, phone, email, address, county,
			sub_county, ward, latitude, longitude, coverage_target, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING coverage_updated_at, created_at, updated_at`,
		h.ID, h.Name, h.Type, h.FacilityLevel, h.Phone, h.Email, h.Address, h.County,
		h.SubCounty, h.Ward, h.Latitude, h.Longitude, h.CoverageTarget, h.Active,
	).Scan(&h.CoverageUpdatedAt, &h.CreatedAt, &h.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return scanHospital(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospitals WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, h *Hospital) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE hospitals SET name=$2, type=$3, facility_level=$4, phone=$5, email=$6, address=$7,
			county=$8, sub_county=$9, ward=$10, latitude=$11, longitude=$12, coverage_target=$13,
			active=$14, updated_at=NOW()
		WHERE id = $1`,
		h.ID, h.Name, h.Type, h.FacilityLevel, h.Phone, h.Email, h.Address,
		h.County, h.SubCounty, h.Ward, h.Latitude, h.Longitude, h.CoverageTarget, h.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("hospital")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM hospitals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("hospital")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Hospital, int, error) {
	qb := db.NewSearchQuery("hospitals", hospitalCols)
	if f.County != "" {
		qb.Eq("county", f.County)
	}
	if f.Type != "" {
		qb.Eq("type", f.Type)
	}
	if f.Active != nil {
		qb.Eq("active", *f.Active)
	}
	qb.Contains(f.Search, "name", "sub_county", "ward")
	qb.OrderBy("name")

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SetCoverage(ctx context.Context, id uuid.UUID, coverage int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE hospitals SET current_coverage = $2, coverage_updated_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, coverage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("hospital")
	}
	return nil
}
