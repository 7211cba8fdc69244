package coverage

import (
	"context"
	"errors"
	"time"

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

const reportCols = `id, hospital_id, period_year, period_month, vaccines, total_coverage,
	generated_by, generated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	var month int
	err := row.Scan(&r.ID, &r.HospitalID, &r.Period.Year, &month, &r.Vaccines, &r.TotalCoverage,
		&r.GeneratedBy, &r.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("coverage report")
	}
	r.Period.Month = time.Month(month)
	return &r, err
}

func (r *repoPG) Upsert(ctx context.Context, rep *Report) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO coverage_reports (id, hospital_id, period_year, period_month, vaccines,
			total_coverage, generated_by, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (hospital_id, period_year, period_month) DO UPDATE SET
			vaccines = EXCLUDED.vaccines, total_coverage = EXCLUDED.total_coverage,
			generated_by = EXCLUDED.generated_by, generated_at = EXCLUDED.generated_at
		RETURNING id`,
		uuid.New(), rep.HospitalID, rep.Period.Year, int(rep.Period.Month), rep.Vaccines,
		rep.TotalCoverage, rep.GeneratedBy, rep.GeneratedAt).Scan(&rep.ID)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("hospital %s does not exist", rep.HospitalID)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return scanReport(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+reportCols+` FROM coverage_reports WHERE id = $1`, id))
}

func (r *repoPG) Latest(ctx context.Context, hospitalID uuid.UUID) (*Report, error) {
	return scanReport(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+reportCols+`
		FROM coverage_reports WHERE hospital_id = $1
		ORDER BY period_year DESC, period_month DESC LIMIT 1`, hospitalID))
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error) {
	qb := db.NewSearchQuery("coverage_reports", reportCols)
	if f.HospitalID != nil {
		qb.Eq("hospital_id", *f.HospitalID)
	}
	if f.Period != nil {
		qb.Eq("period_year", f.Period.Year)
		qb.Eq("period_month", int(f.Period.Month))
	}
	qb.OrderBy("period_year DESC, period_month DESC, generated_at DESC")

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM coverage_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("coverage report")
	}
	return nil
}
