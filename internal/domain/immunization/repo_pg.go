package immunization

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

const recordCols = `id, child_id, vaccine_id, dose_sequence, date_given, given_by, batch_number,
	health_facility, sub_county, ward, village, next_due_date, status, notes,
	adverse_reactions, weight_at_vaccination, height_at_vaccination, created_at, updated_at`

var recordSortColumns = map[string]string{
	"date":    "date_given",
	"dose":    "dose_sequence",
	"created": "created_at",
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.ChildID, &rec.VaccineID, &rec.DoseSequence, &rec.DateGiven,
		&rec.GivenBy, &rec.BatchNumber, &rec.HealthFacility, &rec.SubCounty, &rec.Ward,
		&rec.Village, &rec.NextDueDate, &rec.Status, &rec.Notes, &rec.AdverseReactions,
		&rec.WeightAtVaccination, &rec.HeightAtVaccination, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("vaccination record")
	}
	return &rec, err
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vaccination_records (id, child_id, vaccine_id, dose_sequence, date_given,
			given_by, batch_number, health_facility, sub_county, ward, village, next_due_date,
			status, notes, adverse_reactions, weight_at_vaccination, height_at_vaccination)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`,
		rec.ID, rec.ChildID, rec.VaccineID, rec.DoseSequence, rec.DateGiven,
		rec.GivenBy, rec.BatchNumber, rec.HealthFacility, rec.SubCounty, rec.Ward, rec.Village,
		rec.NextDueDate, rec.Status, rec.Notes, rec.AdverseReactions,
		rec.WeightAtVaccination, rec.HeightAtVaccination,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM vaccination_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE vaccination_records SET dose_sequence=$2, date_given=$3, batch_number=$4,
			health_facility=$5, sub_county=$6, ward=$7, village=$8, next_due_date=$9, status=$10,
			notes=$11, adverse_reactions=$12, weight_at_vaccination=$13, height_at_vaccination=$14,
			updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.DoseSequence, rec.DateGiven, rec.BatchNumber,
		rec.HealthFacility, rec.SubCounty, rec.Ward, rec.Village, rec.NextDueDate, rec.Status,
		rec.Notes, rec.AdverseReactions, rec.WeightAtVaccination, rec.HeightAtVaccination)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("vaccination record")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM vaccination_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("vaccination record")
	}
	return nil
}

func (r *repoPG) ListByChild(ctx context.Context, childID uuid.UUID) ([]*Record, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+recordCols+` FROM vaccination_records
		WHERE child_id = $1 ORDER BY date_given, dose_sequence`, childID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	qb := db.NewSearchQuery("vaccination_records", recordCols)
	if f.ChildID != nil {
		qb.Eq("child_id", *f.ChildID)
	}
	if f.VaccineID != nil {
		qb.Eq("vaccine_id", *f.VaccineID)
	}
	if f.Status != "" {
		qb.Eq("status", f.Status)
	}
	var from, to interface{}
	if f.From != nil {
		from = *f.From
	}
	if f.To != nil {
		to = *f.To
	}
	qb.Between("date_given", from, to)
	qb.ApplySort(f.Sort, "date_given DESC", recordSortColumns)

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

func (r *repoPG) CountCompleted(ctx context.Context, vaccineID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM vaccination_records
		WHERE vaccine_id = $1 AND status = 'completed' AND date_given >= $2 AND date_given < $3`,
		vaccineID, from, to).Scan(&n)
	return n, err
}

func (r *repoPG) LockChild(ctx context.Context, childID uuid.UUID) error {
	var one int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT 1 FROM children WHERE id = $1 FOR UPDATE`, childID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("child")
	}
	return err
}

func collect(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
