package appointment

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

const apptCols = `id, hospital_id, child_id, mother_id, vaccine_id, scheduled_date, scheduled_time,
	type, status, assigned_staff_id, duration_minutes, notes, reminder_sent, completed_at, outcome,
	created_at, updated_at`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.HospitalID, &a.ChildID, &a.MotherID, &a.VaccineID, &a.ScheduledDate, &a.ScheduledTime,
		&a.Type, &a.Status, &a.AssignedStaffID, &a.DurationMinutes, &a.Notes, &a.ReminderSent, &a.CompletedAt, &a.Outcome,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment")
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, hospital_id, child_id, mother_id, vaccine_id, scheduled_date, scheduled_time,
			type, status, assigned_staff_id, duration_minutes, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		a.ID, a.HospitalID, a.ChildID, a.MotherID, a.VaccineID, a.ScheduledDate, a.ScheduledTime,
		a.Type, a.Status, a.AssignedStaffID, a.DurationMinutes, a.Notes).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("hospital, child, mother, vaccine or staff member does not exist")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments SET vaccine_id=$2, scheduled_date=$3, scheduled_time=$4, type=$5, status=$6,
			assigned_staff_id=$7, duration_minutes=$8, notes=$9, reminder_sent=$10, completed_at=$11,
			outcome=$12, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.VaccineID, a.ScheduledDate, a.ScheduledTime, a.Type, a.Status,
		a.AssignedStaffID, a.DurationMinutes, a.Notes, a.ReminderSent, a.CompletedAt, a.Outcome)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("vaccine or staff member does not exist")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	qb := db.NewSearchQuery("appointments", apptCols)
	if f.HospitalID != nil {
		qb.Eq("hospital_id", *f.HospitalID)
	}
	if f.ChildID != nil {
		qb.Eq("child_id", *f.ChildID)
	}
	if f.MotherID != nil {
		qb.Eq("mother_id", *f.MotherID)
	}
	if f.Status != "" {
		qb.Eq("status", f.Status)
	}
	if f.Type != "" {
		qb.Eq("type", f.Type)
	}
	var from, to interface{}
	if f.From != nil {
		from = *f.From
	}
	if f.To != nil {
		to = *f.To
	}
	qb.Between("scheduled_date", from, to)
	qb.OrderBy("scheduled_date, scheduled_time")

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
