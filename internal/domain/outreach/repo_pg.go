package outreach

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

const visitCols = `id, health_worker_id, mother_id, child_id, type, scheduled_date, scheduled_time,
	duration_minutes, sub_county, ward, village, latitude, longitude, purpose, priority, status,
	completed_at, notes, outcome, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var (
		v                     Visit
		subCounty, ward, vill *string
	)
	err := row.Scan(&v.ID, &v.HealthWorkerID, &v.MotherID, &v.ChildID, &v.Type, &v.ScheduledDate, &v.ScheduledTime,
		&v.DurationMinutes, &subCounty, &ward, &vill, &v.Location.Latitude, &v.Location.Longitude,
		&v.Purpose, &v.Priority, &v.Status, &v.CompletedAt, &v.Notes, &v.Outcome, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("visit")
	}
	if err != nil {
		return nil, err
	}
	v.Location.SubCounty, v.Location.Ward, v.Location.Village = deref(subCounty), deref(ward), deref(vill)
	v.LocationLabel = v.Location.Label()
	return &v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *repoPG) CreateVisit(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	loc := v.Location
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO chw_visits (id, health_worker_id, mother_id, child_id, type, scheduled_date, scheduled_time,
			duration_minutes, sub_county, ward, village, latitude, longitude, purpose, priority, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`,
		v.ID, v.HealthWorkerID, v.MotherID, v.ChildID, v.Type, v.ScheduledDate, v.ScheduledTime,
		v.DurationMinutes, nullable(loc.SubCounty), nullable(loc.Ward), nullable(loc.Village), loc.Latitude, loc.Longitude,
		v.Purpose, v.Priority, v.Status, v.Notes).Scan(&v.CreatedAt, &v.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("health worker, mother or child does not exist")
	}
	return err
}

func (r *repoPG) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+visitCols+` FROM chw_visits WHERE id = $1`, id))
}

func (r *repoPG) UpdateVisit(ctx context.Context, v *Visit) error {
	loc := v.Location
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE chw_visits SET type=$2, scheduled_date=$3, scheduled_time=$4, duration_minutes=$5,
			sub_county=$6, ward=$7, village=$8, latitude=$9, longitude=$10, purpose=$11, priority=$12,
			status=$13, completed_at=$14, notes=$15, outcome=$16, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.Type, v.ScheduledDate, v.ScheduledTime, v.DurationMinutes,
		nullable(loc.SubCounty), nullable(loc.Ward), nullable(loc.Village), loc.Latitude, loc.Longitude,
		v.Purpose, v.Priority, v.Status, v.CompletedAt, v.Notes, v.Outcome)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("visit")
	}
	return nil
}

// maxVisits caps one ListVisits page.
const maxVisits = 500

func visitQuery(cols string, f VisitFilter) *db.SearchQuery {
	qb := db.NewSearchQuery("chw_visits", cols)
	qb.Eq("health_worker_id", f.HealthWorkerID)
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
	qb.Between("scheduled_date", from, to)
	return qb
}

func (r *repoPG) ListVisits(ctx context.Context, f VisitFilter) ([]*Visit, error) {
	qb := visitQuery(visitCols, f)
	qb.OrderBy("scheduled_date, scheduled_time")
	rows, err := db.Conn(ctx, r.pool).Query(ctx, qb.DataSQL(maxVisits, 0), qb.DataArgs(maxVisits, 0)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) CountVisits(ctx context.Context, chwID uuid.UUID, status VisitStatus, from, to time.Time) (int, error) {
	qb := visitQuery("id", VisitFilter{HealthWorkerID: chwID, Status: status, From: &from, To: &to})
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&n)
	return n, err
}

const reportCols = `id, health_worker_id, report_date, sub_county, ward, village, mothers_visited,
	vaccinations_given, follow_ups, new_registrations, defaulters_contacted, challenges, achievements,
	notes, next_day_plan, status, submitted_at, created_at, updated_at`

func scanReport(row pgx.Row) (*FieldReport, error) {
	var fr FieldReport
	a := &fr.Activities
	err := row.Scan(&fr.ID, &fr.HealthWorkerID, &fr.ReportDate,
		&fr.Location.SubCounty, &fr.Location.Ward, &fr.Location.Village,
		&a.MothersVisited, &a.VaccinationsGiven, &a.FollowUps, &a.NewRegistrations, &a.DefaultersContacted,
		&fr.Challenges, &fr.Achievements, &fr.Notes, &fr.NextDayPlan, &fr.Status, &fr.SubmittedAt,
		&fr.CreatedAt, &fr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("field report")
	}
	return &fr, err
}

func (r *repoPG) CreateReport(ctx context.Context, fr *FieldReport) error {
	fr.ID = uuid.New()
	a := fr.Activities
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO field_reports (id, health_worker_id, report_date, sub_county, ward, village,
			mothers_visited, vaccinations_given, follow_ups, new_registrations, defaulters_contacted,
			challenges, achievements, notes, next_day_plan, status, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`,
		fr.ID, fr.HealthWorkerID, fr.ReportDate, fr.Location.SubCounty, fr.Location.Ward, fr.Location.Village,
		a.MothersVisited, a.VaccinationsGiven, a.FollowUps, a.NewRegistrations, a.DefaultersContacted,
		fr.Challenges, fr.Achievements, fr.Notes, fr.NextDayPlan, fr.Status, fr.SubmittedAt).
		Scan(&fr.CreatedAt, &fr.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("health worker does not exist")
	}
	return err
}

func (r *repoPG) ListReports(ctx context.Context, chwID uuid.UUID) ([]*FieldReport, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+reportCols+` FROM field_reports WHERE health_worker_id = $1 ORDER BY report_date DESC, created_at DESC`,
		chwID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*FieldReport{}
	for rows.Next() {
		fr, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, fr)
	}
	return items, rows.Err()
}
