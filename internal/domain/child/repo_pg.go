package child

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const childCols = `id, parent_id, name, date_of_birth, gender, birth_weight, birth_height,
	vaccination_status, allergies, special_needs, active, created_at, updated_at`

var childSortColumns = map[string]string{
	"name":    "name",
	"dob":     "date_of_birth",
	"created": "created_at",
}

func scanChild(row pgx.Row) (*Child, error) {
	var c Child
	err := row.Scan(&c.ID, &c.ParentID, &c.Name, &c.DateOfBirth, &c.Gender, &c.BirthWeight, &c.BirthHeight,
		&c.VaccinationStatus, &c.Allergies, &c.SpecialNeeds, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("child")
	}
	return &c, err
}

func collect(rows pgx.Rows) ([]*Child, error) {
	defer rows.Close()
	var items []*Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, c *Child) error {
	c.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO children (id, parent_id, name, date_of_birth, gender, birth_weight, birth_height,
			vaccination_status, allergies, special_needs, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		c.ID, c.ParentID, c.Name, c.DateOfBirth, c.Gender, c.BirthWeight, c.BirthHeight,
		c.VaccinationStatus, c.Allergies, c.SpecialNeeds, c.Active).Scan(&c.CreatedAt, &c.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("parent does not exist")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Child, error) {
	return scanChild(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+childCols+` FROM children WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Child) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE children SET name=$2, date_of_birth=$3, gender=$4, birth_weight=$5, birth_height=$6,
			allergies=$7, special_needs=$8, active=$9, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.DateOfBirth, c.Gender, c.BirthWeight, c.BirthHeight,
		c.Allergies, c.SpecialNeeds, c.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("child")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM children WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("child")
	}
	return nil
}

func (r *repoPG) ParentOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var parent uuid.UUID
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT parent_id FROM children WHERE id = $1`, id).Scan(&parent)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.NotFound("child")
	}
	return parent, err
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Child, int, error) {
	qb := db.NewSearchQuery("children", childCols)
	qb.Eq("active", true)
	if f.ParentID != nil {
		qb.Eq("parent_id", *f.ParentID)
	}
	if f.ParentIDs != nil {
		qb.Add(fmt.Sprintf("parent_id = ANY($%d)", qb.Idx()), f.ParentIDs)
	}
	if f.Status != "" {
		qb.Eq("vaccination_status", f.Status)
	}
	if f.Gender != "" {
		qb.Eq("gender", f.Gender)
	}
	var from, before interface{}
	if f.BornFrom != nil {
		from = *f.BornFrom
	}
	if f.BornBefore != nil {
		before = *f.BornBefore
	}
	qb.Between("date_of_birth", from, before)
	qb.Contains(f.Search, "name")
	qb.OrderBy("date_of_birth DESC")

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

func (r *repoPG) ListByParents(ctx context.Context, parentIDs []uuid.UUID) ([]*Child, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+childCols+` FROM children
		WHERE parent_id = ANY($1) AND active
		ORDER BY date_of_birth`, parentIDs)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status schedule.Status) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE children SET vaccination_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("child")
	}
	return nil
}

func (r *repoPG) CountByStatus(ctx context.Context) (StatusCounts, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT vaccination_status, COUNT(*) FROM children
		WHERE active GROUP BY vaccination_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := StatusCounts{}
	for rows.Next() {
		var status schedule.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) CountBornBetween(ctx context.Context, from, before time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM children
		WHERE active AND date_of_birth >= $1 AND date_of_birth < $2`, from, before).Scan(&n)
	return n, err
}

const growthCols = `id, child_id, date_recorded, age_months, weight, height, head_circumference,
	notes, recorded_by, created_at`

func (r *repoPG) CreateGrowthRecord(ctx context.Context, g *GrowthRecord) error {
	g.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO growth_records (id, child_id, date_recorded, age_months, weight, height,
			head_circumference, notes, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		g.ID, g.ChildID, g.DateRecorded, g.AgeMonths, g.Weight, g.Height,
		g.HeadCircumference, g.Notes, g.RecordedBy).Scan(&g.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("child")
	}
	return err
}

func (r *repoPG) ListGrowthRecords(ctx context.Context, childID uuid.UUID) ([]*GrowthRecord, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+growthCols+` FROM growth_records
		WHERE child_id = $1
		ORDER BY date_recorded DESC`, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*GrowthRecord{}
	for rows.Next() {
		var g GrowthRecord
		if err := rows.Scan(&g.ID, &g.ChildID, &g.DateRecorded, &g.AgeMonths, &g.Weight, &g.Height,
			&g.HeadCircumference, &g.Notes, &g.RecordedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &g)
	}
	return items, rows.Err()
}
