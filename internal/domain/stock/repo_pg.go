package stock

import (
	"context"
	"errors"
	"fmt"

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

const lotCols = `id, hospital_id, vaccine_id, batch_number, quantity, unit, minimum_stock, maximum_stock,
	status, days_of_supply, expiry_date, supplier, delivery_date, usage_rate, created_at, updated_at`

func scanLot(row pgx.Row) (*Lot, error) {
	var l Lot
	err := row.Scan(&l.ID, &l.HospitalID, &l.VaccineID, &l.BatchNumber, &l.Quantity, &l.Unit, &l.MinimumStock, &l.MaximumStock,
		&l.Status, &l.DaysOfSupply, &l.ExpiryDate, &l.Supplier, &l.DeliveryDate, &l.UsageRate, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("stock lot")
	}
	return &l, err
}

func collect(rows pgx.Rows) ([]*Lot, error) {
	defer rows.Close()
	var items []*Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, l *Lot) error {
	l.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vaccine_stock (id, hospital_id, vaccine_id, batch_number, quantity, unit, minimum_stock,
			maximum_stock, status, days_of_supply, expiry_date, supplier, delivery_date, usage_rate)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		l.ID, l.HospitalID, l.VaccineID, l.BatchNumber, l.Quantity, l.Unit, l.MinimumStock,
		l.MaximumStock, l.Status, l.DaysOfSupply, l.ExpiryDate, l.Supplier, l.DeliveryDate, l.UsageRate,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("hospital or vaccine does not exist")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Lot, error) {
	return scanLot(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+lotCols+` FROM vaccine_stock WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Lot, error) {
	return scanLot(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+lotCols+` FROM vaccine_stock WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, l *Lot) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE vaccine_stock SET batch_number=$2, quantity=$3, unit=$4, minimum_stock=$5, maximum_stock=$6,
			status=$7, days_of_supply=$8, expiry_date=$9, supplier=$10, delivery_date=$11, usage_rate=$12,
			updated_at=NOW()
		WHERE id = $1`,
		l.ID, l.BatchNumber, l.Quantity, l.Unit, l.MinimumStock, l.MaximumStock,
		l.Status, l.DaysOfSupply, l.ExpiryDate, l.Supplier, l.DeliveryDate, l.UsageRate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("stock lot")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM vaccine_stock WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("stock lot")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Lot, int, error) {
	qb := db.NewSearchQuery("vaccine_stock", lotCols)
	if f.HospitalID != nil {
		qb.Eq("hospital_id", *f.HospitalID)
	}
	if f.VaccineID != nil {
		qb.Eq("vaccine_id", *f.VaccineID)
	}
	if f.Status != "" {
		qb.Eq("status", f.Status)
	}
	if f.ExpiringBefore != nil {
		qb.Between("expiry_date", nil, *f.ExpiringBefore)
	}
	qb.OrderBy("expiry_date")

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

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Lot, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+lotCols+` FROM vaccine_stock WHERE hospital_id = $1 ORDER BY expiry_date`, hospitalID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListByStatus(ctx context.Context, hospitalID *uuid.UUID, statuses []Status) ([]*Lot, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	qb := db.NewSearchQuery("vaccine_stock", lotCols)
	qb.Add(fmt.Sprintf("status = ANY($%d)", qb.Idx()), names)
	if hospitalID != nil {
		qb.Eq("hospital_id", *hospitalID)
	}
	qb.OrderBy("quantity, expiry_date")
	rows, err := db.Conn(ctx, r.pool).Query(ctx, qb.DataSQL(1000, 0), qb.DataArgs(1000, 0)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}
