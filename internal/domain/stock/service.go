package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/vaccine"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

type Hospitals interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Vaccines interface {
	GetVaccine(ctx context.Context, id uuid.UUID) (*vaccine.Vaccine, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo      Repository
	hospitals Hospitals
	vaccines  Vaccines
	tx        Transactor
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, hospitals Hospitals, vaccines Vaccines, tx Transactor, opts ...Option) *Service {
	s := &Service{repo: repo, hospitals: hospitals, vaccines: vaccines, tx: tx, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) validate(l *Lot) error {
	if l.Quantity < 0 {
		return apperr.Invalid("Quantity cannot be negative")
	}
	if l.Unit == "" {
		l.Unit = UnitDoses
	}
	if !validUnits[l.Unit] {
		return apperr.Invalid("invalid unit: %s", l.Unit)
	}
	if l.MinimumStock < 0 || l.MaximumStock < 0 {
		return apperr.Invalid("stock levels cannot be negative")
	}
	if l.MaximumStock < l.MinimumStock {
		return apperr.Invalid("maximum stock cannot be below minimum stock")
	}
	if l.UsageRate <= 0 {
		l.UsageRate = DefaultUsageRate
	}
	l.BatchNumber = strings.TrimSpace(l.BatchNumber)
	if l.BatchNumber == "" {
		return apperr.Invalid("batch number is required")
	}
	l.recompute()
	return nil
}

// CreateLot records a delivery. Missing levels, batch number and delivery
// date are filled in; the expiry date must lie in the future.
func (s *Service) CreateLot(ctx context.Context, l *Lot) error {
	if l.HospitalID == uuid.Nil || l.VaccineID == uuid.Nil || l.ExpiryDate.IsZero() {
		return apperr.Invalid("Hospital, vaccine, quantity and expiry date are required")
	}
	now := s.now()
	if !l.ExpiryDate.After(now) {
		return apperr.Invalid("Expiry date must be in the future")
	}
	if l.MinimumStock == 0 {
		l.MinimumStock = DefaultMinimumStock
	}
	if l.MaximumStock == 0 {
		l.MaximumStock = max(l.MinimumStock*3, l.Quantity*2, 100)
	}
	if l.BatchNumber == "" {
		l.BatchNumber = fmt.Sprintf("BATCH-%d", now.UnixMilli())
	}
	if l.DeliveryDate.IsZero() {
		l.DeliveryDate = now
	}
	if err := s.validate(l); err != nil {
		return err
	}
	ok, err := s.hospitals.Exists(ctx, l.HospitalID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("hospital %s does not exist", l.HospitalID)
	}
	if _, err := s.vaccines.GetVaccine(ctx, l.VaccineID); err != nil {
		return err
	}
	return s.repo.Create(ctx, l)
}

func (s *Service) GetLot(ctx context.Context, id uuid.UUID) (*Lot, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateLot(ctx context.Context, l *Lot) error {
	existing, err := s.repo.GetByID(ctx, l.ID)
	if err != nil {
		return err
	}
	l.HospitalID, l.VaccineID = existing.HospitalID, existing.VaccineID
	if err := s.validate(l); err != nil {
		return err
	}
	return s.repo.Update(ctx, l)
}

func (s *Service) DeleteLot(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListLots(ctx context.Context, f Filter, limit, offset int) ([]*Lot, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Invalid("invalid stock status: %s", f.Status)
	}
	return s.repo.Search(ctx, f, limit, offset)
}

// Adjust adds to or removes from a lot under a row lock. Removing more than
// is held empties the lot.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, adj Adjustment) (*Lot, error) {
	if adj.Quantity <= 0 {
		return nil, apperr.Invalid("adjustment quantity must be positive")
	}
	if adj.Operation != OperationAdd && adj.Operation != OperationRemove {
		return nil, apperr.Invalid("operation must be add or remove")
	}
	var lot *Lot
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if adj.Operation == OperationAdd {
			l.Quantity += adj.Quantity
		} else {
			l.Quantity = max(l.Quantity-adj.Quantity, 0)
		}
		l.recompute()
		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}
		lot = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// Summary counts a hospital's lots per status and lists those expiring
// within ExpiryWindow.
func (s *Service) Summary(ctx context.Context, hospitalID uuid.UUID) (*Summary, error) {
	lots, err := s.repo.ListByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sum := &Summary{
		HospitalID: hospitalID,
		ByStatus:   map[Status]int{StatusAdequate: 0, StatusLow: 0, StatusCritical: 0, StatusOutOfStock: 0},
		Expiring:   []*Lot{},
	}
	for _, l := range lots {
		sum.TotalLots++
		sum.TotalDoses += l.Quantity
		sum.ByStatus[l.Status]++
		if l.ExpiresWithin(now, ExpiryWindow) {
			sum.Expiring = append(sum.Expiring, l)
		}
	}
	return sum, nil
}

// Critical lists lots that are critical or out of stock, optionally for one
// hospital.
func (s *Service) Critical(ctx context.Context, hospitalID *uuid.UUID) ([]*Lot, error) {
	return s.repo.ListByStatus(ctx, hospitalID, []Status{StatusCritical, StatusOutOfStock})
}
