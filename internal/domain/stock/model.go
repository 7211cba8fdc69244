package stock

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Unit string

const (
	UnitVials Unit = "vials"
	UnitDoses Unit = "doses"
	UnitBoxes Unit = "boxes"
)

var validUnits = map[Unit]bool{UnitVials: true, UnitDoses: true, UnitBoxes: true}

type Status string

const (
	StatusAdequate   Status = "adequate"
	StatusLow        Status = "low"
	StatusCritical   Status = "critical"
	StatusOutOfStock Status = "out_of_stock"
)

var validStatuses = map[Status]bool{
	StatusAdequate: true, StatusLow: true, StatusCritical: true, StatusOutOfStock: true,
}

const (
	DefaultMinimumStock = 50
	DefaultUsageRate    = 5.0
	// ExpiryWindow is how far ahead a lot counts as expiring soon.
	ExpiryWindow = 30 * 24 * time.Hour
)

// Lot is one delivered batch of a vaccine held by a hospital.
type Lot struct {
	ID           uuid.UUID `db:"id" json:"id"`
	HospitalID   uuid.UUID `db:"hospital_id" json:"hospital_id"`
	VaccineID    uuid.UUID `db:"vaccine_id" json:"vaccine_id"`
	BatchNumber  string    `db:"batch_number" json:"batch_number"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Unit         Unit      `db:"unit" json:"unit"`
	MinimumStock int       `db:"minimum_stock" json:"minimum_stock"`
	MaximumStock int       `db:"maximum_stock" json:"maximum_stock"`
	Status       Status    `db:"status" json:"status"`
	DaysOfSupply int       `db:"days_of_supply" json:"days_of_supply"`
	ExpiryDate   time.Time `db:"expiry_date" json:"expiry_date"`
	Supplier     *string   `db:"supplier" json:"supplier,omitempty"`
	DeliveryDate time.Time `db:"delivery_date" json:"delivery_date"`
	UsageRate    float64   `db:"usage_rate" json:"usage_rate"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StatusFor grades a quantity against the minimum stock level: empty is out
// of stock, up to 30% of the minimum is critical and up to 70% is low.
func StatusFor(quantity, minimum int) Status {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity*10 <= minimum*3:
		return StatusCritical
	case quantity*10 <= minimum*7:
		return StatusLow
	default:
		return StatusAdequate
	}
}

// DaysOfSupply is the number of whole days quantity lasts at usage per day.
func DaysOfSupply(quantity int, usage float64) int {
	if usage <= 0 {
		usage = DefaultUsageRate
	}
	return int(math.Floor(float64(quantity) / usage))
}

func (l *Lot) recompute() {
	l.Status = StatusFor(l.Quantity, l.MinimumStock)
	l.DaysOfSupply = DaysOfSupply(l.Quantity, l.UsageRate)
}

// ExpiresWithin reports whether the lot expires before now+window.
func (l *Lot) ExpiresWithin(now time.Time, window time.Duration) bool {
	return l.ExpiryDate.Before(now.Add(window))
}

type Operation string

const (
	OperationAdd    Operation = "add"
	OperationRemove Operation = "remove"
)

// Adjustment changes the quantity of a lot.
type Adjustment struct {
	Operation Operation `json:"operation"`
	Quantity  int       `json:"quantity"`
}

type Filter struct {
	HospitalID *uuid.UUID
	VaccineID  *uuid.UUID
	Status     Status
	// ExpiringBefore keeps lots whose expiry date is earlier.
	ExpiringBefore *time.Time
}

// Summary describes a hospital's stock position.
type Summary struct {
	HospitalID uuid.UUID      `json:"hospital_id"`
	TotalLots  int            `json:"total_lots"`
	TotalDoses int            `json:"total_doses"`
	ByStatus   map[Status]int `json:"by_status"`
	Expiring   []*Lot         `json:"expiring"`
}
