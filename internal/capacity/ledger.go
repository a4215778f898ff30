package capacity

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// Ledger is the only writer of capacity_slots.reserved_capacity. Every mutation is a single
// conditional statement, so two transactions racing on the same date cannot both pass the
// bound check.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Read(ctx context.Context, date types.Date) (Slot, error)
	ReadRange(ctx context.Context, from, to types.Date) (Snapshot, error)
	TryReserve(ctx context.Context, date types.Date, delta int) (Slot, error)
	Release(ctx context.Context, date types.Date, delta int) error
	EnsureSlots(ctx context.Context, from types.Date, days, maxCapacity int) (int64, error)
	SetMaxCapacity(ctx context.Context, date types.Date, maxCapacity int) (Slot, error)
}

type ledger struct {
	db              *gorm.DB
	defaultCapacity int
	now             func() time.Time
}

// NewLedger builds a ledger. defaultCapacity applies to days with no slot row.
func NewLedger(db *gorm.DB, defaultCapacity int) Ledger {
	return &ledger{db: db, defaultCapacity: defaultCapacity, now: time.Now}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx, defaultCapacity: l.defaultCapacity, now: l.now}
}

func (l *ledger) Read(ctx context.Context, date types.Date) (Slot, error) {
	var row models.CapacitySlot
	err := l.db.WithContext(ctx).Where("date = ?", date).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return defaultSlot(date, l.defaultCapacity), nil
		}
		return Slot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read capacity slot")
	}
	return slotFromModel(row), nil
}

func (l *ledger) ReadRange(ctx context.Context, from, to types.Date) (Snapshot, error) {
	var rows []models.CapacitySlot
	err := l.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read capacity range")
	}
	slots := make([]Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, slotFromModel(row))
	}
	return NewSnapshot(slots, l.defaultCapacity), nil
}

// TryReserve lazily creates the slot with the default capacity, then increments
// reserved_capacity only if the result stays within max_capacity.
func (l *ledger) TryReserve(ctx context.Context, date types.Date, delta int) (Slot, error) {
	if delta <= 0 {
		return Slot{}, invalidQuantity(delta)
	}
	if err := l.ensureSlot(ctx, date, l.defaultCapacity); err != nil {
		return Slot{}, err
	}

	res := l.db.WithContext(ctx).
		Model(&models.CapacitySlot{}).
		Where("date = ? AND reserved_capacity + ? <= max_capacity", date, delta).
		Updates(map[string]any{
			"reserved_capacity": gorm.Expr("reserved_capacity + ?", delta),
			"updated_at":        l.now().UTC(),
		})
	if res.Error != nil {
		return Slot{}, res.Error
	}
	current, err := l.Read(ctx, date)
	if err != nil {
		return Slot{}, err
	}
	if res.RowsAffected == 0 {
		return current, capacityExceeded(date, delta, current.Remaining())
	}
	return current, nil
}

// Release is the compensating decrement for a prior reservation.
func (l *ledger) Release(ctx context.Context, date types.Date, delta int) error {
	if delta <= 0 {
		return invalidQuantity(delta)
	}
	res := l.db.WithContext(ctx).
		Model(&models.CapacitySlot{}).
		Where("date = ? AND reserved_capacity >= ?", date, delta).
		Updates(map[string]any{
			"reserved_capacity": gorm.Expr("reserved_capacity - ?", delta),
			"updated_at":        l.now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "release exceeds reserved capacity").
			WithDetails(map[string]any{"date": date.String(), "requested": delta})
	}
	return nil
}

// EnsureSlots pre-creates days rows starting at from. Existing rows are left untouched.
func (l *ledger) EnsureSlots(ctx context.Context, from types.Date, days, maxCapacity int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	now := l.now().UTC()
	rows := make([]models.CapacitySlot, 0, days)
	for i := 0; i < days; i++ {
		rows = append(rows, models.CapacitySlot{
			Date:        from.AddDays(i),
			MaxCapacity: maxCapacity,
			UpdatedAt:   now,
		})
	}
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "seed capacity slots")
	}
	return res.RowsAffected, nil
}

// SetMaxCapacity changes the day's quota. It never drops the quota below what is already reserved.
func (l *ledger) SetMaxCapacity(ctx context.Context, date types.Date, maxCapacity int) (Slot, error) {
	if maxCapacity < 0 {
		return Slot{}, pkgerrors.New(pkgerrors.CodeValidation, "max capacity must not be negative").
			WithDetails(map[string]any{"max_capacity": maxCapacity})
	}
	if err := l.ensureSlot(ctx, date, maxCapacity); err != nil {
		return Slot{}, err
	}
	res := l.db.WithContext(ctx).
		Model(&models.CapacitySlot{}).
		Where("date = ? AND reserved_capacity <= ?", date, maxCapacity).
		Updates(map[string]any{
			"max_capacity": maxCapacity,
			"updated_at":   l.now().UTC(),
		})
	if res.Error != nil {
		return Slot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update max capacity")
	}
	current, err := l.Read(ctx, date)
	if err != nil {
		return Slot{}, err
	}
	if res.RowsAffected == 0 {
		return current, pkgerrors.New(pkgerrors.CodeConflict, "max capacity cannot be lower than reserved capacity").
			WithDetails(map[string]any{
				"date":              date.String(),
				"max_capacity":      maxCapacity,
				"reserved_capacity": current.ReservedCapacity,
			})
	}
	return current, nil
}

func (l *ledger) ensureSlot(ctx context.Context, date types.Date, maxCapacity int) error {
	row := models.CapacitySlot{Date: date, MaxCapacity: maxCapacity, UpdatedAt: l.now().UTC()}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return err
	}
	return nil
}
