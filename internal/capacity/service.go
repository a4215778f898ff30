package capacity

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

const maxListRangeDays = 366

// SlotDTO is the admin view of one production day.
type SlotDTO struct {
	Date             types.Date `json:"date"`
	MaxCapacity      int        `json:"max_capacity"`
	ReservedCapacity int        `json:"reserved_capacity"`
	Available        int        `json:"available"`
	Seeded           bool       `json:"seeded"`
}

func NewSlotDTO(s Slot) SlotDTO {
	return SlotDTO{
		Date:             s.Date,
		MaxCapacity:      s.MaxCapacity,
		ReservedCapacity: s.ReservedCapacity,
		Available:        s.Remaining(),
		Seeded:           s.Seeded,
	}
}

// Service is the admin capacity interface. It reads slots and changes max_capacity only;
// reserved_capacity is owned by order placement.
type Service interface {
	ListSlots(ctx context.Context, from, to types.Date) ([]SlotDTO, error)
	UpdateMaxCapacity(ctx context.Context, date types.Date, maxCapacity int) (*SlotDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB     txRunner
	Ledger Ledger
	Outbox outbox.Emitter
	Logger *logger.Logger
}

type service struct {
	db     txRunner
	ledger Ledger
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("capacity ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:     params.DB,
		ledger: params.Ledger,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

// ListSlots returns every day in [from, to], filling unseeded days with the default capacity.
func (s *service) ListSlots(ctx context.Context, from, to types.Date) ([]SlotDTO, error) {
	if from.IsZero() || to.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to are required")
	}
	if to.Before(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from").
			WithDetails(map[string]any{"from": from.String(), "to": to.String()})
	}
	if from.DaysUntil(to) >= maxListRangeDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date range too large").
			WithDetails(map[string]any{"max_days": maxListRangeDays})
	}

	snap, err := s.ledger.ReadRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]SlotDTO, 0, from.DaysUntil(to)+1)
	for day := from; !day.After(to); day = day.AddDays(1) {
		out = append(out, NewSlotDTO(snap.Slot(day)))
	}
	return out, nil
}

func (s *service) UpdateMaxCapacity(ctx context.Context, date types.Date, maxCapacity int) (*SlotDTO, error) {
	if date.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date is required")
	}

	var updated Slot
	var previous Slot
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		before, err := ledger.Read(ctx, date)
		if err != nil {
			return err
		}
		previous = before

		slot, err := ledger.SetMaxCapacity(ctx, date, maxCapacity)
		if err != nil {
			return err
		}
		updated = slot

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCapacityMaxUpdated,
			AggregateType: enums.AggregateCapacitySlot,
			AggregateID:   date.String(),
			Source:        "admin",
			Data: payloads.CapacityMaxUpdatedEvent{
				Date:             date,
				PreviousMax:      before.MaxCapacity,
				MaxCapacity:      slot.MaxCapacity,
				ReservedCapacity: slot.ReservedCapacity,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithDeliveryDate(ctx, date.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"previous_max": previous.MaxCapacity,
		"max_capacity": updated.MaxCapacity,
		"reserved":     updated.ReservedCapacity,
	})
	s.logg.Info(logCtx, "capacity max updated")

	dto := NewSlotDTO(updated)
	return &dto, nil
}
