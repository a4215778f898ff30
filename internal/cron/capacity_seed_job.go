package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

type CapacitySeedJobParams struct {
	Logger          *logger.Logger
	Ledger          capacity.Ledger
	Clock           clock.Clock
	Policy          fulfillment.Policy
	DefaultCapacity int
}

// NewCapacitySeedJob materialises a slot row for every day of the scheduling horizon so
// admins can see and tune upcoming days. Days that already have a row keep their values.
func NewCapacitySeedJob(params CapacitySeedJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("capacity ledger required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.DefaultCapacity < 0 {
		return nil, fmt.Errorf("default capacity must not be negative")
	}
	return &capacitySeedJob{
		logg:            params.Logger,
		ledger:          params.Ledger,
		clock:           params.Clock,
		policy:          params.Policy,
		defaultCapacity: params.DefaultCapacity,
	}, nil
}

type capacitySeedJob struct {
	logg            *logger.Logger
	ledger          capacity.Ledger
	clock           clock.Clock
	policy          fulfillment.Policy
	defaultCapacity int
}

func (j *capacitySeedJob) Name() string { return "capacity-seed" }

func (j *capacitySeedJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	today := j.policy.Today(now)
	days := today.DaysUntil(j.policy.HorizonEnd(now)) + 1

	created, err := j.ledger.EnsureSlots(ctx, today, days, j.defaultCapacity)
	if err != nil {
		return fmt.Errorf("capacity seed: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"from":          today.String(),
		"days":          days,
		"max_capacity":  j.defaultCapacity,
		"slots_created": created,
	})
	j.logg.Info(logCtx, "capacity slots seeded")
	return nil
}
