package fulfillment

import (
	"time"

	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// Policy is the production calendar: when the kitchen stops taking next-day work, how far
// ahead orders may be scheduled, and which zone defines a calendar day.
type Policy struct {
	CutoffHour        int
	HorizonDays       int
	StockedOffsetDays int
	Location          *time.Location
}

func PolicyFromConfig(cfg config.SchedulingConfig) Policy {
	return Policy{
		CutoffHour:        cfg.CutoffHour,
		HorizonDays:       cfg.HorizonDays,
		StockedOffsetDays: cfg.StockedOffsetDays,
		Location:          cfg.Location(),
	}
}

func DefaultPolicy() Policy {
	return Policy{CutoffHour: 18, HorizonDays: 30, StockedOffsetDays: 1, Location: time.UTC}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Today is the calendar day now falls on in the policy zone.
func (p Policy) Today(now time.Time) types.Date {
	return types.DateOf(now, p.location())
}

// HorizonEnd is the last day an order may be scheduled for.
func (p Policy) HorizonEnd(now time.Time) types.Date {
	return p.Today(now).AddDays(p.HorizonDays)
}

// CutoffFloor is the first production day open to an order received at now: tomorrow, or
// the day after when the order arrives at or after the cutoff hour.
func (p Policy) CutoffFloor(now time.Time) types.Date {
	today := p.Today(now)
	if now.In(p.location()).Hour() >= p.CutoffHour {
		return today.AddDays(2)
	}
	return today.AddDays(1)
}
