package models

import (
	"time"

	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// CapacitySlot is the production quota for one calendar day.
type CapacitySlot struct {
	Date             types.Date `gorm:"column:date;primaryKey"`
	MaxCapacity      int        `gorm:"column:max_capacity;not null;check:chk_capacity_slots_max_non_negative,max_capacity >= 0"`
	ReservedCapacity int        `gorm:"column:reserved_capacity;not null;default:0;check:chk_capacity_slots_reserved_bounds,reserved_capacity >= 0 AND reserved_capacity <= max_capacity"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Available is the capacity still free on the day.
func (s CapacitySlot) Available() int {
	if remaining := s.MaxCapacity - s.ReservedCapacity; remaining > 0 {
		return remaining
	}
	return 0
}
