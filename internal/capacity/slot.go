package capacity

import (
	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// Slot is the capacity of one production day. Seeded is false when no row exists yet and
// the values come from the default capacity policy.
type Slot struct {
	Date             types.Date
	MaxCapacity      int
	ReservedCapacity int
	Seeded           bool
}

// Remaining is the quantity that can still be reserved on the day.
func (s Slot) Remaining() int {
	if r := s.MaxCapacity - s.ReservedCapacity; r > 0 {
		return r
	}
	return 0
}

// Fits reports whether qty more units can be produced on the day. The comparison is
// against the remaining room so a huge qty cannot wrap around.
func (s Slot) Fits(qty int) bool {
	return qty <= s.MaxCapacity-s.ReservedCapacity
}

func slotFromModel(m models.CapacitySlot) Slot {
	return Slot{
		Date:             m.Date,
		MaxCapacity:      m.MaxCapacity,
		ReservedCapacity: m.ReservedCapacity,
		Seeded:           true,
	}
}

func defaultSlot(date types.Date, defaultCapacity int) Slot {
	return Slot{Date: date, MaxCapacity: defaultCapacity}
}

// Snapshot is a point-in-time copy of a date range, read once per estimate.
type Snapshot struct {
	slots           map[types.Date]Slot
	defaultCapacity int
}

func NewSnapshot(slots []Slot, defaultCapacity int) Snapshot {
	byDate := make(map[types.Date]Slot, len(slots))
	for _, s := range slots {
		byDate[s.Date] = s
	}
	return Snapshot{slots: byDate, defaultCapacity: defaultCapacity}
}

// Slot returns the stored slot for date, or the default-capacity slot when none exists.
func (s Snapshot) Slot(date types.Date) Slot {
	if slot, ok := s.slots[date]; ok {
		return slot
	}
	return defaultSlot(date, s.defaultCapacity)
}

func (s Snapshot) Fits(date types.Date, qty int) bool {
	return s.Slot(date).Fits(qty)
}
