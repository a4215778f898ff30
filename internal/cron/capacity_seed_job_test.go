package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

func TestCapacitySeedJobFillsHorizonOnce(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := capacity.NewLedger(conn, 50)
	ctx := context.Background()
	today := types.NewDate(2026, 10, 19)

	_, err := ledger.TryReserve(ctx, today.AddDays(2), 7)
	require.NoError(t, err)

	job, err := NewCapacitySeedJob(CapacitySeedJobParams{
		Logger:          logger.Nop(),
		Ledger:          ledger,
		Clock:           clock.NewFixed(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)),
		Policy:          fulfillment.Policy{CutoffHour: 18, HorizonDays: 5, StockedOffsetDays: 1, Location: time.UTC},
		DefaultCapacity: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, "capacity-seed", job.Name())

	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	var slots []models.CapacitySlot
	require.NoError(t, conn.Order("date ASC").Find(&slots).Error)
	require.Len(t, slots, 6)
	assert.Equal(t, today, slots[0].Date)
	assert.Equal(t, today.AddDays(5), slots[5].Date)
	assert.Equal(t, 40, slots[0].MaxCapacity)
	assert.Equal(t, 50, slots[2].MaxCapacity, "existing rows keep their values")
	assert.Equal(t, 7, slots[2].ReservedCapacity)
}

func TestNewCapacitySeedJobValidatesParams(t *testing.T) {
	_, err := NewCapacitySeedJob(CapacitySeedJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
	_, err = NewCapacitySeedJob(CapacitySeedJobParams{
		Logger:          logger.Nop(),
		Ledger:          capacity.NewLedger(dbtest.Open(t), 50),
		Clock:           clock.System{},
		DefaultCapacity: -1,
	})
	assert.Error(t, err)
}
