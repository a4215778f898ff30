package capacity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

var day = types.NewDate(2026, 10, 20)

func seedSlot(t *testing.T, conn *gorm.DB, date types.Date, maxCapacity, reserved int) {
	t.Helper()
	require.NoError(t, conn.Create(&models.CapacitySlot{
		Date:             date,
		MaxCapacity:      maxCapacity,
		ReservedCapacity: reserved,
	}).Error)
}

func TestTryReserveCreatesSlotWithDefaultCapacity(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger(conn, 50)
	ctx := context.Background()

	before, err := ledger.Read(ctx, day)
	require.NoError(t, err)
	assert.False(t, before.Seeded)
	assert.Equal(t, 50, before.MaxCapacity)

	slot, err := ledger.TryReserve(ctx, day, 3)
	require.NoError(t, err)
	assert.True(t, slot.Seeded)
	assert.Equal(t, 50, slot.MaxCapacity)
	assert.Equal(t, 3, slot.ReservedCapacity)
	assert.Equal(t, 47, slot.Remaining())

	var count int64
	require.NoError(t, conn.Model(&models.CapacitySlot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTryReserveRejectsOverbooking(t *testing.T) {
	conn := dbtest.Open(t)
	seedSlot(t, conn, day, 10, 8)
	ledger := NewLedger(conn, 50)
	ctx := context.Background()

	_, err := ledger.TryReserve(ctx, day, 3)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeCapacityExceeded, typed.Code())
	details := typed.Details().(map[string]any)
	assert.Equal(t, "2026-10-20", details["date"])
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 2, details["remaining"])

	slot, err := ledger.Read(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 8, slot.ReservedCapacity)

	slot, err = ledger.TryReserve(ctx, day, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, slot.ReservedCapacity)
	assert.Equal(t, 0, slot.Remaining())
}

func TestTryReserveZeroDefaultClosesUnseededDays(t *testing.T) {
	ledger := NewLedger(dbtest.Open(t), 0)
	_, err := ledger.TryReserve(context.Background(), day, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCapacityExceeded))
}

func TestTryReserveRejectsNonPositiveDelta(t *testing.T) {
	ledger := NewLedger(dbtest.Open(t), 50)
	_, err := ledger.TryReserve(context.Background(), day, 0)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.HasCode(ledger.Release(context.Background(), day, -1), pkgerrors.CodeValidation))
}

func TestConcurrentReservationsNeverOverbook(t *testing.T) {
	client := dbtest.Client(t)
	seedSlot(t, client.DB(), day, 50, 48)
	ledger := NewLedger(client.DB(), 50)
	ctx := context.Background()

	const callers = 6
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- client.WithTx(ctx, func(tx *gorm.DB) error {
				_, err := ledger.WithTx(tx).TryReserve(ctx, day, 2)
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded, exceeded := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.HasCode(err, pkgerrors.CodeCapacityExceeded):
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, exceeded)

	slot, err := ledger.Read(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 50, slot.ReservedCapacity)
}

func TestReleaseReturnsCapacity(t *testing.T) {
	conn := dbtest.Open(t)
	seedSlot(t, conn, day, 10, 6)
	ledger := NewLedger(conn, 50)
	ctx := context.Background()

	require.NoError(t, ledger.Release(ctx, day, 4))
	slot, err := ledger.Read(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, slot.ReservedCapacity)

	err = ledger.Release(ctx, day, 5)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	err = ledger.Release(ctx, day.AddDays(1), 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestEnsureSlotsLeavesExistingRowsAlone(t *testing.T) {
	conn := dbtest.Open(t)
	seedSlot(t, conn, day.AddDays(1), 12, 5)
	ledger := NewLedger(conn, 50)
	ctx := context.Background()

	created, err := ledger.EnsureSlots(ctx, day, 3, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(2), created)

	again, err := ledger.EnsureSlots(ctx, day, 3, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again)

	snap, err := ledger.ReadRange(ctx, day, day.AddDays(3))
	require.NoError(t, err)
	assert.Equal(t, 40, snap.Slot(day).MaxCapacity)
	assert.Equal(t, 12, snap.Slot(day.AddDays(1)).MaxCapacity)
	assert.Equal(t, 5, snap.Slot(day.AddDays(1)).ReservedCapacity)
	assert.True(t, snap.Slot(day.AddDays(2)).Seeded)
	unseeded := snap.Slot(day.AddDays(3))
	assert.False(t, unseeded.Seeded)
	assert.Equal(t, 50, unseeded.MaxCapacity)
	assert.True(t, snap.Fits(day.AddDays(1), 7))
	assert.False(t, snap.Fits(day.AddDays(1), 8))
}

func TestSetMaxCapacity(t *testing.T) {
	conn := dbtest.Open(t)
	seedSlot(t, conn, day, 10, 6)
	ledger := NewLedger(conn, 50)
	ctx := context.Background()

	slot, err := ledger.SetMaxCapacity(ctx, day, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, slot.MaxCapacity)
	assert.Equal(t, 6, slot.ReservedCapacity)

	_, err = ledger.SetMaxCapacity(ctx, day, 5)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	fresh, err := ledger.SetMaxCapacity(ctx, day.AddDays(1), 0)
	require.NoError(t, err)
	assert.True(t, fresh.Seeded)
	assert.Equal(t, 0, fresh.MaxCapacity)

	_, err = ledger.SetMaxCapacity(ctx, day, -1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

// The bound must be checked by the UPDATE itself. A SELECT of reserved_capacity followed by an
// unconditional write would pass the concurrency test above on a single-connection pool.
func TestTryReserveChecksBoundInsideTheUpdate(t *testing.T) {
	conn := dbtest.Open(t)
	seedSlot(t, conn, day, 10, 8)
	ledger := NewLedger(conn, 50)
	rec := dbtest.Record(t, conn)

	_, err := ledger.TryReserve(context.Background(), day, 2)
	require.NoError(t, err)
	_, err = ledger.TryReserve(context.Background(), day, 1)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCapacityExceeded))

	var ops []string
	for _, stmt := range rec.Statements() {
		ops = append(ops, stmt.Op)
		switch stmt.Op {
		case "create":
			assert.Contains(t, stmt.SQL, "ON CONFLICT")
		case "update":
			assert.Contains(t, stmt.SQL, "reserved_capacity + ? <= max_capacity")
		}
	}
	// insert-if-missing, guarded update, then the read that reports the result
	assert.Equal(t, []string{"create", "update", "query", "create", "update", "query"}, ops)
}
