package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
)

// DLQRepository stores outbox rows the publisher gave up on, with the reason and last error.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records a dead letter in the publisher's transaction, so the outbox row is parked
// only if the dead letter is written too.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !entry.ErrorReason.IsValid() {
		return fmt.Errorf("unknown dlq reason %q", entry.ErrorReason)
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	if entry.ErrorMessage != nil {
		entry.ErrorMessage = clip(*entry.ErrorMessage)
	}
	return tx.Create(&entry).Error
}

// DeleteFailedBefore purges dead letters recorded before cutoff.
func (r *DLQRepository) DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	res := tx.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
