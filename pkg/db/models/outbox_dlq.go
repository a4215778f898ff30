package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// OutboxDLQ captures terminal outbox failures for auditing and remediation.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null;index"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;type:varchar(64);not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;type:varchar(64);not null"`
	AggregateID   string                     `gorm:"column:aggregate_id;not null"`
	Payload       types.RawJSON              `gorm:"column:payload_json;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:varchar(32);not null"`
	ErrorMessage  *string                    `gorm:"column:error_message"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (d *OutboxDLQ) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}
