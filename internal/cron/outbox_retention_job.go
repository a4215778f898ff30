package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultOutboxMinAttempts   = 10
	// dead letters outlive published rows so operators can still replay them
	dlqRetentionFactor = 3
)

type OutboxRetentionJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Outbox outboxPruner
	// DLQ is optional; without it dead letters are never pruned.
	DLQ dlqPruner
	// Retention is in days; zero uses 30.
	Retention int
	// MinAttempts marks an unpublished row as abandoned; zero uses 10.
	MinAttempts int
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	outbox      outboxPruner
	dlq         dlqPruner
	window      time.Duration
	minAttempts int
	now         func() time.Time
}

// NewOutboxRetentionJob prunes outbox rows that were published, or abandoned after
// MinAttempts tries, more than Retention days ago, and dead letters older than three times
// that window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	days := params.Retention
	if days <= 0 {
		days = defaultOutboxRetentionDays
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = defaultOutboxMinAttempts
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		outbox:      params.Outbox,
		dlq:         params.DLQ,
		window:      time.Duration(days) * 24 * time.Hour,
		minAttempts: minAttempts,
		now:         time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-j.window)
	dlqCutoff := now.Add(-dlqRetentionFactor * j.window)

	var prunedOutbox, prunedDLQ int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		if prunedOutbox, err = j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, j.minAttempts); err != nil {
			return err
		}
		if j.dlq != nil {
			prunedDLQ, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff)
		}
		return err
	})
	if err != nil {
		return err
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff": outboxCutoff,
		"dlq_cutoff":    dlqCutoff,
		"min_attempts":  j.minAttempts,
		"outbox_pruned": prunedOutbox,
		"dlq_pruned":    prunedDLQ,
	}), "outbox retention complete")
	return nil
}
