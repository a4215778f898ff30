package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Sink          eventSink
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
}

// Service drains committed outbox rows to the configured sink. Delivery is at least once:
// a row is marked published only after the sink acknowledges it.
type Service struct {
	logg     *logger.Logger
	db       dbClient
	repo     outboxRepository
	sink     eventSink
	registry registryResolver
	dlq      dlqRepository
	settings settings
	now      func() time.Time
}

type settings struct {
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func settingsFrom(cfg config.OutboxConfig) settings {
	s := settings{
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	return s
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Sink == nil:
		return nil, errors.New("event sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repository,
		sink:     params.Sink,
		registry: params.Registry,
		dlq:      params.DLQRepository,
		settings: settingsFrom(params.Config.Outbox),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run checks both ends are reachable, then loops until ctx is canceled. Full batches are
// followed immediately by the next one; idle polls wait pollInterval and failing batches
// back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	backoff := s.failureBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait, _ = backoff.Next()
		case processed:
			backoff = s.failureBackoff()
			continue
		default:
			backoff = s.failureBackoff()
			wait = s.settings.pollInterval
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) ready(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{s.sink.Name(), s.sink.Ping},
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			s.logg.Error(ctx, check.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}
	return nil
}

func (s *Service) failureBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxIdleBackoff, retry.WithJitterPercent(10, retry.NewExponential(s.settings.pollInterval)))
}

// processBatch reports whether any row was claimed. Rows are locked for the duration of the
// transaction so concurrent publishers skip them.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.settings.batchSize, s.settings.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := s.deliver(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed > 0, err
}

// deliver returns an error only when bookkeeping fails. Publish failures are recorded on the
// row so the rest of the batch still goes out.
func (s *Service) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return s.deadLetter(ctx, tx, row, nil, enums.OutboxDLQReasonNonRetryable, err)
	}

	pubErr := s.publish(ctx, row, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, s.rowFields(row, resolved)), "outbox event published")
		return nil
	}

	if reason, terminal := s.classify(row, pubErr); terminal {
		if reason == enums.OutboxDLQReasonMaxAttempts {
			pubErr = fmt.Errorf("max publish attempts reached: %w", pubErr)
		}
		return s.deadLetter(ctx, tx, row, resolved, reason, pubErr)
	}

	fields := s.rowFields(row, resolved)
	fields["attempt_count"] = row.AttemptCount + 1
	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return nil
}

// classify decides whether a failed publish is final. The row has already been attempted
// AttemptCount times; this failure is one more.
func (s *Service) classify(row models.OutboxEvent, pubErr error) (enums.OutboxDLQErrorReason, bool) {
	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		return enums.OutboxDLQReasonNonRetryable, true
	}
	if row.AttemptCount+1 >= s.settings.maxAttempts {
		return enums.OutboxDLQReasonMaxAttempts, true
	}
	return "", false
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, resolved *registry.ResolvedEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	fields := s.rowFields(row, resolved)
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	msg := cause.Error()
	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      s.now(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, row.ID, cause, s.settings.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Route.Topic
	if topic == "" {
		return registry.NewNonRetryableError(fmt.Errorf("no topic configured for %s", row.EventType))
	}

	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID,
		"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
	}
	maps.Copy(attrs, resolved.Attributes)

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return s.sink.Publish(publishCtx, topic, outboundMessage{
		Key:        resolved.Key,
		Data:       []byte(row.Payload),
		Attributes: attrs,
	})
}

func (s *Service) rowFields(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"sink":           s.sink.Name(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	if resolved == nil {
		return fields
	}
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if resolved.Route.Topic != "" {
		fields["topic"] = resolved.Route.Topic
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
