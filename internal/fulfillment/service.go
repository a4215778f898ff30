package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/metrics"
)

// Service answers "when could this cart be delivered" without mutating anything.
type Service interface {
	Estimate(ctx context.Context, lines []Line) (*Estimate, error)
}

type ServiceParams struct {
	Products catalog.Repository
	Capacity capacity.Ledger
	Clock    clock.Clock
	Policy   Policy
	Metrics  *metrics.SchedulingMetrics
	Logger   *logger.Logger
}

type service struct {
	products  catalog.Repository
	capacity  capacity.Ledger
	clock     clock.Clock
	estimator Estimator
	metrics   *metrics.SchedulingMetrics
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Capacity == nil {
		return nil, fmt.Errorf("capacity ledger required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		products:  params.Products,
		capacity:  params.Capacity,
		clock:     params.Clock,
		estimator: NewEstimator(params.Policy),
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Estimate reads the clock once, loads products in one query and the capacity of the whole
// horizon in one query, then runs the pure estimator over that snapshot.
func (s *service) Estimate(ctx context.Context, lines []Line) (*Estimate, error) {
	started := time.Now()
	est, err := s.estimate(ctx, lines)
	s.metrics.ObserveEstimate(estimateOutcome(est, err), time.Since(started))
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"lines":         len(lines),
		"available":     est.Available,
		"earliest_date": est.EarliestDate.String(),
		"stock_issues":  len(est.StockIssues),
	})
	s.logg.Debug(logCtx, "cart estimate computed")
	return est, nil
}

func (s *service) estimate(ctx context.Context, lines []Line) (*Estimate, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}
	consolidated := Consolidate(lines)
	products, err := LoadProducts(ctx, s.products, consolidated)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	policy := s.estimator.Policy()
	snap, err := s.capacity.ReadRange(ctx, policy.Today(now), policy.HorizonEnd(now))
	if err != nil {
		return nil, err
	}
	est, err := s.estimator.Estimate(consolidated, products, snap, now)
	if err != nil {
		return nil, err
	}
	return &est, nil
}

func estimateOutcome(est *Estimate, err error) string {
	switch {
	case err == nil && est != nil && est.Available:
		return metrics.OutcomeAvailable
	case err == nil:
		return metrics.OutcomeUnavailable
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeNotFound
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
