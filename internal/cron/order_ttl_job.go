package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
)

const defaultSweepBatch = 200

type stalePendingReader interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error)
}

type expiredOrderCanceller interface {
	CancelExpired(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// OrderTTLJobParams configure the stale pending order sweeper.
type OrderTTLJobParams struct {
	Logger     *logger.Logger
	Reader     stalePendingReader
	Orders     expiredOrderCanceller
	PendingTTL time.Duration
	BatchSize  int
}

// NewOrderTTLJob builds the cron job that cancels orders left pending past
// the configured TTL, returning their reserved stock.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("stale order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	if params.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &orderTTLJob{
		logg:   params.Logger,
		reader: params.Reader,
		orders: params.Orders,
		ttl:    params.PendingTTL,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	reader stalePendingReader
	orders expiredOrderCanceller
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

// Run sweeps one batch per cycle. A failed order does not stop the sweep;
// errors are collected and reported together.
func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.reader.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs error
	cancelled := 0
	for _, order := range stale {
		done, err := j.orders.CancelExpired(ctx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		if done {
			cancelled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"scanned": len(stale), "cancelled": cancelled})
	j.logg.Info(logCtx, "stale pending order sweep complete")
	return errs
}
