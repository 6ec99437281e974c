package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
)

type fakeStaleReader struct {
	orders []models.Order
	cutoff time.Time
	limit  int
	err    error
}

func (f *fakeStaleReader) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	f.cutoff = olderThan
	f.limit = limit
	return f.orders, f.err
}

type fakeCanceller struct {
	cancelled []uuid.UUID
	results   map[uuid.UUID]bool
	errs      map[uuid.UUID]error
}

func (f *fakeCanceller) CancelExpired(_ context.Context, orderID uuid.UUID) (bool, error) {
	if err := f.errs[orderID]; err != nil {
		return false, err
	}
	f.cancelled = append(f.cancelled, orderID)
	return f.results[orderID], nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestOrderTTLJobCancelsStaleOrders(t *testing.T) {
	t.Parallel()

	first := models.Order{ID: uuid.New()}
	second := models.Order{ID: uuid.New()}
	reader := &fakeStaleReader{orders: []models.Order{first, second}}
	canceller := &fakeCanceller{results: map[uuid.UUID]bool{first.ID: true, second.ID: false}}

	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:     testLogger(),
		Reader:     reader,
		Orders:     canceller,
		PendingTTL: 48 * time.Hour,
		BatchSize:  10,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(canceller.cancelled) != 2 {
		t.Fatalf("expected both orders attempted, got %d", len(canceller.cancelled))
	}
	if reader.limit != 10 {
		t.Fatalf("expected batch size 10, got %d", reader.limit)
	}
	if time.Since(reader.cutoff) < 48*time.Hour {
		t.Fatalf("cutoff not pushed back by the pending ttl: %v", reader.cutoff)
	}
}

func TestOrderTTLJobContinuesPastFailures(t *testing.T) {
	t.Parallel()

	broken := models.Order{ID: uuid.New()}
	healthy := models.Order{ID: uuid.New()}
	reader := &fakeStaleReader{orders: []models.Order{broken, healthy}}
	canceller := &fakeCanceller{
		results: map[uuid.UUID]bool{healthy.ID: true},
		errs:    map[uuid.UUID]error{broken.ID: errors.New("deadlock")},
	}

	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:     testLogger(),
		Reader:     reader,
		Orders:     canceller,
		PendingTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the broken order's error to surface")
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != healthy.ID {
		t.Fatalf("expected the healthy order to still be cancelled: %+v", canceller.cancelled)
	}
}

func TestNewOrderTTLJobValidatesParams(t *testing.T) {
	t.Parallel()

	_, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger: testLogger(),
		Reader: &fakeStaleReader{},
		Orders: &fakeCanceller{},
	})
	if err == nil {
		t.Fatalf("expected error for missing pending ttl")
	}
}
