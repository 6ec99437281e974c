package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/internal/stock"
	"github.com/sandaruwanb/lankamart-backend/pkg/authz"
	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/metrics"
	"github.com/sandaruwanb/lankamart-backend/pkg/notifier"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
	"github.com/sandaruwanb/lankamart-backend/pkg/payments"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// allowedTransitions is the whole lifecycle. Anything not listed is rejected.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered},
}

func transitionAllowed(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ListResult carries one page of orders and the cursor for the next one.
type ListResult struct {
	Orders     []models.Order
	NextCursor string
}

// Service exposes order reads and lifecycle transitions.
type Service interface {
	Get(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor authz.Actor, status *enums.OrderStatus, params pagination.Params) (*ListResult, error)
	Advance(ctx context.Context, actor authz.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	// CancelExpired cancels a pending order on behalf of the cron worker. It
	// reports false when the order moved on before the worker got to it.
	CancelExpired(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  stock.Service
	gateway payments.Gateway
	notify  notifier.Notifier
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
}

// NewService builds the order service.
func NewService(
	repo Repository,
	tx txRunner,
	ledger stock.Service,
	gateway payments.Gateway,
	notify notifier.Notifier,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		ledger:  ledger,
		gateway: gateway,
		notify:  notify,
		metrics: orderMetrics,
		logg:    logg,
	}, nil
}

// Get returns one order, hiding other customers' orders entirely.
func (s *service) Get(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authz.EnsureOrderVisible(actor, order.UserID); err != nil {
		return nil, err
	}
	return order, nil
}

// List pages through orders. Customers only ever see their own.
func (s *service) List(ctx context.Context, actor authz.Actor, status *enums.OrderStatus, params pagination.Params) (*ListResult, error) {
	filter := ListFilter{Status: status}
	if !actor.Role.IsStaff() {
		userID := actor.UserID
		filter.UserID = &userID
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.List(ctx, filter, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	result := &ListResult{Orders: rows}
	if len(rows) > limit {
		result.Orders = rows[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// Advance moves the order to the target status, applying cancellation and
// delivery side effects in the same transaction as the guarded status flip.
func (s *service) Advance(ctx context.Context, actor authz.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authz.EnsureOrderVisible(actor, order.UserID); err != nil {
		return nil, err
	}
	if err := authz.EnsureCanAdvanceOrder(actor, order.UserID, target); err != nil {
		return nil, err
	}

	from := order.Status
	if !transitionAllowed(from, target) {
		return nil, s.transitionError(from, target)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		moved, err := repo.UpdateStatus(ctx, orderID, from, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			// someone else transitioned the order first
			current, err := s.loadOrder(ctx, repo, orderID)
			if err != nil {
				return err
			}
			return s.transitionError(current.Status, target)
		}

		switch target {
		case enums.OrderStatusCancelled:
			return s.applyCancellation(ctx, repo, tx, orderID)
		case enums.OrderStatusDelivered:
			if err := repo.SetDeliveryDate(ctx, orderID, time.Now().UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set delivery date")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(from.String(), target.String())
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{"from": from.String(), "to": target.String()})
	s.logg.Info(ctx, "order transitioned")
	if s.notify != nil {
		s.notify.OrderStatusChanged(ctx, orderID, from.String(), target.String())
	}

	return s.loadOrder(ctx, s.repo, orderID)
}

// CancelExpired runs the same cancellation path as Advance but without an
// actor. The guarded update keeps it safe to race against a customer
// confirming or cancelling at the same moment.
func (s *service) CancelExpired(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var cancelled bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		moved, err := repo.UpdateStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return nil
		}
		cancelled = true
		return s.applyCancellation(ctx, repo, tx, orderID)
	})
	if err != nil {
		return false, err
	}
	if !cancelled {
		return false, nil
	}

	s.metrics.IncTransition(enums.OrderStatusPending.String(), enums.OrderStatusCancelled.String())
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(ctx, "expired pending order cancelled")
	if s.notify != nil {
		s.notify.OrderStatusChanged(ctx, orderID, enums.OrderStatusPending.String(), enums.OrderStatusCancelled.String())
	}
	return true, nil
}

// applyCancellation releases held stock and settles the payment record.
func (s *service) applyCancellation(ctx context.Context, repo Repository, tx *gorm.DB, orderID uuid.UUID) error {
	if _, err := s.ledger.WithTx(tx).ReleaseForOrder(ctx, orderID); err != nil {
		return err
	}

	payment, err := repo.GetPayment(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	switch payment.Status {
	case enums.PaymentStatusPaid:
		if payment.TransactionID != nil {
			if err := s.gateway.Refund(ctx, *payment.TransactionID, payment.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund payment")
			}
		}
		if err := repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusRefunded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
		}
	case enums.PaymentStatusPending:
		if err := repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusFailed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
	}
	return nil
}

func (s *service) transitionError(from, to enums.OrderStatus) error {
	message := "order status transition not allowed"
	if from == enums.OrderStatusShipped && to == enums.OrderStatusCancelled {
		message = "order already shipped"
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]string{"from": from.String(), "to": to.String()})
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
