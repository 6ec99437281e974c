package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/internal/cart"
	"github.com/sandaruwanb/lankamart-backend/internal/stock"
	"github.com/sandaruwanb/lankamart-backend/pkg/db"
	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/metrics"
	"github.com/sandaruwanb/lankamart-backend/pkg/notifier"
	"github.com/sandaruwanb/lankamart-backend/pkg/payments"
	"github.com/sandaruwanb/lankamart-backend/pkg/shipping"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 2
	retryBase      = 50 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input captures the checkout payload for the authenticated customer.
type Input struct {
	UserID        uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod enums.PaymentMethod
}

// ShortLine reports one cart line that could not be reserved.
type ShortLine struct {
	SupplierItemID uuid.UUID `json:"supplier_item_id"`
	Requested      int       `json:"requested"`
	Reason         string    `json:"reason"`
}

// Service converts the active cart into a pending order, atomically with the
// stock reservation and payment record.
type Service interface {
	Execute(ctx context.Context, input Input) (*models.Order, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	cartRepo cart.Repository
	ledger   stock.Service
	shipping shipping.CostLookup
	gateway  payments.Gateway
	notify   notifier.Notifier
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	timeout  time.Duration
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repo Repository,
	cartRepo cart.Repository,
	ledger stock.Service,
	costs shipping.CostLookup,
	gateway payments.Gateway,
	notify notifier.Notifier,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
	timeout time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if costs == nil {
		return nil, fmt.Errorf("shipping lookup required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &service{
		tx:       tx,
		repo:     repo,
		cartRepo: cartRepo,
		ledger:   ledger,
		shipping: costs,
		gateway:  gateway,
		notify:   notify,
		metrics:  checkoutMetrics,
		logg:     logg,
		timeout:  timeout,
	}, nil
}

// Execute runs the whole checkout inside one transaction: price the cart from
// live listings, create the order, reserve stock, record the payment, and
// empty the cart. Transient failures are retried a bounded number of times.
func (s *service) Execute(ctx context.Context, input Input) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var order *models.Order
	// the charge key survives retries, so a rolled-back attempt that already
	// settled is replayed at the gateway instead of charged again
	chargeKey := uuid.NewString()
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		created, attemptErr := s.executeOnce(ctx, input, chargeKey)
		if attemptErr != nil {
			if isTransient(attemptErr) {
				return retry.RetryableError(attemptErr)
			}
			return attemptErr
		}
		order = created
		return nil
	})
	s.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		s.metrics.IncOutcome(outcomeLabel(err))
		return nil, err
	}
	s.metrics.IncOutcome("success")

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "checkout completed")
	if s.notify != nil {
		s.notify.OrderPlaced(ctx, order.ID, order.OrderNumber)
	}
	return order, nil
}

func (s *service) executeOnce(ctx context.Context, input Input, chargeKey string) (*models.Order, error) {
	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		address, err := repo.GetAddress(ctx, input.AddressID, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}

		userCart, err := cartRepo.FindByUser(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(userCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		now := time.Now().UTC()
		order := &models.Order{
			ID:          uuid.New(),
			OrderNumber: newOrderNumber(now),
			UserID:      input.UserID,
			AddressID:   address.ID,
			Status:      enums.OrderStatusPending,
			OrderDate:   now,
		}

		// prices come from the live listings, not the cart snapshot
		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(userCart.Items))
		for _, line := range userCart.Items {
			listing, err := ledger.GetSupplierItem(ctx, line.SupplierItemID)
			if err != nil {
				return err
			}
			if !listing.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "supplier item is no longer available").
					WithDetails([]ShortLine{{
						SupplierItemID: listing.ID,
						Requested:      line.Quantity,
						Reason:         stock.ReasonItemInactive,
					}})
			}
			lineTotal := listing.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderItem{
				OrderID:        order.ID,
				ProductID:      line.ProductID,
				SupplierItemID: listing.ID,
				SupplierID:     listing.SupplierID,
				Quantity:       line.Quantity,
				UnitPrice:      listing.Price,
			})
		}

		shippingCost, err := s.shipping.CostFor(ctx, address.City)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve shipping cost")
		}
		order.ShippingCost = shippingCost
		order.TotalAmount = subtotal.Add(shippingCost)
		order.Items = items

		// the order row goes in before the reservation because reservation
		// rows reference the order id; the shared transaction discards both
		// when any line comes up short
		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "orders_order_number_key") {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order number collision")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		requests := make([]stock.ReserveRequest, 0, len(items))
		for _, item := range items {
			requests = append(requests, stock.ReserveRequest{
				SupplierItemID: item.SupplierItemID,
				OrderID:        order.ID,
				Quantity:       item.Quantity,
			})
		}
		results, err := ledger.Reserve(ctx, requests)
		if err != nil {
			return err
		}
		short := make([]ShortLine, 0)
		for i, result := range results {
			if result.Reserved {
				continue
			}
			short = append(short, ShortLine{
				SupplierItemID: result.SupplierItemID,
				Requested:      requests[i].Quantity,
				Reason:         result.Reason,
			})
		}
		if len(short) > 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock to fulfil the cart").
				WithDetails(short)
		}

		charge, err := s.gateway.Charge(ctx, payments.ChargeInput{
			OrderID:        order.ID,
			Method:         input.PaymentMethod,
			Amount:         order.TotalAmount,
			IdempotencyKey: chargeKey,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge payment")
		}
		payment := &models.Payment{
			OrderID:       order.ID,
			Method:        input.PaymentMethod,
			Status:        charge.Status,
			Amount:        order.TotalAmount,
			TransactionID: charge.TransactionID,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		if err := cartRepo.DeleteItems(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

// isTransient reports whether the attempt is worth retrying.
func isTransient(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	return pkgerrors.MetadataFor(typed.Code()).Retryable
}

func outcomeLabel(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeValidation:
		return "validation"
	default:
		return "error"
	}
}
