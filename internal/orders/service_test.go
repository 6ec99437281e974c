package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/internal/stock"
	"github.com/sandaruwanb/lankamart-backend/pkg/authz"
	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
	"github.com/sandaruwanb/lankamart-backend/pkg/payments"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db     *gorm.DB
	svc    Service
	ledger stock.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.SupplierItem{}, &models.Order{}, &models.OrderItem{},
		&models.Payment{}, &models.StockReservation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledger, err := stock.NewService(stock.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	svc, err := NewService(
		NewRepository(gdb),
		testTxRunner{db: gdb},
		ledger,
		payments.NewInProcessGateway(),
		nil,
		nil,
		logg,
	)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	return &fixture{db: gdb, svc: svc, ledger: ledger}
}

// seedOrder creates a pending order holding qty units of a fresh listing, the
// way checkout would leave it.
func (f *fixture) seedOrder(t *testing.T, userID uuid.UUID, qty, stockAfter int, paymentStatus enums.PaymentStatus) (*models.Order, *models.SupplierItem) {
	t.Helper()
	listing := &models.SupplierItem{
		ProductID:     uuid.New(),
		SupplierID:    uuid.New(),
		Price:         decimal.NewFromInt(100),
		PurchasePrice: decimal.NewFromInt(60),
		StockLevel:    stockAfter + qty,
		IsActive:      true,
	}
	if err := f.db.Create(listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	order := &models.Order{
		ID:           uuid.New(),
		OrderNumber:  "ORD-TEST-" + uuid.NewString()[:6],
		UserID:       userID,
		AddressID:    uuid.New(),
		Status:       enums.OrderStatusPending,
		TotalAmount:  decimal.NewFromInt(int64(qty) * 100),
		ShippingCost: decimal.NewFromInt(50),
		OrderDate:    time.Now().UTC(),
		Items: []models.OrderItem{{
			ProductID:      listing.ProductID,
			SupplierItemID: listing.ID,
			SupplierID:     listing.SupplierID,
			Quantity:       qty,
			UnitPrice:      decimal.NewFromInt(100),
		}},
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	results, err := f.ledger.Reserve(context.Background(), []stock.ReserveRequest{
		{SupplierItemID: listing.ID, OrderID: order.ID, Quantity: qty},
	})
	if err != nil || !results[0].Reserved {
		t.Fatalf("seed reservation failed: %v %+v", err, results)
	}

	var txnID *string
	if paymentStatus == enums.PaymentStatusPaid {
		id := "txn_" + uuid.NewString()
		txnID = &id
	}
	payment := &models.Payment{
		OrderID:       order.ID,
		Method:        enums.PaymentMethodCard,
		Status:        paymentStatus,
		Amount:        order.TotalAmount,
		TransactionID: txnID,
	}
	if err := f.db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return order, listing
}

func (f *fixture) stockLevel(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var item models.SupplierItem
	if err := f.db.First(&item, "id = ?", id).Error; err != nil {
		t.Fatalf("load listing: %v", err)
	}
	return item.StockLevel
}

func staffActor() authz.Actor {
	return authz.Actor{UserID: uuid.New(), Role: enums.RoleOrderManager}
}

func TestAdvanceFullLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.seedOrder(t, uuid.New(), 2, 3, enums.PaymentStatusPaid)
	staff := staffActor()

	order, err := f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", order.Status)
	}

	order, err = f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusShipped)
	if err != nil {
		t.Fatalf("ship: %v", err)
	}

	order, err = f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if order.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", order.Status)
	}
	if order.DeliveryDate == nil {
		t.Fatalf("expected delivery date to be set")
	}
}

func TestAdvanceRejectsSkippedStates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.seedOrder(t, uuid.New(), 1, 4, enums.PaymentStatusPaid)

	_, err := f.svc.Advance(ctx, staffActor(), order.ID, enums.OrderStatusShipped)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for pending->shipped, got %v", err)
	}
}

func TestCancelRestoresStockAndRefunds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	// stock 5, order holds 2, so the listing reads 3
	order, listing := f.seedOrder(t, uuid.New(), 2, 3, enums.PaymentStatusPaid)
	if got := f.stockLevel(t, listing.ID); got != 3 {
		t.Fatalf("expected stock 3 before cancel, got %d", got)
	}

	order, err := f.svc.Advance(ctx, staffActor(), order.ID, enums.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if got := f.stockLevel(t, listing.ID); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded payment, got %+v", order.Payment)
	}
}

func TestCancelPendingPaymentMarksFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.seedOrder(t, uuid.New(), 1, 4, enums.PaymentStatusPending)

	order, err := f.svc.Advance(ctx, staffActor(), order.ID, enums.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %+v", order.Payment)
	}
}

func TestCancelShippedOrderFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order, listing := f.seedOrder(t, uuid.New(), 1, 4, enums.PaymentStatusPaid)
	staff := staffActor()

	if _, err := f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusShipped); err != nil {
		t.Fatalf("ship: %v", err)
	}

	_, err := f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusCancelled)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if typed.Message() != "order already shipped" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if got := f.stockLevel(t, listing.ID); got != 4 {
		t.Fatalf("stock must stay reserved for shipped order, got %d", got)
	}
}

func TestCancelTwiceDoesNotDoubleCredit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order, listing := f.seedOrder(t, uuid.New(), 2, 3, enums.PaymentStatusPaid)
	staff := staffActor()

	if _, err := f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	_, err := f.svc.Advance(ctx, staff, order.ID, enums.OrderStatusCancelled)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on second cancel, got %v", err)
	}
	if got := f.stockLevel(t, listing.ID); got != 5 {
		t.Fatalf("expected stock 5 after retried cancel, got %d", got)
	}
}

func TestCustomerPermissions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ownerID := uuid.New()
	order, _ := f.seedOrder(t, ownerID, 1, 4, enums.PaymentStatusPaid)

	owner := authz.Actor{UserID: ownerID, Role: enums.RoleCustomer}
	stranger := authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	// a stranger cannot even see the order
	_, err := f.svc.Get(ctx, stranger, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for stranger, got %v", err)
	}

	// the owner cannot confirm their own order
	_, err = f.svc.Advance(ctx, owner, order.ID, enums.OrderStatusConfirmed)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for customer confirm, got %v", err)
	}

	// but may cancel it while pending
	cancelled, err := f.svc.Advance(ctx, owner, order.ID, enums.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestListScopesAndPaginates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ownerID := uuid.New()
	otherID := uuid.New()
	for i := 0; i < 3; i++ {
		f.seedOrder(t, ownerID, 1, 4, enums.PaymentStatusPaid)
	}
	f.seedOrder(t, otherID, 1, 4, enums.PaymentStatusPaid)

	owner := authz.Actor{UserID: ownerID, Role: enums.RoleCustomer}
	page, err := f.svc.List(ctx, owner, nil, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Orders) != 2 {
		t.Fatalf("expected 2 orders on first page, got %d", len(page.Orders))
	}
	if page.NextCursor == "" {
		t.Fatalf("expected a next cursor")
	}

	rest, err := f.svc.List(ctx, owner, nil, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(rest.Orders) != 1 {
		t.Fatalf("expected 1 order on second page, got %d", len(rest.Orders))
	}
	if rest.NextCursor != "" {
		t.Fatalf("expected no cursor on last page")
	}

	staffPage, err := f.svc.List(ctx, staffActor(), nil, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("staff list: %v", err)
	}
	if len(staffPage.Orders) != 4 {
		t.Fatalf("staff should see all 4 orders, got %d", len(staffPage.Orders))
	}
}

func TestCancelExpiredSweepsPendingOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order, listing := f.seedOrder(t, uuid.New(), 2, 3, enums.PaymentStatusPending)

	done, err := f.svc.CancelExpired(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel expired: %v", err)
	}
	if !done {
		t.Fatalf("expected the pending order to be cancelled")
	}
	if got := f.stockLevel(t, listing.ID); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}

	reloaded, err := f.svc.Get(ctx, staffActor(), order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", reloaded.Status)
	}
	if reloaded.Payment == nil || reloaded.Payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %+v", reloaded.Payment)
	}

	// a second sweep finds nothing to do
	done, err = f.svc.CancelExpired(ctx, order.ID)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if done {
		t.Fatalf("expected no-op on already cancelled order")
	}

	confirmed, _ := f.seedOrder(t, uuid.New(), 1, 4, enums.PaymentStatusPaid)
	if _, err := f.svc.Advance(ctx, staffActor(), confirmed.ID, enums.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	done, err = f.svc.CancelExpired(ctx, confirmed.ID)
	if err != nil {
		t.Fatalf("sweep confirmed order: %v", err)
	}
	if done {
		t.Fatalf("sweep must not touch confirmed orders")
	}
}
