package checkout

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/internal/cart"
	"github.com/sandaruwanb/lankamart-backend/internal/stock"
	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/payments"
	"github.com/sandaruwanb/lankamart-backend/pkg/shipping"
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
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{}, &models.Address{}, &models.SupplierItem{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
		&models.StockReservation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledger, err := stock.NewService(stock.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	costs, err := shipping.NewStaticTable(decimal.NewFromInt(400), shipping.DefaultCityTable())
	if err != nil {
		t.Fatalf("new shipping table: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})

	svc, err := NewService(
		testTxRunner{db: gdb},
		NewRepository(gdb),
		cart.NewRepository(gdb),
		ledger,
		costs,
		payments.NewInProcessGateway(),
		nil,
		nil,
		logg,
		5*time.Second,
	)
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return &fixture{db: gdb, svc: svc, ledger: ledger}
}

func (f *fixture) seedAddress(t *testing.T, userID uuid.UUID, city string) *models.Address {
	t.Helper()
	address := &models.Address{UserID: userID, Line1: "12 Galle Road", City: city}
	if err := f.db.Create(address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return address
}

func (f *fixture) seedListing(t *testing.T, price int64, stockLevel int) *models.SupplierItem {
	t.Helper()
	item := &models.SupplierItem{
		ProductID:     uuid.New(),
		SupplierID:    uuid.New(),
		Price:         decimal.NewFromInt(price),
		PurchasePrice: decimal.NewFromInt(price / 2),
		StockLevel:    stockLevel,
		IsActive:      true,
	}
	if err := f.db.Create(item).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return item
}

func (f *fixture) seedCart(t *testing.T, userID uuid.UUID, lines map[*models.SupplierItem]int) {
	t.Helper()
	userCart := &models.Cart{UserID: userID}
	if err := f.db.Create(userCart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	for listing, qty := range lines {
		line := &models.CartItem{
			CartID:         userCart.ID,
			ProductID:      listing.ProductID,
			SupplierItemID: listing.ID,
			SupplierID:     listing.SupplierID,
			Quantity:       qty,
			UnitPrice:      listing.Price,
		}
		if err := f.db.Create(line).Error; err != nil {
			t.Fatalf("seed cart line: %v", err)
		}
	}
}

func (f *fixture) stockLevel(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var item models.SupplierItem
	if err := f.db.First(&item, "id = ?", id).Error; err != nil {
		t.Fatalf("load listing: %v", err)
	}
	return item.StockLevel
}

func TestExecuteCreatesPendingOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	address := f.seedAddress(t, userID, "Colombo")

	listing := f.seedListing(t, 100, 10)
	other := f.seedListing(t, 100, 10)
	f.seedCart(t, userID, map[*models.SupplierItem]int{listing: 2, other: 1})

	order, err := f.svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     address.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	// 2x100 + 1x100 subtotal, Colombo shipping 50
	if !order.ShippingCost.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected shipping 50, got %s", order.ShippingCost)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected total 350, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPaid {
		t.Fatalf("expected settled card payment, got %+v", order.Payment)
	}
	if order.Payment.TransactionID == nil {
		t.Fatalf("expected transaction id on card payment")
	}

	if got := f.stockLevel(t, listing.ID); got != 8 {
		t.Fatalf("expected stock 8, got %d", got)
	}

	var reservations int64
	if err := f.db.Model(&models.StockReservation{}).Where("order_id = ?", order.ID).Count(&reservations).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if reservations != 2 {
		t.Fatalf("expected 2 reservations, got %d", reservations)
	}

	var remaining int64
	if err := f.db.Model(&models.CartItem{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected cart cleared, %d lines remain", remaining)
	}
}

func TestExecuteUsesLivePricesNotSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	address := f.seedAddress(t, userID, "Colombo")

	listing := f.seedListing(t, 100, 10)
	f.seedCart(t, userID, map[*models.SupplierItem]int{listing: 1})

	// price changed after the item went into the cart
	if err := f.db.Model(&models.SupplierItem{}).Where("id = ?", listing.ID).
		Update("price", decimal.NewFromInt(120)).Error; err != nil {
		t.Fatalf("update price: %v", err)
	}

	order, err := f.svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     address.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected live price 120, got %s", order.Items[0].UnitPrice)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(170)) {
		t.Fatalf("expected total 170, got %s", order.TotalAmount)
	}
}

func TestExecuteInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	address := f.seedAddress(t, userID, "Colombo")

	plentiful := f.seedListing(t, 100, 10)
	scarce := f.seedListing(t, 100, 1)
	f.seedCart(t, userID, map[*models.SupplierItem]int{plentiful: 1, scarce: 3})

	_, err := f.svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     address.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	short, ok := typed.Details().([]ShortLine)
	if !ok || len(short) != 1 {
		t.Fatalf("expected 1 short line in details, got %#v", typed.Details())
	}
	if short[0].SupplierItemID != scarce.ID || short[0].Requested != 3 {
		t.Fatalf("unexpected short line %+v", short[0])
	}

	// everything rolled back
	if got := f.stockLevel(t, plentiful.ID); got != 10 {
		t.Fatalf("expected stock untouched, got %d", got)
	}
	var orders int64
	if err := f.db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("expected no orders persisted, got %d", orders)
	}
	var lines int64
	if err := f.db.Model(&models.CartItem{}).Count(&lines).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	if lines != 2 {
		t.Fatalf("cart must survive a failed checkout, got %d lines", lines)
	}
}

func TestExecuteLastUnitGoesToOneBuyer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	listing := f.seedListing(t, 100, 1)

	winner := uuid.New()
	loser := uuid.New()
	winnerAddr := f.seedAddress(t, winner, "Colombo")
	loserAddr := f.seedAddress(t, loser, "Colombo")
	f.seedCart(t, winner, map[*models.SupplierItem]int{listing: 1})
	f.seedCart(t, loser, map[*models.SupplierItem]int{listing: 1})

	if _, err := f.svc.Execute(ctx, Input{
		UserID:        winner,
		AddressID:     winnerAddr.ID,
		PaymentMethod: enums.PaymentMethodCard,
	}); err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	_, err := f.svc.Execute(ctx, Input{
		UserID:        loser,
		AddressID:     loserAddr.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected second buyer to miss out, got %v", err)
	}
	if got := f.stockLevel(t, listing.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestExecuteSimultaneousCheckoutsLastUnit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	// sqlite rejects overlapping writers, so funnel both goroutines through
	// one connection and let the reservation guard pick the winner
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	listing := f.seedListing(t, 100, 1)

	buyers := []uuid.UUID{uuid.New(), uuid.New()}
	inputs := make([]Input, len(buyers))
	for i, buyer := range buyers {
		address := f.seedAddress(t, buyer, "Colombo")
		f.seedCart(t, buyer, map[*models.SupplierItem]int{listing: 1})
		inputs[i] = Input{
			UserID:        buyer,
			AddressID:     address.ID,
			PaymentMethod: enums.PaymentMethodCard,
		}
	}

	errs := make([]error, len(buyers))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Execute(ctx, inputs[i])
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
			t.Fatalf("expected insufficient stock for the losing buyer, got %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one checkout to win the last unit, got %d", won)
	}
	if got := f.stockLevel(t, listing.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}

	var orders int64
	if err := f.db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 1 {
		t.Fatalf("expected the losing checkout to roll back, got %d orders", orders)
	}
}

func TestExecuteValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	address := f.seedAddress(t, userID, "Colombo")

	// empty cart
	_, err := f.svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     address.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}

	// someone else's address
	listing := f.seedListing(t, 100, 5)
	f.seedCart(t, userID, map[*models.SupplierItem]int{listing: 1})
	_, err = f.svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     f.seedAddress(t, uuid.New(), "Kandy").ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign address, got %v", err)
	}

	// bad payment method
	_, err = f.svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     address.ID,
		PaymentMethod: enums.PaymentMethod("crypto"),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for payment method, got %v", err)
	}
}

// flakyPaymentRepo fails CreatePayment a configured number of times so a
// test can drive the retry path.
type flakyPaymentRepo struct {
	inner    Repository
	failures *int
}

func (r *flakyPaymentRepo) WithTx(tx *gorm.DB) Repository {
	return &flakyPaymentRepo{inner: r.inner.WithTx(tx), failures: r.failures}
}

func (r *flakyPaymentRepo) GetAddress(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	return r.inner.GetAddress(ctx, id, userID)
}

func (r *flakyPaymentRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.inner.CreateOrder(ctx, order)
}

func (r *flakyPaymentRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if *r.failures > 0 {
		*r.failures--
		return errors.New("connection reset by peer")
	}
	return r.inner.CreatePayment(ctx, payment)
}

func (r *flakyPaymentRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.inner.GetOrderByID(ctx, id)
}

type recordingGateway struct {
	inner payments.Gateway
	calls int
	txns  []string
}

func (g *recordingGateway) Charge(ctx context.Context, input payments.ChargeInput) (payments.ChargeResult, error) {
	g.calls++
	result, err := g.inner.Charge(ctx, input)
	if err == nil && result.TransactionID != nil {
		g.txns = append(g.txns, *result.TransactionID)
	}
	return result, err
}

func (g *recordingGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error {
	return g.inner.Refund(ctx, transactionID, amount)
}

func TestExecuteRetryDoesNotChargeTwice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	failures := 1
	repo := &flakyPaymentRepo{inner: NewRepository(f.db), failures: &failures}
	gateway := &recordingGateway{inner: payments.NewInProcessGateway()}
	costs, err := shipping.NewStaticTable(decimal.NewFromInt(400), shipping.DefaultCityTable())
	if err != nil {
		t.Fatalf("new shipping table: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(
		testTxRunner{db: f.db},
		repo,
		cart.NewRepository(f.db),
		f.ledger,
		costs,
		gateway,
		nil,
		nil,
		logg,
		5*time.Second,
	)
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}

	ctx := context.Background()
	userID := uuid.New()
	address := f.seedAddress(t, userID, "Colombo")
	listing := f.seedListing(t, 100, 5)
	f.seedCart(t, userID, map[*models.SupplierItem]int{listing: 1})

	order, err := svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     address.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("execute with one transient failure: %v", err)
	}

	if gateway.calls != 2 {
		t.Fatalf("expected the retry to call the gateway again, got %d calls", gateway.calls)
	}
	if len(gateway.txns) != 2 || gateway.txns[0] != gateway.txns[1] {
		t.Fatalf("retried attempt settled a second charge: %v", gateway.txns)
	}
	if order.Payment == nil || order.Payment.TransactionID == nil || *order.Payment.TransactionID != gateway.txns[0] {
		t.Fatalf("expected the order to carry the original charge, got %+v", order.Payment)
	}

	var paymentRows int64
	if err := f.db.Model(&models.Payment{}).Count(&paymentRows).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if paymentRows != 1 {
		t.Fatalf("expected 1 payment row, got %d", paymentRows)
	}
	if got := f.stockLevel(t, listing.ID); got != 4 {
		t.Fatalf("expected stock 4 after a single settled checkout, got %d", got)
	}
}

func TestExecuteCashOnDeliveryPaymentStaysPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	address := f.seedAddress(t, userID, "Colombo")
	listing := f.seedListing(t, 100, 5)
	f.seedCart(t, userID, map[*models.SupplierItem]int{listing: 1})

	order, err := f.svc.Execute(ctx, Input{
		UserID:        userID,
		AddressID:     address.ID,
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %+v", order.Payment)
	}
	if order.Payment.TransactionID != nil {
		t.Fatalf("cash on delivery should not carry a transaction id")
	}
}
