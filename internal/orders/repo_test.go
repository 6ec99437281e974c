package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
	))
	return db
}

func createOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, number int, created time.Time, status enums.OrderStatus, paymentStatus enums.PaymentStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderNumber:  fmt.Sprintf("LM-2026-%06d", number),
		UserID:       userID,
		AddressID:    uuid.New(),
		Status:       status,
		TotalAmount:  decimal.NewFromInt(450),
		ShippingCost: decimal.NewFromInt(50),
		OrderDate:    created,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, db.Create(order).Error)

	item := &models.OrderItem{
		OrderID:        order.ID,
		ProductID:      uuid.New(),
		SupplierItemID: uuid.New(),
		SupplierID:     uuid.New(),
		Quantity:       2,
		UnitPrice:      decimal.NewFromInt(200),
	}
	require.NoError(t, db.Create(item).Error)

	payment := &models.Payment{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCashOnDelivery,
		Status:  paymentStatus,
		Amount:  order.TotalAmount,
	}
	require.NoError(t, db.Create(payment).Error)
	return order
}

func TestRepositoryUpdateStatus_guarded(t *testing.T) {
	t.Parallel()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := createOrder(t, db, uuid.New(), 1, time.Now().UTC(), enums.OrderStatusPending, enums.PaymentStatusPending)

	moved, err := repo.UpdateStatus(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, moved)

	// Second mover loses: the row is no longer pending.
	moved, err = repo.UpdateStatus(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, moved)

	reloaded, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, reloaded.Status)
	require.Len(t, reloaded.Items, 1)
	require.NotNil(t, reloaded.Payment)
}

func TestRepositoryList_paginationAndFilters(t *testing.T) {
	t.Parallel()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	userA := uuid.New()
	userB := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)
	createOrder(t, db, userA, 1, now.Add(-2*time.Hour), enums.OrderStatusPending, enums.PaymentStatusPending)
	second := createOrder(t, db, userA, 2, now.Add(-time.Hour), enums.OrderStatusConfirmed, enums.PaymentStatusPaid)
	createOrder(t, db, userB, 3, now, enums.OrderStatusPending, enums.PaymentStatusPending)

	rows, err := repo.List(context.Background(), ListFilter{UserID: &userA}, 10, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)

	cursor := &pagination.Cursor{CreatedAt: rows[0].CreatedAt, ID: rows[0].ID}
	rest, err := repo.List(context.Background(), ListFilter{UserID: &userA}, 10, cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "LM-2026-000001", rest[0].OrderNumber)

	pending := enums.OrderStatusPending
	filtered, err := repo.List(context.Background(), ListFilter{Status: &pending}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestRepositoryListStalePending(t *testing.T) {
	t.Parallel()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	stale := createOrder(t, db, uuid.New(), 1, now.Add(-72*time.Hour), enums.OrderStatusPending, enums.PaymentStatusPending)
	createOrder(t, db, uuid.New(), 2, now.Add(-72*time.Hour), enums.OrderStatusConfirmed, enums.PaymentStatusPaid)
	createOrder(t, db, uuid.New(), 3, now, enums.OrderStatusPending, enums.PaymentStatusPending)

	rows, err := repo.ListStalePending(context.Background(), now.Add(-48*time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}
