package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
)

// ListFilter narrows order listings.
type ListFilter struct {
	// UserID restricts results to one customer when set.
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

// Repository defines the persistence surface required by the order service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateStatus moves the order from one status to another with a guarded
	// update. It reports false when the order was not in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	SetDeliveryDate(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status enums.PaymentStatus) error
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error)
}
