package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
)

// Repository defines the persistence surface required by checkout.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAddress(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// GormRepository implements Repository on top of gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a checkout repository bound to the provided DB.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &GormRepository{db: tx}
}

// GetAddress loads an address owned by the user.
func (r *GormRepository) GetAddress(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		First(&address, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// CreateOrder inserts the order together with its items.
func (r *GormRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// CreatePayment inserts the payment row.
func (r *GormRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetOrderByID reloads an order with its items and payment.
func (r *GormRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
