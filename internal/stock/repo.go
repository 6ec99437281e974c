package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
)

// GormRepository implements Repository on top of gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a stock repository bound to the provided DB.
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

// GetSupplierItem loads a listing by id.
func (r *GormRepository) GetSupplierItem(ctx context.Context, id uuid.UUID) (*models.SupplierItem, error) {
	var item models.SupplierItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// DecrementStock performs the guarded decrement. The stock_level predicate
// keeps the counter non-negative under concurrent checkouts without a prior
// read.
func (r *GormRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SupplierItem{}).
		Where("id = ? AND is_active = ? AND stock_level >= ?", id, true, qty).
		Update("stock_level", gorm.Expr("stock_level - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IncrementStock adds qty back to the listing.
func (r *GormRepository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.SupplierItem{}).
		Where("id = ?", id).
		Update("stock_level", gorm.Expr("stock_level + ?", qty)).Error
}

// CreateReservation inserts a reservation row.
func (r *GormRepository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// MarkReservationReleased flips the status only when it is still reserved, so
// a retried release never double-credits stock.
func (r *GormRepository) MarkReservationReleased(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", id, enums.ReservationStatusReserved).
		Update("status", enums.ReservationStatusReleased)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListReservedForOrder returns the reservations still held for an order.
func (r *GormRepository) ListReservedForOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusReserved).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
