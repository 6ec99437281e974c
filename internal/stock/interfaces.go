package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
)

// Repository defines the persistence surface required by the stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetSupplierItem(ctx context.Context, id uuid.UUID) (*models.SupplierItem, error)
	// DecrementStock subtracts qty only when enough stock remains. It reports
	// whether the row was updated.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	// MarkReservationReleased flips a reservation from reserved to released.
	// It reports false when the reservation was already released.
	MarkReservationReleased(ctx context.Context, id uuid.UUID) (bool, error)
	ListReservedForOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
}
