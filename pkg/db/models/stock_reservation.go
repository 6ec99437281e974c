package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
)

// StockReservation records a committed stock decrement tied to one order line.
// Release flips the status with a conditional update, which makes the release
// idempotent when a cancellation is retried.
type StockReservation struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	SupplierItemID uuid.UUID               `gorm:"column:supplier_item_id;type:uuid;not null;index"`
	OrderID        uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	Quantity       int                     `gorm:"column:quantity;not null"`
	Status         enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'reserved'"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *StockReservation) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}
