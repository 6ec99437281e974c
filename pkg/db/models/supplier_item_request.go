package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
)

// SupplierItemRequest asks a supplier to restock a listing. Mutated only by
// the purchase-request workflow; approved/rejected/cancelled are terminal.
type SupplierItemRequest struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SupplierItemID    uuid.UUID            `gorm:"column:supplier_item_id;type:uuid;not null;index"`
	SupplierID        uuid.UUID            `gorm:"column:supplier_id;type:uuid;not null;index"`
	Quantity          int                  `gorm:"column:quantity;not null"`
	Urgency           enums.RequestUrgency `gorm:"column:urgency;type:text;not null;default:'medium'"`
	Status            enums.RequestStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	Notes             *string              `gorm:"column:notes"`
	RejectionReason   *string              `gorm:"column:rejection_reason"`
	SupplierQuote     *decimal.Decimal     `gorm:"column:supplier_quote;type:numeric(12,2)"`
	NotesFromSupplier *string              `gorm:"column:notes_from_supplier"`
	CreatedBy         uuid.UUID            `gorm:"column:created_by;type:uuid;not null;index"`
	DecidedAt         *time.Time           `gorm:"column:decided_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt       `gorm:"column:deleted_at;index"`
}

func (s *SupplierItemRequest) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}
