package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SupplierItem is a supplier's listing of a product. Its stock_level is the
// single contended counter in the system and is mutated only through the
// stock ledger's atomic operations.
type SupplierItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	SupplierID    uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null;index"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	PurchasePrice decimal.Decimal `gorm:"column:purchase_price;type:numeric(12,2);not null"`
	StockLevel    int             `gorm:"column:stock_level;not null;default:0"`
	LeadTimeDays  int             `gorm:"column:lead_time_days;not null;default:0"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (s *SupplierItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}
