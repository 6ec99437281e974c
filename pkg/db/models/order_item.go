package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem snapshots one line of an order. UnitPrice is the live supplier
// price at checkout time and is immutable once the order exists.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SupplierItemID uuid.UUID       `gorm:"column:supplier_item_id;type:uuid;not null"`
	SupplierID     uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *OrderItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}
