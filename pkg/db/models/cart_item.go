package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem is unique per (cart, product). The unit price is an advisory
// snapshot taken at add-time; checkout re-reads the live price before
// creating the order.
type CartItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID         uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	SupplierItemID uuid.UUID       `gorm:"column:supplier_item_id;type:uuid;not null"`
	SupplierID     uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}
