package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
)

// Order is created only by the checkout process and mutated only by the order
// state machine. TotalAmount is fixed at creation time and never recomputed.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber  string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID       uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID    uuid.UUID         `gorm:"column:address_id;type:uuid;not null"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalAmount  decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ShippingCost decimal.Decimal   `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	OrderDate    time.Time         `gorm:"column:order_date;not null"`
	DeliveryDate *time.Time        `gorm:"column:delivery_date"`
	Items        []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment      *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}
