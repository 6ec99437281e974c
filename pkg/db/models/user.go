package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
)

// User carries only the columns the order and purchase-request flows consult.
// Account management lives in a separate service.
type User struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email      string     `gorm:"column:email;not null;uniqueIndex"`
	Role       enums.Role `gorm:"column:role;type:text;not null;default:'customer'"`
	SupplierID *uuid.UUID `gorm:"column:supplier_id;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}
