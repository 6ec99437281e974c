package purchaserequests

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
)

// ListFilter narrows purchase-request listings.
type ListFilter struct {
	SupplierID *uuid.UUID
	CreatedBy  *uuid.UUID
	Status     *enums.RequestStatus
}

// EditUpdate carries the columns a pending request can change. Nil fields
// are left untouched.
type EditUpdate struct {
	Quantity *int
	Urgency  *enums.RequestUrgency
	Notes    *string
}

// DecisionUpdate carries the columns written alongside a status decision.
type DecisionUpdate struct {
	Status            enums.RequestStatus
	RejectionReason   *string
	SupplierQuote     *decimal.Decimal
	NotesFromSupplier *string
}

// Repository defines the persistence surface for purchase requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.SupplierItemRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SupplierItemRequest, error)
	// UpdatePending writes the edited columns behind a pending predicate so
	// an edit can never land on a decided request. It reports false when the
	// request was no longer pending.
	UpdatePending(ctx context.Context, id uuid.UUID, update EditUpdate) (bool, error)
	// Decide flips a pending request into a terminal status with a guarded
	// update. It reports false when the request was no longer pending.
	Decide(ctx context.Context, id uuid.UUID, update DecisionUpdate) (bool, error)
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.SupplierItemRequest, error)
}
