package purchaserequests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
)

// GormRepository implements Repository on top of gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a purchase-request repository bound to the provided DB.
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

// Create inserts a new request.
func (r *GormRepository) Create(ctx context.Context, request *models.SupplierItemRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// GetByID loads one request.
func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SupplierItemRequest, error) {
	var request models.SupplierItemRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdatePending writes edits with the same pending predicate Decide uses, so
// a concurrent decision can never be overwritten by a stale edit.
func (r *GormRepository) UpdatePending(ctx context.Context, id uuid.UUID, update EditUpdate) (bool, error) {
	values := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if update.Quantity != nil {
		values["quantity"] = *update.Quantity
	}
	if update.Urgency != nil {
		values["urgency"] = *update.Urgency
	}
	if update.Notes != nil {
		values["notes"] = *update.Notes
	}

	result := r.db.WithContext(ctx).
		Model(&models.SupplierItemRequest{}).
		Where("id = ? AND status = ?", id, enums.RequestStatusPending).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Decide performs the guarded terminal transition. The pending predicate
// guarantees at most one decision ever lands.
func (r *GormRepository) Decide(ctx context.Context, id uuid.UUID, update DecisionUpdate) (bool, error) {
	values := map[string]any{
		"status":     update.Status,
		"decided_at": time.Now().UTC(),
	}
	if update.RejectionReason != nil {
		values["rejection_reason"] = *update.RejectionReason
	}
	if update.SupplierQuote != nil {
		values["supplier_quote"] = *update.SupplierQuote
	}
	if update.NotesFromSupplier != nil {
		values["notes_from_supplier"] = *update.NotesFromSupplier
	}

	result := r.db.WithContext(ctx).
		Model(&models.SupplierItemRequest{}).
		Where("id = ? AND status = ?", id, enums.RequestStatusPending).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List returns requests matching the filter, newest first, keyed by the cursor.
func (r *GormRepository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.SupplierItemRequest, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.SupplierItemRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
