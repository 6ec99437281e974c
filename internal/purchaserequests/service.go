package purchaserequests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/internal/stock"
	"github.com/sandaruwanb/lankamart-backend/pkg/authz"
	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/notifier"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput captures a new restock request.
type CreateInput struct {
	SupplierItemID uuid.UUID
	Quantity       int
	Urgency        enums.RequestUrgency
	Notes          *string
}

// EditInput updates a pending request. Nil fields are left untouched.
type EditInput struct {
	Quantity *int
	Urgency  *enums.RequestUrgency
	Notes    *string
}

// ApproveInput carries the supplier's answer.
type ApproveInput struct {
	SupplierQuote     *decimal.Decimal
	NotesFromSupplier *string
}

// ListResult carries one page of requests and the cursor for the next one.
type ListResult struct {
	Requests   []models.SupplierItemRequest
	NextCursor string
}

// Service drives the restock request workflow between staff and suppliers.
type Service interface {
	Create(ctx context.Context, actor authz.Actor, input CreateInput) (*models.SupplierItemRequest, error)
	Edit(ctx context.Context, actor authz.Actor, requestID uuid.UUID, input EditInput) (*models.SupplierItemRequest, error)
	Approve(ctx context.Context, actor authz.Actor, requestID uuid.UUID, input ApproveInput) (*models.SupplierItemRequest, error)
	Reject(ctx context.Context, actor authz.Actor, requestID uuid.UUID, reason string) (*models.SupplierItemRequest, error)
	Cancel(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.SupplierItemRequest, error)
	Get(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.SupplierItemRequest, error)
	List(ctx context.Context, actor authz.Actor, status *enums.RequestStatus, params pagination.Params) (*ListResult, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger stock.Service
	notify notifier.Notifier
	logg   *logger.Logger
}

// NewService builds the purchase-request service.
func NewService(
	repo Repository,
	tx txRunner,
	ledger stock.Service,
	notify notifier.Notifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase-request repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, ledger: ledger, notify: notify, logg: logg}, nil
}

// Create opens a pending request against the listing's supplier.
func (s *service) Create(ctx context.Context, actor authz.Actor, input CreateInput) (*models.SupplierItemRequest, error) {
	if err := authz.EnsureCanCreateRequest(actor); err != nil {
		return nil, err
	}
	if input.SupplierItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier item id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	urgency := input.Urgency
	if urgency == "" {
		urgency = enums.RequestUrgencyMedium
	}
	if !urgency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid urgency")
	}

	listing, err := s.ledger.GetSupplierItem(ctx, input.SupplierItemID)
	if err != nil {
		return nil, err
	}

	request := &models.SupplierItemRequest{
		SupplierItemID: listing.ID,
		SupplierID:     listing.SupplierID,
		Quantity:       input.Quantity,
		Urgency:        urgency,
		Status:         enums.RequestStatusPending,
		Notes:          input.Notes,
		CreatedBy:      actor.UserID,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase request")
	}
	return request, nil
}

// Edit changes quantity, urgency, or notes while the request is pending.
func (s *service) Edit(ctx context.Context, actor authz.Actor, requestID uuid.UUID, input EditInput) (*models.SupplierItemRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authz.EnsureCanEditRequest(actor, request.CreatedBy); err != nil {
		return nil, err
	}
	if request.Status != enums.RequestStatusPending {
		return nil, s.notEditableError(request.Status)
	}

	if input.Quantity != nil && *input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Urgency != nil && !input.Urgency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid urgency")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// the pending predicate on the update itself is what keeps a stale
		// edit from overwriting a decision that landed in the meantime
		updated, err := repo.UpdatePending(ctx, requestID, EditUpdate{
			Quantity: input.Quantity,
			Urgency:  input.Urgency,
			Notes:    input.Notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "edit purchase request")
		}
		if !updated {
			current, err := repo.GetByID(ctx, requestID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase request")
			}
			return s.notEditableError(current.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadRequest(ctx, requestID)
}

// Approve records the supplier's acceptance and restocks the listing in the
// same transaction as the status flip.
func (s *service) Approve(ctx context.Context, actor authz.Actor, requestID uuid.UUID, input ApproveInput) (*models.SupplierItemRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authz.EnsureCanRespondToRequest(actor, request.SupplierID); err != nil {
		return nil, err
	}
	if input.SupplierQuote != nil && input.SupplierQuote.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier quote cannot be negative")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		decided, err := repo.Decide(ctx, requestID, DecisionUpdate{
			Status:            enums.RequestStatusApproved,
			SupplierQuote:     input.SupplierQuote,
			NotesFromSupplier: input.NotesFromSupplier,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve purchase request")
		}
		if !decided {
			return s.alreadyDecidedError(ctx, repo, requestID)
		}

		return s.ledger.WithTx(tx).Restock(ctx, request.SupplierItemID, request.Quantity)
	})
	if err != nil {
		return nil, err
	}

	if s.notify != nil {
		s.notify.PurchaseRequestDecided(ctx, requestID, enums.RequestStatusApproved.String())
	}
	return s.loadRequest(ctx, requestID)
}

// Reject records the supplier's refusal. A reason is mandatory.
func (s *service) Reject(ctx context.Context, actor authz.Actor, requestID uuid.UUID, reason string) (*models.SupplierItemRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authz.EnsureCanRespondToRequest(actor, request.SupplierID); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		decided, err := repo.Decide(ctx, requestID, DecisionUpdate{
			Status:          enums.RequestStatusRejected,
			RejectionReason: &reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject purchase request")
		}
		if !decided {
			return s.alreadyDecidedError(ctx, repo, requestID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notify != nil {
		s.notify.PurchaseRequestDecided(ctx, requestID, enums.RequestStatusRejected.String())
	}
	return s.loadRequest(ctx, requestID)
}

// Cancel withdraws a pending request.
func (s *service) Cancel(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.SupplierItemRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authz.EnsureCanCancelRequest(actor, request.CreatedBy); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		decided, err := repo.Decide(ctx, requestID, DecisionUpdate{Status: enums.RequestStatusCancelled})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel purchase request")
		}
		if !decided {
			return s.alreadyDecidedError(ctx, repo, requestID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadRequest(ctx, requestID)
}

// Get returns one request, scoped to the caller's role.
func (s *service) Get(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.SupplierItemRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(actor, request); err != nil {
		return nil, err
	}
	return request, nil
}

// List pages through requests. Suppliers only see requests aimed at them.
func (s *service) List(ctx context.Context, actor authz.Actor, status *enums.RequestStatus, params pagination.Params) (*ListResult, error) {
	filter := ListFilter{Status: status}
	switch {
	case actor.Role.IsStaff():
		// staff see everything
	case actor.Role == enums.RoleSupplier:
		if actor.SupplierID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "supplier account is not linked")
		}
		filter.SupplierID = actor.SupplierID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to list purchase requests")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.List(ctx, filter, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase requests")
	}

	result := &ListResult{Requests: rows}
	if len(rows) > limit {
		result.Requests = rows[:limit]
		last := result.Requests[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

func (s *service) ensureVisible(actor authz.Actor, request *models.SupplierItemRequest) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.Role == enums.RoleSupplier && actor.SupplierID != nil && *actor.SupplierID == request.SupplierID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "purchase request not found")
}

func (s *service) notEditableError(status enums.RequestStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase request is not editable").
		WithDetails(map[string]string{"status": status.String()})
}

// alreadyDecidedError reloads the request to report its terminal status.
func (s *service) alreadyDecidedError(ctx context.Context, repo Repository, requestID uuid.UUID) error {
	current, err := repo.GetByID(ctx, requestID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase request")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase request already decided").
		WithDetails(map[string]string{"status": current.Status.String()})
}

func (s *service) loadRequest(ctx context.Context, requestID uuid.UUID) (*models.SupplierItemRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase request")
	}
	return request, nil
}
