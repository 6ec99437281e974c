package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
)

// Reservation failure reasons surfaced to checkout.
const (
	ReasonInsufficientStock = "insufficient_stock"
	ReasonItemNotFound      = "item_not_found"
	ReasonItemInactive      = "item_inactive"
)

// ReserveRequest asks for qty units of one listing on behalf of an order.
type ReserveRequest struct {
	SupplierItemID uuid.UUID
	OrderID        uuid.UUID
	Quantity       int
}

// ReserveResult reports the per-item outcome. Reason is empty on success.
type ReserveResult struct {
	SupplierItemID uuid.UUID
	Reserved       bool
	Reason         string
}

// Service is the stock ledger. Every stock_level mutation in the system goes
// through it.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Reserve(ctx context.Context, requests []ReserveRequest) ([]ReserveResult, error)
	ReleaseForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	Restock(ctx context.Context, supplierItemID uuid.UUID, qty int) error
	GetSupplierItem(ctx context.Context, id uuid.UUID) (*models.SupplierItem, error)
}

type service struct {
	repo Repository
}

// NewService builds the stock ledger backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{repo: repo}, nil
}

// WithTx scopes the ledger to a transaction so callers can compose it with
// their own writes.
func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

// Reserve attempts a guarded decrement for every request and records a
// reservation row for each success. Failures are reported per item so the
// caller can surface which lines were short.
func (s *service) Reserve(ctx context.Context, requests []ReserveRequest) ([]ReserveResult, error) {
	for _, req := range requests {
		if req.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be at least 1")
		}
		if req.SupplierItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier item id is required")
		}
	}

	results := make([]ReserveResult, 0, len(requests))
	for _, req := range requests {
		result := ReserveResult{SupplierItemID: req.SupplierItemID}

		ok, err := s.repo.DecrementStock(ctx, req.SupplierItemID, req.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			result.Reason = s.classifyFailure(ctx, req.SupplierItemID)
			results = append(results, result)
			continue
		}

		reservation := &models.StockReservation{
			SupplierItemID: req.SupplierItemID,
			OrderID:        req.OrderID,
			Quantity:       req.Quantity,
		}
		if err := s.repo.CreateReservation(ctx, reservation); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}
		result.Reserved = true
		results = append(results, result)
	}
	return results, nil
}

// classifyFailure distinguishes a short listing from a missing or retired one.
// The guarded decrement already failed, so this read is informational only.
func (s *service) classifyFailure(ctx context.Context, id uuid.UUID) string {
	item, err := s.repo.GetSupplierItem(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReasonItemNotFound
		}
		return ReasonInsufficientStock
	}
	if !item.IsActive {
		return ReasonItemInactive
	}
	return ReasonInsufficientStock
}

// ReleaseForOrder returns every still-held reservation for the order to
// stock. Re-running it is a no-op because each reservation is flipped with a
// conditional update before the increment.
func (s *service) ReleaseForOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	reservations, err := s.repo.ListReservedForOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}

	released := 0
	for _, reservation := range reservations {
		flipped, err := s.repo.MarkReservationReleased(ctx, reservation.ID)
		if err != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservation")
		}
		if !flipped {
			continue
		}
		if err := s.repo.IncrementStock(ctx, reservation.SupplierItemID, reservation.Quantity); err != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return stock")
		}
		released++
	}
	return released, nil
}

// Restock adds approved replenishment quantity to a listing.
func (s *service) Restock(ctx context.Context, supplierItemID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be at least 1")
	}
	if _, err := s.repo.GetSupplierItem(ctx, supplierItemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "supplier item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier item")
	}
	if err := s.repo.IncrementStock(ctx, supplierItemID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock supplier item")
	}
	return nil
}

// GetSupplierItem exposes listing lookups to other services.
func (s *service) GetSupplierItem(ctx context.Context, id uuid.UUID) (*models.SupplierItem, error) {
	item, err := s.repo.GetSupplierItem(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier item")
	}
	return item, nil
}
