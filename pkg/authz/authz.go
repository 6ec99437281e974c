package authz

import (
	"github.com/google/uuid"

	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
)

// Actor identifies the authenticated caller for authorization checks.
type Actor struct {
	UserID     uuid.UUID
	Role       enums.Role
	SupplierID *uuid.UUID
}

// EnsureOrderVisible allows staff to see any order and customers only their own.
func EnsureOrderVisible(actor Actor, ownerID uuid.UUID) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.UserID == ownerID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// EnsureCanAdvanceOrder enforces who may move an order into the target status.
// Customers may only cancel their own orders; every other transition is staff-only.
func EnsureCanAdvanceOrder(actor Actor, ownerID uuid.UUID, target enums.OrderStatus) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if target == enums.OrderStatusCancelled && actor.UserID == ownerID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to update this order")
}

// EnsureCanCreateRequest restricts purchase-request creation to staff.
func EnsureCanCreateRequest(actor Actor) error {
	if actor.Role.IsStaff() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only staff can create purchase requests")
}

// EnsureCanEditRequest allows the creating staff member or an admin to edit.
func EnsureCanEditRequest(actor Actor, createdBy uuid.UUID) error {
	if actor.Role == enums.RoleAdmin {
		return nil
	}
	if actor.Role.IsStaff() && actor.UserID == createdBy {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to edit this purchase request")
}

// EnsureCanRespondToRequest allows only the supplier the request targets to
// approve or reject it.
func EnsureCanRespondToRequest(actor Actor, supplierID uuid.UUID) error {
	if actor.Role != enums.RoleSupplier {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the supplier can respond to a purchase request")
	}
	if actor.SupplierID == nil || *actor.SupplierID != supplierID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "purchase request belongs to another supplier")
	}
	return nil
}

// EnsureCanCancelRequest allows the creator or an admin to cancel.
func EnsureCanCancelRequest(actor Actor, createdBy uuid.UUID) error {
	if actor.Role == enums.RoleAdmin {
		return nil
	}
	if actor.UserID == createdBy {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to cancel this purchase request")
}
