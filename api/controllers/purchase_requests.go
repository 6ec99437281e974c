package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sandaruwanb/lankamart-backend/api/responses"
	"github.com/sandaruwanb/lankamart-backend/api/validators"
	prsvc "github.com/sandaruwanb/lankamart-backend/internal/purchaserequests"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/pagination"
)

type createPurchaseRequestRequest struct {
	SupplierItemID uuid.UUID `json:"supplier_item_id" validate:"required"`
	Quantity       int       `json:"quantity" validate:"required,min=1"`
	Urgency        string    `json:"urgency" validate:"omitempty,oneof=high medium low"`
	Notes          *string   `json:"notes"`
}

type editPurchaseRequestRequest struct {
	Quantity *int    `json:"quantity" validate:"omitempty,min=1"`
	Urgency  *string `json:"urgency" validate:"omitempty,oneof=high medium low"`
	Notes    *string `json:"notes"`
}

type approvePurchaseRequestRequest struct {
	SupplierQuote     *string `json:"supplier_quote"`
	NotesFromSupplier *string `json:"notes_from_supplier"`
}

type rejectPurchaseRequestRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type purchaseRequestListResponse struct {
	Requests   []PurchaseRequestView `json:"requests"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// PurchaseRequestCreate opens a restock request against a listing's supplier.
func PurchaseRequestCreate(svc prsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPurchaseRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := prsvc.CreateInput{
			SupplierItemID: payload.SupplierItemID,
			Quantity:       payload.Quantity,
			Notes:          payload.Notes,
		}
		if payload.Urgency != "" {
			urgency, err := enums.ParseRequestUrgency(payload.Urgency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid urgency"))
				return
			}
			input.Urgency = urgency
		}

		request, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPurchaseRequestView(request))
	}
}

// PurchaseRequestList pages through requests visible to the caller.
func PurchaseRequestList(svc prsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.RequestStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		result, err := svc.List(r.Context(), actor, status, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchaseRequestListResponse{
			Requests:   newPurchaseRequestViews(result.Requests),
			NextCursor: result.NextCursor,
		})
	}
}

// PurchaseRequestDetail returns one request visible to the caller.
func PurchaseRequestDetail(svc prsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseRequestView(request))
	}
}

// PurchaseRequestEdit updates a pending request.
func PurchaseRequestEdit(svc prsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload editPurchaseRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := prsvc.EditInput{Quantity: payload.Quantity, Notes: payload.Notes}
		if payload.Urgency != nil {
			urgency, err := enums.ParseRequestUrgency(*payload.Urgency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid urgency"))
				return
			}
			input.Urgency = &urgency
		}

		request, err := svc.Edit(r.Context(), actor, requestID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseRequestView(request))
	}
}

// PurchaseRequestApprove records the supplier's acceptance and restocks the
// listing.
func PurchaseRequestApprove(svc prsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload approvePurchaseRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := prsvc.ApproveInput{NotesFromSupplier: payload.NotesFromSupplier}
		if payload.SupplierQuote != nil {
			quote, err := decimal.NewFromString(*payload.SupplierQuote)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid supplier quote"))
				return
			}
			input.SupplierQuote = &quote
		}

		request, err := svc.Approve(r.Context(), actor, requestID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseRequestView(request))
	}
}

// PurchaseRequestReject records the supplier's refusal. A reason is mandatory.
func PurchaseRequestReject(svc prsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload rejectPurchaseRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Reject(r.Context(), actor, requestID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseRequestView(request))
	}
}

// PurchaseRequestCancel withdraws a pending request.
func PurchaseRequestCancel(svc prsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := validators.ParsePathUUID(chi.URLParam(r, "requestId"), "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Cancel(r.Context(), actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseRequestView(request))
	}
}
