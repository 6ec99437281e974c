package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sandaruwanb/lankamart-backend/api/responses"
	"github.com/sandaruwanb/lankamart-backend/api/validators"
	checkoutsvc "github.com/sandaruwanb/lankamart-backend/internal/checkout"
	"github.com/sandaruwanb/lankamart-backend/pkg/enums"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
)

type checkoutRequest struct {
	AddressID     uuid.UUID `json:"address_id" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.Execute(r.Context(), checkoutsvc.Input{
			UserID:        actor.UserID,
			AddressID:     payload.AddressID,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(order))
	}
}
