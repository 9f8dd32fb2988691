package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kharido-labs/kharido-backend/api/responses"
	"github.com/kharido-labs/kharido-backend/api/validators"
	"github.com/kharido-labs/kharido-backend/internal/payments"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
)

type paymentInitiateRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1"`
}

type paymentInitiateResponse struct {
	GatewayOrderID string `json:"gateway_order_id"`
	AmountPaise    int64  `json:"amount_paise"`
	Currency       string `json:"currency"`
}

// PaymentInitiate opens a gateway payment covering the buyer's orders.
func PaymentInitiate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentInitiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), payments.InitiateInput{
			BuyerID:  buyerID,
			OrderIDs: payload.OrderIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentInitiateResponse{
			GatewayOrderID: result.GatewayOrderID,
			AmountPaise:    result.AmountPaise,
			Currency:       result.Currency,
		})
	}
}

type paymentCaptureRequest struct {
	OrderIDs         []uuid.UUID `json:"order_ids" validate:"required,min=1"`
	GatewayOrderID   string      `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string      `json:"gateway_payment_id" validate:"required"`
	Signature        string      `json:"signature" validate:"required"`
}

// PaymentCapture completes a gateway payment and marks every covered order
// paid in one atomic update.
func PaymentCapture(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentCaptureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		captured, err := svc.Capture(r.Context(), payments.CaptureInput{
			BuyerID:          buyerID,
			OrderIDs:         payload.OrderIDs,
			GatewayOrderID:   payload.GatewayOrderID,
			GatewayPaymentID: payload.GatewayPaymentID,
			Signature:        payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(captured))
	}
}
