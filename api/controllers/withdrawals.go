package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharido-labs/kharido-backend/api/responses"
	"github.com/kharido-labs/kharido-backend/api/validators"
	"github.com/kharido-labs/kharido-backend/internal/withdrawals"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

type withdrawalCreateRequest struct {
	Amount       string                  `json:"amount" validate:"required"`
	PayoutMethod string                  `json:"payout_method" validate:"required,oneof=bank_transfer upi wallet_app"`
	Destination  types.PayoutDestination `json:"destination" validate:"required"`
}

// WithdrawalCreate opens a cash-out request and places the matching hold on
// the seller's wallet.
func WithdrawalCreate(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload withdrawalCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid withdrawal amount"))
			return
		}
		method, err := enums.ParsePayoutMethod(payload.PayoutMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		created, err := svc.Create(r.Context(), withdrawals.CreateInput{
			SellerID:     sellerID,
			Amount:       amount,
			PayoutMethod: method,
			Destination:  payload.Destination,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newWithdrawalResponse(created))
	}
}

// WithdrawalList returns the requesting seller's withdrawal history.
func WithdrawalList(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listed, err := svc.ListForSeller(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWithdrawalListResponse(listed))
	}
}

// AdminWithdrawalList returns requests in the given status, pending by default.
func AdminWithdrawalList(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := enums.WithdrawalStatusPending
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseWithdrawalStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
				return
			}
			status = parsed
		}

		listed, err := svc.ListByStatus(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWithdrawalListResponse(listed))
	}
}

type withdrawalDecisionRequest struct {
	Notes                 *string `json:"notes,omitempty"`
	Reason                string  `json:"reason,omitempty"`
	ExternalTransactionID string  `json:"external_transaction_id,omitempty"`
}

// AdminWithdrawalApprove moves a pending request to approved.
func AdminWithdrawalApprove(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return adminDecision(svc.Approve, logg)
}

// AdminWithdrawalReject refuses a pending request and releases its hold.
func AdminWithdrawalReject(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return adminDecision(svc.Reject, logg)
}

// AdminWithdrawalProcess records the completed payout of an approved request.
func AdminWithdrawalProcess(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return adminDecision(svc.Process, logg)
}

func adminDecision(
	decide func(ctx context.Context, input withdrawals.DecisionInput) (*models.WithdrawalRequest, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := adminIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawalID, err := pathUUID(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload withdrawalDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := decide(r.Context(), withdrawals.DecisionInput{
			WithdrawalID:          withdrawalID,
			AdminID:               adminID,
			Notes:                 payload.Notes,
			Reason:                payload.Reason,
			ExternalTransactionID: payload.ExternalTransactionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWithdrawalResponse(updated))
	}
}

type withdrawalResponse struct {
	WithdrawalID          uuid.UUID               `json:"withdrawal_id"`
	SellerID              uuid.UUID               `json:"seller_id"`
	Amount                string                  `json:"amount"`
	PayoutMethod          string                  `json:"payout_method"`
	Destination           types.PayoutDestination `json:"destination"`
	Status                string                  `json:"status"`
	AdminNotes            *string                 `json:"admin_notes,omitempty"`
	RejectionReason       *string                 `json:"rejection_reason,omitempty"`
	ExternalTransactionID *string                 `json:"external_transaction_id,omitempty"`
	ProcessedAt           *time.Time              `json:"processed_at,omitempty"`
	CreatedAt             time.Time               `json:"created_at"`
}

func newWithdrawalResponse(request *models.WithdrawalRequest) withdrawalResponse {
	return withdrawalResponse{
		WithdrawalID:          request.ID,
		SellerID:              request.SellerID,
		Amount:                request.Amount.StringFixed(2),
		PayoutMethod:          string(request.PayoutMethod),
		Destination:           request.Destination,
		Status:                string(request.Status),
		AdminNotes:            request.AdminNotes,
		RejectionReason:       request.RejectionReason,
		ExternalTransactionID: request.ExternalTransactionID,
		ProcessedAt:           request.ProcessedAt,
		CreatedAt:             request.CreatedAt,
	}
}

func newWithdrawalListResponse(listed []models.WithdrawalRequest) []withdrawalResponse {
	out := make([]withdrawalResponse, 0, len(listed))
	for i := range listed {
		out = append(out, newWithdrawalResponse(&listed[i]))
	}
	return out
}
