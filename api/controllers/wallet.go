package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kharido-labs/kharido-backend/api/responses"
	"github.com/kharido-labs/kharido-backend/internal/wallet"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
)

type walletResponse struct {
	SellerID           uuid.UUID `json:"seller_id"`
	Balance            string    `json:"balance"`
	TotalEarnings      string    `json:"total_earnings"`
	TotalWithdrawn     string    `json:"total_withdrawn"`
	PendingWithdrawals string    `json:"pending_withdrawals"`
}

type walletTransactionResponse struct {
	Sequence     int64      `json:"sequence"`
	Type         string     `json:"type"`
	Amount       string     `json:"amount"`
	Description  string     `json:"description"`
	OrderID      *uuid.UUID `json:"order_id,omitempty"`
	WithdrawalID *uuid.UUID `json:"withdrawal_id,omitempty"`
	BalanceAfter string     `json:"balance_after"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// WalletSummary returns the requesting seller's cached ledger aggregates.
func WalletSummary(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loaded, err := svc.GetBySellerID(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(loaded))
	}
}

// WalletTransactions returns the seller's full ledger, oldest first.
func WalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.ListTransactions(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]walletTransactionResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, walletTransactionResponse{
				Sequence:     entry.Sequence,
				Type:         string(entry.Type),
				Amount:       entry.Amount.StringFixed(2),
				Description:  entry.Description,
				OrderID:      entry.OrderID,
				WithdrawalID: entry.WithdrawalID,
				BalanceAfter: entry.BalanceAfter.StringFixed(2),
				Status:       string(entry.Status),
				CreatedAt:    entry.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

func newWalletResponse(loaded *models.Wallet) walletResponse {
	return walletResponse{
		SellerID:           loaded.SellerID,
		Balance:            loaded.Balance.StringFixed(2),
		TotalEarnings:      loaded.TotalEarnings.StringFixed(2),
		TotalWithdrawn:     loaded.TotalWithdrawn.StringFixed(2),
		PendingWithdrawals: loaded.PendingWithdrawals.StringFixed(2),
	}
}
