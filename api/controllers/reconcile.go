package controllers

import (
	"net/http"

	"github.com/kharido-labs/kharido-backend/api/responses"
	"github.com/kharido-labs/kharido-backend/internal/reconcile"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
)

// AdminWalletRebuild replays one seller's history into a fresh ledger.
func AdminWalletRebuild(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := adminIDFromRequest(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, err := pathUUID(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rebuilt, err := svc.Rebuild(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(rebuilt))
	}
}

// AdminWalletRebuildAll repairs every seller wallet, reporting per-seller
// failures without stopping the sweep.
func AdminWalletRebuildAll(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := adminIDFromRequest(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RebuildAll(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "rebuilt"})
	}
}
