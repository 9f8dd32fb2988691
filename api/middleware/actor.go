package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kharido-labs/kharido-backend/api/responses"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
)

// Actor identity arrives from the edge proxy as trusted headers; this service
// does not terminate authentication itself.
const (
	buyerIDHeader  = "X-Buyer-Id"
	sellerIDHeader = "X-Seller-Id"
	adminIDHeader  = "X-Admin-Id"
)

// ActorContext copies the actor identity headers into the request context so
// handlers and the idempotency scope can reach them.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if v := headerUUID(r, buyerIDHeader); v != "" {
				ctx = WithBuyerID(ctx, v)
			}
			if v := headerUUID(r, sellerIDHeader); v != "" {
				ctx = WithSellerID(ctx, v)
			}
			if v := headerUUID(r, adminIDHeader); v != "" {
				ctx = WithAdminID(ctx, v)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireBuyer rejects requests that carry no buyer identity.
func RequireBuyer(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireActor(logg, BuyerIDFromContext, "buyer identity required")
}

// RequireSeller rejects requests that carry no seller identity.
func RequireSeller(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireActor(logg, SellerIDFromContext, "seller identity required")
}

// RequireAdmin rejects requests that carry no admin identity.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireActor(logg, AdminIDFromContext, "admin identity required")
}

func requireActor(logg *logger.Logger, lookup func(context.Context) string, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if lookup(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, message))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func headerUUID(r *http.Request, header string) string {
	value := strings.TrimSpace(r.Header.Get(header))
	if value == "" {
		return ""
	}
	if _, err := uuid.Parse(value); err != nil {
		return ""
	}
	return value
}
