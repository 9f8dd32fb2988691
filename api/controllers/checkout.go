package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharido-labs/kharido-backend/api/responses"
	"github.com/kharido-labs/kharido-backend/api/validators"
	checkoutsvc "github.com/kharido-labs/kharido-backend/internal/checkout"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

// Checkout splits the buyer's mixed-seller cart into per-seller orders.
// The Idempotency-Key header doubles as the split's database-level dedup key.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if idempotencyKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toSplitInput(buyerID, idempotencyKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Split(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderListResponse(created))
	}
}

type checkoutRequest struct {
	ShippingAddress types.Address  `json:"shipping_address" validate:"required"`
	PaymentMethod   string         `json:"payment_method" validate:"omitempty,oneof=cod card gateway"`
	Discount        string         `json:"discount" validate:"omitempty"`
	Items           []checkoutItem `json:"items" validate:"required,min=1,dive"`
}

type checkoutItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	SellerID  uuid.UUID `json:"seller_id" validate:"required"`
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

func (c checkoutRequest) toSplitInput(buyerID uuid.UUID, idempotencyKey string) (checkoutsvc.SplitInput, error) {
	discount := decimal.Zero
	if strings.TrimSpace(c.Discount) != "" {
		parsed, err := decimal.NewFromString(c.Discount)
		if err != nil {
			return checkoutsvc.SplitInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount amount")
		}
		discount = parsed
	}

	method := enums.PaymentMethodGateway
	if c.PaymentMethod != "" {
		parsed, err := enums.ParsePaymentMethod(c.PaymentMethod)
		if err != nil {
			return checkoutsvc.SplitInput{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		method = parsed
	}

	items := make([]checkoutsvc.CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, checkoutsvc.CartItem{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			ListingID: item.ListingID,
			Quantity:  item.Quantity,
		})
	}

	address := c.ShippingAddress
	return checkoutsvc.SplitInput{
		BuyerID:         buyerID,
		IdempotencyKey:  idempotencyKey,
		ShippingAddress: &address,
		PaymentMethod:   method,
		Discount:        discount,
		Items:           items,
	}, nil
}
