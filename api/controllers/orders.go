package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kharido-labs/kharido-backend/api/responses"
	"github.com/kharido-labs/kharido-backend/api/validators"
	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

// ListOrders returns the requesting buyer's orders, newest first.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listed, err := svc.ListForBuyer(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(listed))
	}
}

// SellerOrders returns the requesting seller's orders, newest first.
func SellerOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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
		responses.WriteSuccess(w, newOrderListResponse(listed))
	}
}

// OrderDetail returns one order; only its buyer or seller may see it.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !requestOwnsOrder(r, order) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed processing shipped delivered cancelled"`
}

// UpdateOrderStatus lets the selling side advance an order through its
// lifecycle. Delivery is the transition that releases seller earnings.
func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		next, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		current, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if current.SellerID != sellerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), orderID, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*updated))
	}
}

// CancelOrder lets the buyer cancel before fulfilment starts.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if current.BuyerID != buyerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		cancelled, err := svc.Cancel(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*cancelled))
	}
}

func requestOwnsOrder(r *http.Request, order *models.Order) bool {
	if buyerID, err := buyerIDFromRequest(r); err == nil && order.BuyerID == buyerID {
		return true
	}
	if sellerID, err := sellerIDFromRequest(r); err == nil && order.SellerID == sellerID {
		return true
	}
	return false
}

type orderResponse struct {
	OrderID         uuid.UUID           `json:"order_id"`
	SellerID        uuid.UUID           `json:"seller_id"`
	OrderStatus     string              `json:"order_status"`
	PaymentStatus   string              `json:"payment_status"`
	PaymentMethod   string              `json:"payment_method"`
	Currency        string              `json:"currency"`
	ItemsPrice      string              `json:"items_price"`
	TaxPrice        string              `json:"tax_price"`
	ShippingPrice   string              `json:"shipping_price"`
	Discount        string              `json:"discount"`
	TotalPrice      string              `json:"total_price"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	Items           []orderItemResponse `json:"items"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	ListingID uuid.UUID `json:"listing_id"`
	Name      string    `json:"name"`
	ImageURL  *string   `json:"image_url,omitempty"`
	SKU       *string   `json:"sku,omitempty"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

func newOrderListResponse(listed []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(listed))
	for _, order := range listed {
		out = append(out, newOrderResponse(order))
	}
	return out
}

func newOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			ListingID: item.ListingID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
		})
	}
	return orderResponse{
		OrderID:         order.ID,
		SellerID:        order.SellerID,
		OrderStatus:     string(order.OrderStatus),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentMethod:   string(order.PaymentMethod),
		Currency:        string(order.Currency),
		ItemsPrice:      order.ItemsPrice.StringFixed(2),
		TaxPrice:        order.TaxPrice.StringFixed(2),
		ShippingPrice:   order.ShippingPrice.StringFixed(2),
		Discount:        order.Discount.StringFixed(2),
		TotalPrice:      order.TotalPrice.StringFixed(2),
		ShippingAddress: order.ShippingAddress,
		Items:           items,
		PaidAt:          order.PaidAt,
		DeliveredAt:     order.DeliveredAt,
		CreatedAt:       order.CreatedAt,
	}
}
