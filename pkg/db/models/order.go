package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharido-labs/kharido-backend/pkg/enums"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

// Order is a single-seller order produced by splitting a buyer's cart.
// Invariant: TotalPrice = ItemsPrice + ShippingPrice + TaxPrice - Discount.
type Order struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID           uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID          uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	ShippingAddress   *types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaymentMethod     enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null;default:'gateway'"`
	Currency          enums.Currency       `gorm:"column:currency;type:text;not null;default:'INR'"`
	ItemsPrice        decimal.Decimal      `gorm:"column:items_price;type:numeric(14,2);not null"`
	TaxPrice          decimal.Decimal      `gorm:"column:tax_price;type:numeric(14,2);not null"`
	ShippingPrice     decimal.Decimal      `gorm:"column:shipping_price;type:numeric(14,2);not null"`
	Discount          decimal.Decimal      `gorm:"column:discount;type:numeric(14,2);not null"`
	TotalPrice        decimal.Decimal      `gorm:"column:total_price;type:numeric(14,2);not null"`
	OrderStatus       enums.OrderStatus    `gorm:"column:order_status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	IdempotencyKey    string               `gorm:"column:idempotency_key;not null;index:idx_orders_buyer_idem,priority:2"`
	Commission        decimal.Decimal      `gorm:"column:commission;type:numeric(14,2);not null"`
	SellerEarnings    decimal.Decimal      `gorm:"column:seller_earnings;type:numeric(14,2);not null"`
	IsEarningsCredited bool                `gorm:"column:is_earnings_credited;not null;default:false"`
	PaymentResult     *types.PaymentResult `gorm:"column:payment_result;type:jsonb;serializer:json"`
	Items             []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt            *time.Time           `gorm:"column:paid_at"`
	DeliveredAt       *time.Time           `gorm:"column:delivered_at"`
	CancelledAt       *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
