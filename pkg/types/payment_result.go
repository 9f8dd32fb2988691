package types

import "time"

// PaymentResult records the gateway outcome attached to a paid order.
type PaymentResult struct {
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Signature        string    `json:"signature"`
	Status           string    `json:"status"`
	PaidAt           time.Time `json:"paid_at"`
}
