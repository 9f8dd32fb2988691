package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharido-labs/kharido-backend/pkg/enums"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

// WithdrawalRequest is a seller's cash-out request. Lifecycle is forward-only:
// pending -> approved -> processed, or pending -> rejected. A partial unique
// index on (seller_id) WHERE status = 'pending' enforces at most one open
// request per seller.
type WithdrawalRequest struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID              uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	Amount                decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	PayoutMethod          enums.PayoutMethod      `gorm:"column:payout_method;type:text;not null"`
	Destination           types.PayoutDestination `gorm:"column:destination;type:jsonb;serializer:json"`
	Status                enums.WithdrawalStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	AdminNotes            *string                 `gorm:"column:admin_notes"`
	RejectionReason       *string                 `gorm:"column:rejection_reason"`
	ExternalTransactionID *string                 `gorm:"column:external_transaction_id"`
	ProcessedBy           *uuid.UUID              `gorm:"column:processed_by;type:uuid"`
	ProcessedAt           *time.Time              `gorm:"column:processed_at"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
