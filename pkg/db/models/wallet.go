package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a seller's cached ledger aggregates. The transaction log in
// wallet_transactions is authoritative; these columns are recomputable from it.
// Invariant: Balance = TotalEarnings - TotalWithdrawn - PendingWithdrawals.
type Wallet struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID           uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;uniqueIndex"`
	Balance            decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null"`
	TotalEarnings      decimal.Decimal `gorm:"column:total_earnings;type:numeric(14,2);not null"`
	TotalWithdrawn     decimal.Decimal `gorm:"column:total_withdrawn;type:numeric(14,2);not null"`
	PendingWithdrawals decimal.Decimal `gorm:"column:pending_withdrawals;type:numeric(14,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
