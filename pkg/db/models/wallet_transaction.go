package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharido-labs/kharido-backend/pkg/enums"
)

// WalletTransaction is one immutable entry of a wallet's append-only ledger,
// ordered by Sequence within the wallet. The single permitted mutation is the
// pending -> completed status flip when a withdrawal is processed.
type WalletTransaction struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID     uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;uniqueIndex:uq_wallet_tx_sequence,priority:1"`
	Sequence     int64                   `gorm:"column:sequence;not null;uniqueIndex:uq_wallet_tx_sequence,priority:2"`
	Type         enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Amount       decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Description  string                  `gorm:"column:description;not null"`
	OrderID      *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	WithdrawalID *uuid.UUID              `gorm:"column:withdrawal_id;type:uuid"`
	BalanceAfter decimal.Decimal         `gorm:"column:balance_after;type:numeric(14,2);not null"`
	Status       enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}
