package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/internal/wallet"
	"github.com/kharido-labs/kharido-backend/internal/withdrawals"
	"github.com/kharido-labs/kharido-backend/pkg/config"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service rebuilds wallet ledgers from the order and withdrawal history.
// A rebuild is deterministic: the same history always produces the same
// entry log and aggregates, so running it twice is a no-op.
type Service interface {
	Rebuild(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error)
	RebuildAll(ctx context.Context) error
}

type service struct {
	wallets     wallet.Repository
	orders      orders.Repository
	withdrawals withdrawals.Repository
	tx          txRunner
	cfg         config.WalletConfig
	logg        *logger.Logger
	metrics     *metrics.LedgerMetrics
}

// NewService wires the ledger reconciliation engine.
func NewService(wallets wallet.Repository, ordersRepo orders.Repository, withdrawalsRepo withdrawals.Repository, tx txRunner, cfg config.WalletConfig, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if withdrawalsRepo == nil {
		return nil, fmt.Errorf("withdrawal repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if _, err := cfg.Commission(); err != nil {
		return nil, err
	}
	return &service{
		wallets:     wallets,
		orders:      ordersRepo,
		withdrawals: withdrawalsRepo,
		tx:          tx,
		cfg:         cfg,
		logg:        logg,
		metrics:     m,
	}, nil
}

// ledgerBuilder accumulates the replayed entries and running aggregates.
type ledgerBuilder struct {
	balance        decimal.Decimal
	totalEarnings  decimal.Decimal
	totalWithdrawn decimal.Decimal
	pending        decimal.Decimal
	entries        []models.WalletTransaction
}

func newLedgerBuilder() *ledgerBuilder {
	return &ledgerBuilder{
		balance:        decimal.Zero,
		totalEarnings:  decimal.Zero,
		totalWithdrawn: decimal.Zero,
		pending:        decimal.Zero,
	}
}

func (b *ledgerBuilder) append(entry models.WalletTransaction) {
	entry.ID = uuid.New()
	entry.Sequence = int64(len(b.entries)) + 1
	entry.BalanceAfter = b.balance
	b.entries = append(b.entries, entry)
}

func (b *ledgerBuilder) credit(amount decimal.Decimal, description string, orderID, withdrawalID *uuid.UUID, earned bool) {
	b.balance = b.balance.Add(amount)
	if earned {
		b.totalEarnings = b.totalEarnings.Add(amount)
	}
	b.append(models.WalletTransaction{
		Type:         enums.TransactionTypeCredit,
		Amount:       amount,
		Description:  description,
		OrderID:      orderID,
		WithdrawalID: withdrawalID,
		Status:       enums.TransactionStatusCompleted,
	})
}

func (b *ledgerBuilder) debit(amount decimal.Decimal, description string, withdrawalID *uuid.UUID, status enums.TransactionStatus) {
	b.balance = b.balance.Sub(amount)
	b.append(models.WalletTransaction{
		Type:         enums.TransactionTypeDebit,
		Amount:       amount,
		Description:  description,
		WithdrawalID: withdrawalID,
		Status:       status,
	})
}

func (s *service) Rebuild(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}

	start := time.Now()
	var rebuilt *models.Wallet
	var entryCount int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		walletRepo := s.wallets.WithTx(tx)
		locked, err := walletRepo.LockBySellerID(ctx, sellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
		}

		delivered, err := s.orders.WithTx(tx).ListDeliveredBySeller(ctx, sellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivered orders")
		}
		requests, err := s.withdrawals.WithTx(tx).ListBySeller(ctx, sellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list withdrawal requests")
		}

		builder := newLedgerBuilder()
		if err := s.replayOrders(ctx, tx, builder, delivered); err != nil {
			return err
		}
		replayWithdrawals(builder, requests)

		locked.Balance = builder.balance
		locked.TotalEarnings = builder.totalEarnings
		locked.TotalWithdrawn = builder.totalWithdrawn
		locked.PendingWithdrawals = builder.pending
		if err := walletRepo.ReplaceLedger(ctx, locked, builder.entries); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace ledger")
		}
		rebuilt = locked
		entryCount = len(builder.entries)
		return nil
	})
	if err != nil {
		s.metrics.ObserveReconcile("failed", time.Since(start))
		return nil, err
	}

	s.metrics.ObserveReconcile("rebuilt", time.Since(start))
	ctx = s.logg.WithSellerID(ctx, sellerID.String())
	s.logg.Info(ctx, fmt.Sprintf("wallet ledger rebuilt with %d entries", entryCount))
	return rebuilt, nil
}

func (s *service) RebuildAll(ctx context.Context) error {
	sellerIDs, err := s.wallets.ListSellerIDs(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller wallets")
	}

	var combined error
	for _, sellerID := range sellerIDs {
		if _, err := s.Rebuild(ctx, sellerID); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("seller %s: %w", sellerID, err))
		}
	}
	return combined
}

// replayOrders re-credits every delivered order in creation order, freezing
// default earnings on orders that never had them computed.
func (s *service) replayOrders(ctx context.Context, tx *gorm.DB, builder *ledgerBuilder, delivered []models.Order) error {
	rate, err := s.cfg.Commission()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commission rate")
	}

	for _, order := range delivered {
		earnings := order.SellerEarnings
		if earnings.IsZero() {
			commission := order.TotalPrice.Mul(rate).Round(2)
			earnings = order.TotalPrice.Sub(commission)
			if err := s.orders.SetEarnings(ctx, tx, order.ID, commission, earnings); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freeze order earnings")
			}
		}
		if !earnings.IsPositive() {
			continue
		}
		// The rebuilt ledger is the credit of record.
		if _, err := s.orders.MarkEarningsCredited(ctx, tx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark earnings credited")
		}
		orderID := order.ID
		builder.credit(earnings, fmt.Sprintf("Earnings for order %s", order.ID), &orderID, nil, true)
	}
	return nil
}

// replayWithdrawals applies each request's ledger effect from its current
// status. A rejected request keeps its hold debit and refund credit as real
// entries so the rebuilt log tells the full story.
func replayWithdrawals(builder *ledgerBuilder, requests []models.WithdrawalRequest) {
	for _, request := range requests {
		id := request.ID
		switch request.Status {
		case enums.WithdrawalStatusPending, enums.WithdrawalStatusApproved:
			builder.debit(request.Amount, fmt.Sprintf("Withdrawal request %s", id), &id, enums.TransactionStatusPending)
			builder.pending = builder.pending.Add(request.Amount)
		case enums.WithdrawalStatusProcessed:
			builder.debit(request.Amount, fmt.Sprintf("Withdrawal %s processed", id), &id, enums.TransactionStatusCompleted)
			builder.totalWithdrawn = builder.totalWithdrawn.Add(request.Amount)
		case enums.WithdrawalStatusRejected:
			builder.debit(request.Amount, fmt.Sprintf("Withdrawal request %s", id), &id, enums.TransactionStatusCompleted)
			builder.credit(request.Amount, fmt.Sprintf("Withdrawal %s rejected - hold refunded", id), nil, &id, false)
		}
	}
}
