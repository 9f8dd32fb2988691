package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

type orderCreditRepo interface {
	FindOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	// MarkEarningsCredited flips is_earnings_credited false -> true and reports
	// whether this call won the flip.
	MarkEarningsCredited(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	SetEarnings(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commission, earnings decimal.Decimal) error
}

// Service owns every mutation of a seller's ledger. All writes take an open
// transaction handle so callers control the atomicity boundary; per-seller
// serialization comes from the wallet row lock taken inside.
type Service interface {
	GetBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, sellerID uuid.UUID) ([]models.WalletTransaction, error)
	AddTransaction(ctx context.Context, tx *gorm.DB, input AddTransactionInput) (*models.WalletTransaction, error)
	ReleaseHold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.WalletTransaction, error)
	SettleHold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.WalletTransaction, error)
	CreditOrderEarnings(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// AddTransactionInput captures one ledger append.
//
// A credit raises balance and totalEarnings. A completed debit lowers balance
// and raises totalWithdrawn. A pending debit lowers balance and parks the
// amount in pendingWithdrawals (a hold), leaving totalWithdrawn for settlement.
type AddTransactionInput struct {
	SellerID     uuid.UUID
	Type         enums.TransactionType
	Amount       decimal.Decimal
	Description  string
	OrderID      *uuid.UUID
	WithdrawalID *uuid.UUID
	Status       enums.TransactionStatus
}

// HoldInput identifies the withdrawal hold being released or settled.
type HoldInput struct {
	SellerID     uuid.UUID
	WithdrawalID uuid.UUID
	Amount       decimal.Decimal
	Description  string
}

type service struct {
	repo    Repository
	orders  orderCreditRepo
	tx      txRunner
	cfg     config.WalletConfig
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// NewService wires the wallet ledger service.
func NewService(repo Repository, orders orderCreditRepo, tx txRunner, cfg config.WalletConfig, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order credit repository required")
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
	return &service{repo: repo, orders: orders, tx: tx, cfg: cfg, logg: logg, metrics: m}, nil
}

func (s *service) GetBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	wallet, err := s.repo.FindBySellerID(ctx, sellerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, sellerID uuid.UUID) ([]models.WalletTransaction, error) {
	wallet, err := s.GetBySellerID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListTransactions(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	return entries, nil
}

func (s *service) AddTransaction(ctx context.Context, tx *gorm.DB, input AddTransactionInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction handle required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must be positive")
	}
	status := input.Status
	if status == "" {
		status = enums.TransactionStatusCompleted
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction status %q", status))
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.LockBySellerID(ctx, input.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}

	var balanceAfter decimal.Decimal
	switch input.Type {
	case enums.TransactionTypeCredit:
		balanceAfter = wallet.Balance.Add(input.Amount)
		wallet.TotalEarnings = wallet.TotalEarnings.Add(input.Amount)
	case enums.TransactionTypeDebit:
		if wallet.Balance.LessThan(input.Amount) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds,
				fmt.Sprintf("balance %s is below requested %s", wallet.Balance, input.Amount))
		}
		balanceAfter = wallet.Balance.Sub(input.Amount)
		if status == enums.TransactionStatusPending {
			wallet.PendingWithdrawals = wallet.PendingWithdrawals.Add(input.Amount)
		} else {
			wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(input.Amount)
		}
	}
	wallet.Balance = balanceAfter

	entry, err := s.appendEntry(ctx, repo, wallet, input, status, balanceAfter)
	if err != nil {
		return nil, err
	}

	if err := repo.Save(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist wallet")
	}

	s.metrics.IncTransaction(string(input.Type), string(status))
	return entry, nil
}

func (s *service) ReleaseHold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.WalletTransaction, error) {
	if err := validateHoldInput(tx, input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.LockBySellerID(ctx, input.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	if wallet.PendingWithdrawals.LessThan(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("pending withdrawals %s below hold %s", wallet.PendingWithdrawals, input.Amount))
	}

	wallet.PendingWithdrawals = wallet.PendingWithdrawals.Sub(input.Amount)
	wallet.Balance = wallet.Balance.Add(input.Amount)

	description := input.Description
	if description == "" {
		description = "Withdrawal rejected - hold refunded"
	}
	entry, err := s.appendEntry(ctx, repo, wallet, AddTransactionInput{
		SellerID:     input.SellerID,
		Type:         enums.TransactionTypeCredit,
		Amount:       input.Amount,
		Description:  description,
		WithdrawalID: &input.WithdrawalID,
	}, enums.TransactionStatusCompleted, wallet.Balance)
	if err != nil {
		return nil, err
	}

	if err := repo.Save(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist wallet")
	}

	s.metrics.IncTransaction(string(enums.TransactionTypeCredit), string(enums.TransactionStatusCompleted))
	return entry, nil
}

func (s *service) SettleHold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.WalletTransaction, error) {
	if err := validateHoldInput(tx, input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.LockBySellerID(ctx, input.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	if wallet.PendingWithdrawals.LessThan(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("pending withdrawals %s below hold %s", wallet.PendingWithdrawals, input.Amount))
	}

	// Balance was already reduced when the hold was created.
	wallet.PendingWithdrawals = wallet.PendingWithdrawals.Sub(input.Amount)
	wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(input.Amount)

	var entry *models.WalletTransaction
	pendingEntry, err := repo.FindPendingDebitByWithdrawal(ctx, wallet.ID, input.WithdrawalID)
	switch {
	case err == nil:
		if err := repo.UpdateTransactionStatus(ctx, pendingEntry.ID, enums.TransactionStatusCompleted); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete pending debit")
		}
		pendingEntry.Status = enums.TransactionStatusCompleted
		entry = pendingEntry
	case err == gorm.ErrRecordNotFound:
		// The hold entry is missing (legacy data or prior repair); append a
		// completed debit so the payout stays auditable.
		description := input.Description
		if description == "" {
			description = "Withdrawal processed"
		}
		entry, err = s.appendEntry(ctx, repo, wallet, AddTransactionInput{
			SellerID:     input.SellerID,
			Type:         enums.TransactionTypeDebit,
			Amount:       input.Amount,
			Description:  description,
			WithdrawalID: &input.WithdrawalID,
		}, enums.TransactionStatusCompleted, wallet.Balance)
		if err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending debit")
	}

	if err := repo.Save(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist wallet")
	}

	s.metrics.IncTransaction(string(enums.TransactionTypeDebit), string(enums.TransactionStatusCompleted))
	return entry, nil
}

func (s *service) CreditOrderEarnings(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	credited := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.FindOrder(ctx, tx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.OrderStatus != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "earnings credit requires a delivered order")
		}

		won, err := s.orders.MarkEarningsCredited(ctx, tx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark earnings credited")
		}
		if !won {
			return nil
		}

		commission := order.Commission
		earnings := order.SellerEarnings
		if earnings.IsZero() {
			rate, err := s.cfg.Commission()
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commission rate")
			}
			commission = order.TotalPrice.Mul(rate).Round(2)
			earnings = order.TotalPrice.Sub(commission)
			if err := s.orders.SetEarnings(ctx, tx, order.ID, commission, earnings); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freeze order earnings")
			}
		}
		if !earnings.IsPositive() {
			return nil
		}

		id := order.ID
		if _, err := s.AddTransaction(ctx, tx, AddTransactionInput{
			SellerID:    order.SellerID,
			Type:        enums.TransactionTypeCredit,
			Amount:      earnings,
			Description: fmt.Sprintf("Earnings for order %s", order.ID),
			OrderID:     &id,
		}); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if credited {
		ctx = s.logg.WithField(ctx, "order_id", orderID.String())
		s.logg.Info(ctx, "seller earnings credited")
	}
	return credited, nil
}

func (s *service) appendEntry(ctx context.Context, repo Repository, wallet *models.Wallet, input AddTransactionInput, status enums.TransactionStatus, balanceAfter decimal.Decimal) (*models.WalletTransaction, error) {
	last, err := repo.LastSequence(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read ledger sequence")
	}

	entry := &models.WalletTransaction{
		WalletID:     wallet.ID,
		Sequence:     last + 1,
		Type:         input.Type,
		Amount:       input.Amount,
		Description:  input.Description,
		OrderID:      input.OrderID,
		WithdrawalID: input.WithdrawalID,
		BalanceAfter: balanceAfter,
		Status:       status,
	}
	if err := repo.CreateTransaction(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return entry, nil
}

func validateHoldInput(tx *gorm.DB, input HoldInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle required")
	}
	if input.SellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.WithdrawalID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id required")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "hold amount must be positive")
	}
	return nil
}
