package withdrawals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/internal/wallet"
	"github.com/kharido-labs/kharido-backend/pkg/config"
	"github.com/kharido-labs/kharido-backend/pkg/db"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput is a seller's cash-out request.
type CreateInput struct {
	SellerID     uuid.UUID
	Amount       decimal.Decimal
	PayoutMethod enums.PayoutMethod
	Destination  types.PayoutDestination
}

// DecisionInput carries an admin's verdict on a request.
type DecisionInput struct {
	WithdrawalID          uuid.UUID
	AdminID               uuid.UUID
	Notes                 *string
	Reason                string
	ExternalTransactionID string
}

// Service drives the withdrawal lifecycle. Each state change and its wallet
// effect commit in one transaction.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.WithdrawalRequest, error)
	GetByID(ctx context.Context, requestID uuid.UUID) (*models.WithdrawalRequest, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status enums.WithdrawalStatus) ([]models.WithdrawalRequest, error)
	Approve(ctx context.Context, input DecisionInput) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, input DecisionInput) (*models.WithdrawalRequest, error)
	Process(ctx context.Context, input DecisionInput) (*models.WithdrawalRequest, error)
}

type service struct {
	repo    Repository
	wallets wallet.Service
	tx      txRunner
	cfg     config.WalletConfig
	logg    *logger.Logger
}

// NewService wires the withdrawal state machine.
func NewService(repo Repository, wallets wallet.Service, tx txRunner, cfg config.WalletConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("withdrawal repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if _, err := cfg.MinWithdrawal(); err != nil {
		return nil, err
	}
	return &service{repo: repo, wallets: wallets, tx: tx, cfg: cfg, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.WithdrawalRequest, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}
	minimum, err := s.cfg.MinWithdrawal()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minimum withdrawal")
	}
	if input.Amount.LessThan(minimum) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("withdrawal amount %s is below the %s minimum", input.Amount, minimum))
	}
	if !input.PayoutMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payout method %q", input.PayoutMethod))
	}
	if err := input.Destination.ValidateFor(input.PayoutMethod); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	request := &models.WithdrawalRequest{
		ID:           uuid.New(),
		SellerID:     input.SellerID,
		Amount:       input.Amount,
		PayoutMethod: input.PayoutMethod,
		Destination:  input.Destination,
		Status:       enums.WithdrawalStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// The partial unique index on pending requests turns a concurrent
		// second create into a duplicate-key error here.
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a pending withdrawal request already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create withdrawal request")
		}

		_, err := s.wallets.AddTransaction(ctx, tx, wallet.AddTransactionInput{
			SellerID:     input.SellerID,
			Type:         enums.TransactionTypeDebit,
			Amount:       input.Amount,
			Description:  fmt.Sprintf("Withdrawal request %s", request.ID),
			WithdrawalID: &request.ID,
			Status:       enums.TransactionStatusPending,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithWithdrawalID(ctx, request.ID.String())
	s.logg.Info(ctx, "withdrawal request created")
	return request, nil
}

func (s *service) GetByID(ctx context.Context, requestID uuid.UUID) (*models.WithdrawalRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id required")
	}
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdrawal request")
	}
	return request, nil
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.WithdrawalRequest, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	requests, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list withdrawal requests")
	}
	return requests, nil
}

func (s *service) ListByStatus(ctx context.Context, status enums.WithdrawalStatus) ([]models.WithdrawalRequest, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid withdrawal status %q", status))
	}
	requests, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list withdrawal requests")
	}
	return requests, nil
}

func (s *service) Approve(ctx context.Context, input DecisionInput) (*models.WithdrawalRequest, error) {
	request, err := s.GetByID(ctx, input.WithdrawalID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"status": enums.WithdrawalStatusApproved}
	if input.Notes != nil {
		updates["admin_notes"] = *input.Notes
	}
	rows, err := s.repo.UpdateStatusIf(ctx, request.ID, enums.WithdrawalStatusPending, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve withdrawal")
	}
	if rows == 0 {
		return nil, transitionConflict(request.Status, enums.WithdrawalStatusApproved)
	}

	request.Status = enums.WithdrawalStatusApproved
	request.AdminNotes = input.Notes
	return request, nil
}

func (s *service) Reject(ctx context.Context, input DecisionInput) (*models.WithdrawalRequest, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}

	request, err := s.GetByID(ctx, input.WithdrawalID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":           enums.WithdrawalStatusRejected,
			"rejection_reason": input.Reason,
			"processed_by":     input.AdminID,
			"processed_at":     now,
		}
		if input.Notes != nil {
			updates["admin_notes"] = *input.Notes
		}
		rows, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, request.ID, enums.WithdrawalStatusPending, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject withdrawal")
		}
		if rows == 0 {
			return transitionConflict(request.Status, enums.WithdrawalStatusRejected)
		}

		_, err = s.wallets.ReleaseHold(ctx, tx, wallet.HoldInput{
			SellerID:     request.SellerID,
			WithdrawalID: request.ID,
			Amount:       request.Amount,
			Description:  fmt.Sprintf("Withdrawal %s rejected - hold refunded", request.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	request.Status = enums.WithdrawalStatusRejected
	request.RejectionReason = &input.Reason
	request.ProcessedBy = &input.AdminID
	request.ProcessedAt = &now

	ctx = s.logg.WithWithdrawalID(ctx, request.ID.String())
	s.logg.Info(ctx, "withdrawal request rejected")
	return request, nil
}

func (s *service) Process(ctx context.Context, input DecisionInput) (*models.WithdrawalRequest, error) {
	if strings.TrimSpace(input.ExternalTransactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external transaction id required")
	}

	request, err := s.GetByID(ctx, input.WithdrawalID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":                  enums.WithdrawalStatusProcessed,
			"external_transaction_id": input.ExternalTransactionID,
			"processed_by":            input.AdminID,
			"processed_at":            now,
		}
		if input.Notes != nil {
			updates["admin_notes"] = *input.Notes
		}
		rows, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, request.ID, enums.WithdrawalStatusApproved, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process withdrawal")
		}
		if rows == 0 {
			return transitionConflict(request.Status, enums.WithdrawalStatusProcessed)
		}

		_, err = s.wallets.SettleHold(ctx, tx, wallet.HoldInput{
			SellerID:     request.SellerID,
			WithdrawalID: request.ID,
			Amount:       request.Amount,
			Description:  fmt.Sprintf("Withdrawal %s processed", request.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	request.Status = enums.WithdrawalStatusProcessed
	request.ExternalTransactionID = &input.ExternalTransactionID
	request.ProcessedBy = &input.AdminID
	request.ProcessedAt = &now

	ctx = s.logg.WithWithdrawalID(ctx, request.ID.String())
	s.logg.Info(ctx, "withdrawal request processed")
	return request, nil
}

func transitionConflict(from, to enums.WithdrawalStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move withdrawal from %s to %s", from, to))
}
