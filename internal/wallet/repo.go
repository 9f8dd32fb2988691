package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
)

// Repository manages persistence for wallets and their transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error)
	// LockBySellerID loads the seller's wallet under a row lock, creating it
	// when absent. Callers must hold an open transaction.
	LockBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error
	CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error
	LastSequence(ctx context.Context, walletID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error)
	FindPendingDebitByWithdrawal(ctx context.Context, walletID, withdrawalID uuid.UUID) (*models.WalletTransaction, error)
	UpdateTransactionStatus(ctx context.Context, entryID uuid.UUID, status enums.TransactionStatus) error
	// ReplaceLedger swaps the wallet's aggregates and entire entry log in one
	// shot. Used by reconciliation only.
	ReplaceLedger(ctx context.Context, wallet *models.Wallet, entries []models.WalletTransaction) error
	ListSellerIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) LockBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller_id = ?", sellerID).
		First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	wallet = models.Wallet{SellerID: sellerID}
	if err := r.db.WithContext(ctx).Create(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Save(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repository) CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) LastSequence(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var last int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("wallet_id = ?", walletID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return last, nil
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindPendingDebitByWithdrawal(ctx context.Context, walletID, withdrawalID uuid.UUID) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND withdrawal_id = ? AND type = ? AND status = ?",
			walletID, withdrawalID, enums.TransactionTypeDebit, enums.TransactionStatusPending).
		Order("sequence ASC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) UpdateTransactionStatus(ctx context.Context, entryID uuid.UUID, status enums.TransactionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("id = ?", entryID).
		Update("status", status).Error
}

func (r *repository) ReplaceLedger(ctx context.Context, wallet *models.Wallet, entries []models.WalletTransaction) error {
	if err := r.db.WithContext(ctx).Save(wallet).Error; err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", wallet.ID).
		Delete(&models.WalletTransaction{}).Error; err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].WalletID = wallet.ID
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListSellerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Order("created_at ASC").
		Pluck("seller_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
