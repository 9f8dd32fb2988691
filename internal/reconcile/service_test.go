package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/internal/wallet"
	"github.com/kharido-labs/kharido-backend/internal/withdrawals"
	"github.com/kharido-labs/kharido-backend/pkg/config"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

type stubWalletRepo struct {
	wallets map[uuid.UUID]*models.Wallet
	ledgers map[uuid.UUID][]models.WalletTransaction
}

func newStubWalletRepo() *stubWalletRepo {
	return &stubWalletRepo{
		wallets: make(map[uuid.UUID]*models.Wallet),
		ledgers: make(map[uuid.UUID][]models.WalletTransaction),
	}
}

func (s *stubWalletRepo) WithTx(tx *gorm.DB) wallet.Repository {
	return s
}

func (s *stubWalletRepo) FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error) {
	for _, w := range s.wallets {
		if w.SellerID == sellerID {
			copied := *w
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubWalletRepo) LockBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.Wallet, error) {
	for _, w := range s.wallets {
		if w.SellerID == sellerID {
			copied := *w
			return &copied, nil
		}
	}
	w := &models.Wallet{ID: uuid.New(), SellerID: sellerID}
	s.wallets[w.ID] = w
	copied := *w
	return &copied, nil
}

func (s *stubWalletRepo) Save(ctx context.Context, w *models.Wallet) error {
	copied := *w
	s.wallets[w.ID] = &copied
	return nil
}

func (s *stubWalletRepo) CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	s.ledgers[entry.WalletID] = append(s.ledgers[entry.WalletID], *entry)
	return nil
}

func (s *stubWalletRepo) LastSequence(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var last int64
	for _, e := range s.ledgers[walletID] {
		if e.Sequence > last {
			last = e.Sequence
		}
	}
	return last, nil
}

func (s *stubWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	return s.ledgers[walletID], nil
}

func (s *stubWalletRepo) FindPendingDebitByWithdrawal(ctx context.Context, walletID, withdrawalID uuid.UUID) (*models.WalletTransaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubWalletRepo) UpdateTransactionStatus(ctx context.Context, entryID uuid.UUID, status enums.TransactionStatus) error {
	return nil
}

func (s *stubWalletRepo) ReplaceLedger(ctx context.Context, w *models.Wallet, entries []models.WalletTransaction) error {
	copied := *w
	s.wallets[w.ID] = &copied
	replaced := make([]models.WalletTransaction, len(entries))
	for i, entry := range entries {
		entry.WalletID = w.ID
		replaced[i] = entry
	}
	s.ledgers[w.ID] = replaced
	return nil
}

func (s *stubWalletRepo) ListSellerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, w := range s.wallets {
		ids = append(ids, w.SellerID)
	}
	return ids, nil
}

type stubReconcileOrdersRepo struct {
	delivered map[uuid.UUID][]models.Order
	listErr   map[uuid.UUID]error
	frozen    map[uuid.UUID][2]decimal.Decimal
}

func newStubReconcileOrdersRepo() *stubReconcileOrdersRepo {
	return &stubReconcileOrdersRepo{
		delivered: make(map[uuid.UUID][]models.Order),
		listErr:   make(map[uuid.UUID]error),
		frozen:    make(map[uuid.UUID][2]decimal.Decimal),
	}
}

func (s *stubReconcileOrdersRepo) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubReconcileOrdersRepo) ListDeliveredBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	if err := s.listErr[sellerID]; err != nil {
		return nil, err
	}
	return s.delivered[sellerID], nil
}

func (s *stubReconcileOrdersRepo) SetEarnings(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commission, earnings decimal.Decimal) error {
	s.frozen[orderID] = [2]decimal.Decimal{commission, earnings}
	return nil
}

func (s *stubReconcileOrdersRepo) MarkEarningsCredited(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	return true, nil
}

func (s *stubReconcileOrdersRepo) CreateOrders(ctx context.Context, built []*models.Order) error {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) FindByIDs(ctx context.Context, orderIDs []uuid.UUID) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) FindByIdempotencyKey(ctx context.Context, buyerID uuid.UUID, key string, since time.Time) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) MarkPaid(ctx context.Context, orderIDs []uuid.UUID, result *types.PaymentResult, paidAt time.Time) (int64, error) {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	panic("not implemented")
}

func (s *stubReconcileOrdersRepo) FindOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

type stubReconcileWithdrawalsRepo struct {
	requests map[uuid.UUID][]models.WithdrawalRequest
}

func newStubReconcileWithdrawalsRepo() *stubReconcileWithdrawalsRepo {
	return &stubReconcileWithdrawalsRepo{requests: make(map[uuid.UUID][]models.WithdrawalRequest)}
}

func (s *stubReconcileWithdrawalsRepo) WithTx(tx *gorm.DB) withdrawals.Repository {
	return s
}

func (s *stubReconcileWithdrawalsRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.WithdrawalRequest, error) {
	return s.requests[sellerID], nil
}

func (s *stubReconcileWithdrawalsRepo) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	panic("not implemented")
}

func (s *stubReconcileWithdrawalsRepo) FindByID(ctx context.Context, requestID uuid.UUID) (*models.WithdrawalRequest, error) {
	panic("not implemented")
}

func (s *stubReconcileWithdrawalsRepo) ListByStatus(ctx context.Context, status enums.WithdrawalStatus) ([]models.WithdrawalRequest, error) {
	panic("not implemented")
}

func (s *stubReconcileWithdrawalsRepo) UpdateStatusIf(ctx context.Context, requestID uuid.UUID, expected enums.WithdrawalStatus, updates map[string]any) (int64, error) {
	panic("not implemented")
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func money(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func newTestReconciler(t *testing.T, wallets wallet.Repository, ordersRepo orders.Repository, withdrawalsRepo withdrawals.Repository) Service {
	t.Helper()
	cfg := config.WalletConfig{MinWithdrawalAmount: "100", CommissionRate: "0.10"}
	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	svc, err := NewService(wallets, ordersRepo, withdrawalsRepo, passthroughTxRunner{}, cfg, logg, nil)
	require.NoError(t, err)
	return svc
}

func deliveredOrder(t *testing.T, sellerID uuid.UUID, total, earnings string) models.Order {
	t.Helper()
	return models.Order{
		ID:             uuid.New(),
		BuyerID:        uuid.New(),
		SellerID:       sellerID,
		TotalPrice:     money(t, total),
		SellerEarnings: money(t, earnings),
		OrderStatus:    enums.OrderStatusDelivered,
	}
}

func withdrawalRequest(t *testing.T, sellerID uuid.UUID, amount string, status enums.WithdrawalStatus) models.WithdrawalRequest {
	t.Helper()
	return models.WithdrawalRequest{
		ID:       uuid.New(),
		SellerID: sellerID,
		Amount:   money(t, amount),
		Status:   status,
	}
}

func TestRebuildReplaysOrdersThenWithdrawals(t *testing.T) {
	wallets := newStubWalletRepo()
	ordersRepo := newStubReconcileOrdersRepo()
	withdrawalsRepo := newStubReconcileWithdrawalsRepo()
	svc := newTestReconciler(t, wallets, ordersRepo, withdrawalsRepo)
	sellerID := uuid.New()

	frozen := deliveredOrder(t, sellerID, "1000.00", "900.00")
	unfrozen := deliveredOrder(t, sellerID, "500.00", "0")
	ordersRepo.delivered[sellerID] = []models.Order{frozen, unfrozen}
	withdrawalsRepo.requests[sellerID] = []models.WithdrawalRequest{
		withdrawalRequest(t, sellerID, "200.00", enums.WithdrawalStatusProcessed),
		withdrawalRequest(t, sellerID, "100.00", enums.WithdrawalStatusPending),
		withdrawalRequest(t, sellerID, "300.00", enums.WithdrawalStatusRejected),
	}

	rebuilt, err := svc.Rebuild(context.Background(), sellerID)
	require.NoError(t, err)

	// 900 frozen + 450 default (500 - 10%) earned; 200 paid out; 100 held.
	assert.True(t, rebuilt.TotalEarnings.Equal(money(t, "1350.00")))
	assert.True(t, rebuilt.TotalWithdrawn.Equal(money(t, "200.00")))
	assert.True(t, rebuilt.PendingWithdrawals.Equal(money(t, "100.00")))
	assert.True(t, rebuilt.Balance.Equal(money(t, "1050.00")))

	// The unfrozen order got its default commission persisted.
	split, ok := ordersRepo.frozen[unfrozen.ID]
	require.True(t, ok)
	assert.True(t, split[0].Equal(money(t, "50.00")))
	assert.True(t, split[1].Equal(money(t, "450.00")))

	entries := wallets.ledgers[rebuilt.ID]
	require.Len(t, entries, 6)

	// Contiguous sequences and an unbroken running-balance chain.
	previous := decimal.Zero
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Sequence)
		expected := previous
		if entry.Type == enums.TransactionTypeCredit {
			expected = expected.Add(entry.Amount)
		} else {
			expected = expected.Sub(entry.Amount)
		}
		assert.True(t, entry.BalanceAfter.Equal(expected),
			"entry %d balance_after %s, want %s", i, entry.BalanceAfter, expected)
		previous = expected
	}

	// The rejected request left a debit and its refund credit.
	assert.Equal(t, enums.TransactionTypeDebit, entries[4].Type)
	assert.Equal(t, enums.TransactionTypeCredit, entries[5].Type)
	assert.True(t, entries[5].Amount.Equal(money(t, "300.00")))
}

func TestRebuildIsIdempotent(t *testing.T) {
	wallets := newStubWalletRepo()
	ordersRepo := newStubReconcileOrdersRepo()
	withdrawalsRepo := newStubReconcileWithdrawalsRepo()
	svc := newTestReconciler(t, wallets, ordersRepo, withdrawalsRepo)
	sellerID := uuid.New()

	ordersRepo.delivered[sellerID] = []models.Order{deliveredOrder(t, sellerID, "1000.00", "900.00")}
	withdrawalsRepo.requests[sellerID] = []models.WithdrawalRequest{
		withdrawalRequest(t, sellerID, "200.00", enums.WithdrawalStatusProcessed),
	}

	first, err := svc.Rebuild(context.Background(), sellerID)
	require.NoError(t, err)
	firstEntries := append([]models.WalletTransaction(nil), wallets.ledgers[first.ID]...)

	second, err := svc.Rebuild(context.Background(), sellerID)
	require.NoError(t, err)
	secondEntries := wallets.ledgers[second.ID]

	assert.True(t, first.Balance.Equal(second.Balance))
	assert.True(t, first.TotalEarnings.Equal(second.TotalEarnings))
	assert.True(t, first.TotalWithdrawn.Equal(second.TotalWithdrawn))
	assert.True(t, first.PendingWithdrawals.Equal(second.PendingWithdrawals))

	require.Len(t, secondEntries, len(firstEntries))
	for i := range firstEntries {
		assert.Equal(t, firstEntries[i].Sequence, secondEntries[i].Sequence)
		assert.Equal(t, firstEntries[i].Type, secondEntries[i].Type)
		assert.True(t, firstEntries[i].Amount.Equal(secondEntries[i].Amount))
		assert.True(t, firstEntries[i].BalanceAfter.Equal(secondEntries[i].BalanceAfter))
	}
}

func TestRebuildEmptyHistoryZeroesWallet(t *testing.T) {
	wallets := newStubWalletRepo()
	svc := newTestReconciler(t, wallets, newStubReconcileOrdersRepo(), newStubReconcileWithdrawalsRepo())

	rebuilt, err := svc.Rebuild(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, rebuilt.Balance.IsZero())
	assert.True(t, rebuilt.TotalEarnings.IsZero())
	assert.Empty(t, wallets.ledgers[rebuilt.ID])
}

func TestRebuildAllAggregatesFailures(t *testing.T) {
	wallets := newStubWalletRepo()
	ordersRepo := newStubReconcileOrdersRepo()
	withdrawalsRepo := newStubReconcileWithdrawalsRepo()
	svc := newTestReconciler(t, wallets, ordersRepo, withdrawalsRepo)

	healthy := uuid.New()
	broken := uuid.New()
	_, err := wallets.LockBySellerID(context.Background(), healthy)
	require.NoError(t, err)
	_, err = wallets.LockBySellerID(context.Background(), broken)
	require.NoError(t, err)

	ordersRepo.delivered[healthy] = []models.Order{deliveredOrder(t, healthy, "1000.00", "900.00")}
	ordersRepo.listErr[broken] = errors.New("replica lag")

	err = svc.RebuildAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.String())
	assert.NotContains(t, err.Error(), healthy.String())

	// The healthy seller still got rebuilt.
	rebuilt, err := wallets.FindBySellerID(context.Background(), healthy)
	require.NoError(t, err)
	assert.True(t, rebuilt.TotalEarnings.Equal(money(t, "900.00")))
}
