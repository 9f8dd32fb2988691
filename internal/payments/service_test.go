package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/gateway"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

type fakeGateway struct {
	secret       string
	orders       map[string]*gateway.Order
	captureErr   error
	captureCalls int
	createdPaise int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{secret: "test-secret", orders: make(map[string]*gateway.Order)}
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (string, error) {
	id := "order_" + uuid.NewString()[:8]
	f.orders[id] = &gateway.Order{ID: id, AmountPaise: amountPaise, Currency: currency, Receipt: receipt, Status: "created"}
	f.createdPaise = amountPaise
	return id, nil
}

func (f *fakeGateway) FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "order not found at gateway")
	}
	return order, nil
}

func (f *fakeGateway) Capture(ctx context.Context, paymentID string, amountPaise int64, currency string) error {
	f.captureCalls++
	return f.captureErr
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(f.secret, orderID, paymentID, signature)
}

func (f *fakeGateway) seedOrder(id string, amountPaise int64) {
	f.orders[id] = &gateway.Order{ID: id, AmountPaise: amountPaise, Currency: "INR", Status: "created"}
}

func (f *fakeGateway) sign(orderID, paymentID string) string {
	return gateway.Sign(f.secret, orderID, paymentID)
}

type stubPaymentOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newStubPaymentOrdersRepo() *stubPaymentOrdersRepo {
	return &stubPaymentOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *stubPaymentOrdersRepo) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubPaymentOrdersRepo) CreateOrders(ctx context.Context, built []*models.Order) error {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) FindByIDs(ctx context.Context, orderIDs []uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, id := range orderIDs {
		if order, ok := s.orders[id]; ok {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubPaymentOrdersRepo) FindByIdempotencyKey(ctx context.Context, buyerID uuid.UUID, key string, since time.Time) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) ListDeliveredBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) MarkPaid(ctx context.Context, orderIDs []uuid.UUID, result *types.PaymentResult, paidAt time.Time) (int64, error) {
	var affected int64
	for _, id := range orderIDs {
		order, ok := s.orders[id]
		if !ok || order.PaymentStatus != enums.PaymentStatusPending {
			continue
		}
		order.PaymentStatus = enums.PaymentStatusPaid
		order.OrderStatus = enums.OrderStatusConfirmed
		order.PaymentResult = result
		order.PaidAt = &paidAt
		affected++
	}
	return affected, nil
}

func (s *stubPaymentOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) FindOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) MarkEarningsCredited(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) SetEarnings(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commission, earnings decimal.Decimal) error {
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

func newTestPaymentService(t *testing.T, repo orders.Repository, gw gateway.API) Service {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	svc, err := NewService(repo, gw, passthroughTxRunner{}, logg, nil)
	require.NoError(t, err)
	return svc
}

func seedPendingOrder(repo *stubPaymentOrdersRepo, buyerID uuid.UUID, total string) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		SellerID:      uuid.New(),
		TotalPrice:    decimal.RequireFromString(total),
		OrderStatus:   enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	repo.orders[order.ID] = order
	return order
}

func TestCaptureMarksAllOrdersPaid(t *testing.T) {
	repo := newStubPaymentOrdersRepo()
	gw := newFakeGateway()
	svc := newTestPaymentService(t, repo, gw)

	buyerID := uuid.New()
	first := seedPendingOrder(repo, buyerID, "900.00")
	second := seedPendingOrder(repo, buyerID, "450.00")
	gw.seedOrder("order_abc", 135000)

	updated, err := svc.Capture(context.Background(), CaptureInput{
		BuyerID:          buyerID,
		OrderIDs:         []uuid.UUID{first.ID, second.ID},
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        gw.sign("order_abc", "pay_abc"),
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, 1, gw.captureCalls)

	for _, order := range []*models.Order{repo.orders[first.ID], repo.orders[second.ID]} {
		assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
		assert.Equal(t, enums.OrderStatusConfirmed, order.OrderStatus)
		require.NotNil(t, order.PaymentResult)
		assert.Equal(t, "pay_abc", order.PaymentResult.GatewayPaymentID)
		assert.NotNil(t, order.PaidAt)
	}
}

func TestCaptureRejectsBadSignatureBeforeAnythingElse(t *testing.T) {
	repo := newStubPaymentOrdersRepo()
	gw := newFakeGateway()
	svc := newTestPaymentService(t, repo, gw)

	buyerID := uuid.New()
	order := seedPendingOrder(repo, buyerID, "100.00")
	gw.seedOrder("order_abc", 10000)

	_, err := svc.Capture(context.Background(), CaptureInput{
		BuyerID:          buyerID,
		OrderIDs:         []uuid.UUID{order.ID},
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        "forged",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, 0, gw.captureCalls)
	assert.Equal(t, enums.PaymentStatusPending, repo.orders[order.ID].PaymentStatus)
}

func TestCaptureRejectsForeignOrder(t *testing.T) {
	repo := newStubPaymentOrdersRepo()
	gw := newFakeGateway()
	svc := newTestPaymentService(t, repo, gw)

	order := seedPendingOrder(repo, uuid.New(), "100.00")
	gw.seedOrder("order_abc", 10000)

	_, err := svc.Capture(context.Background(), CaptureInput{
		BuyerID:          uuid.New(),
		OrderIDs:         []uuid.UUID{order.ID},
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        gw.sign("order_abc", "pay_abc"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, 0, gw.captureCalls)
}

func TestCaptureAmountToleranceIsOnePaisa(t *testing.T) {
	buyerID := uuid.New()

	t.Run("within tolerance", func(t *testing.T) {
		repo := newStubPaymentOrdersRepo()
		gw := newFakeGateway()
		svc := newTestPaymentService(t, repo, gw)
		order := seedPendingOrder(repo, buyerID, "100.00")
		gw.seedOrder("order_abc", 10001)

		_, err := svc.Capture(context.Background(), CaptureInput{
			BuyerID:          buyerID,
			OrderIDs:         []uuid.UUID{order.ID},
			GatewayOrderID:   "order_abc",
			GatewayPaymentID: "pay_abc",
			Signature:        gw.sign("order_abc", "pay_abc"),
		})
		require.NoError(t, err)
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		repo := newStubPaymentOrdersRepo()
		gw := newFakeGateway()
		svc := newTestPaymentService(t, repo, gw)
		order := seedPendingOrder(repo, buyerID, "100.00")
		gw.seedOrder("order_abc", 10002)

		_, err := svc.Capture(context.Background(), CaptureInput{
			BuyerID:          buyerID,
			OrderIDs:         []uuid.UUID{order.ID},
			GatewayOrderID:   "order_abc",
			GatewayPaymentID: "pay_abc",
			Signature:        gw.sign("order_abc", "pay_abc"),
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		assert.Equal(t, 0, gw.captureCalls)
		assert.Equal(t, enums.PaymentStatusPending, repo.orders[order.ID].PaymentStatus)
	})
}

func TestCaptureGatewayFailureLeavesOrdersUntouched(t *testing.T) {
	repo := newStubPaymentOrdersRepo()
	gw := newFakeGateway()
	gw.captureErr = pkgerrors.New(pkgerrors.CodeGateway, "capture declined")
	svc := newTestPaymentService(t, repo, gw)

	buyerID := uuid.New()
	order := seedPendingOrder(repo, buyerID, "100.00")
	gw.seedOrder("order_abc", 10000)

	_, err := svc.Capture(context.Background(), CaptureInput{
		BuyerID:          buyerID,
		OrderIDs:         []uuid.UUID{order.ID},
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        gw.sign("order_abc", "pay_abc"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGateway))
	assert.Equal(t, enums.PaymentStatusPending, repo.orders[order.ID].PaymentStatus)
	assert.Nil(t, repo.orders[order.ID].PaymentResult)
}

func TestCaptureRejectsAlreadyPaidOrder(t *testing.T) {
	repo := newStubPaymentOrdersRepo()
	gw := newFakeGateway()
	svc := newTestPaymentService(t, repo, gw)

	buyerID := uuid.New()
	order := seedPendingOrder(repo, buyerID, "100.00")
	order.PaymentStatus = enums.PaymentStatusPaid
	gw.seedOrder("order_abc", 10000)

	_, err := svc.Capture(context.Background(), CaptureInput{
		BuyerID:          buyerID,
		OrderIDs:         []uuid.UUID{order.ID},
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        gw.sign("order_abc", "pay_abc"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 0, gw.captureCalls)
}

func TestCaptureRejectsMissingOrder(t *testing.T) {
	repo := newStubPaymentOrdersRepo()
	gw := newFakeGateway()
	svc := newTestPaymentService(t, repo, gw)

	buyerID := uuid.New()
	order := seedPendingOrder(repo, buyerID, "100.00")
	gw.seedOrder("order_abc", 10000)

	_, err := svc.Capture(context.Background(), CaptureInput{
		BuyerID:          buyerID,
		OrderIDs:         []uuid.UUID{order.ID, uuid.New()},
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        gw.sign("order_abc", "pay_abc"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestInitiateCreatesGatewayOrderForSummedTotal(t *testing.T) {
	repo := newStubPaymentOrdersRepo()
	gw := newFakeGateway()
	svc := newTestPaymentService(t, repo, gw)

	buyerID := uuid.New()
	first := seedPendingOrder(repo, buyerID, "900.00")
	second := seedPendingOrder(repo, buyerID, "450.50")

	result, err := svc.Initiate(context.Background(), InitiateInput{
		BuyerID:  buyerID,
		OrderIDs: []uuid.UUID{first.ID, second.ID},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.GatewayOrderID)
	assert.Equal(t, int64(135050), result.AmountPaise)
	assert.Equal(t, "INR", result.Currency)
	assert.Equal(t, int64(135050), gw.createdPaise)
}
