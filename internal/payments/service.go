package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/gateway"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/metrics"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

// paiseTolerance absorbs the one-paisa rounding drift between our decimal
// totals and the gateway's integer amount.
const paiseTolerance = int64(1)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InitiateInput asks the gateway to open a payment for the buyer's orders.
type InitiateInput struct {
	BuyerID  uuid.UUID
	OrderIDs []uuid.UUID
}

// InitiateResult carries what the client needs to drive the gateway checkout.
type InitiateResult struct {
	GatewayOrderID string
	AmountPaise    int64
	Currency       string
}

// CaptureInput is the gateway callback payload for completing a payment.
type CaptureInput struct {
	BuyerID          uuid.UUID
	OrderIDs         []uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Service coordinates payment capture across the gateway and the order store.
// Every check runs before the capture call; the local mark-paid update is
// atomic across all orders, so a failure anywhere leaves nothing mutated.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
	Capture(ctx context.Context, input CaptureInput) ([]models.Order, error)
}

type service struct {
	orders  orders.Repository
	gateway gateway.API
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// NewService wires the payment capture coordinator.
func NewService(ordersRepo orders.Repository, gw gateway.API, tx txRunner, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{orders: ordersRepo, gateway: gw, tx: tx, logg: logg, metrics: m}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	loaded, err := s.loadOwnedPendingOrders(ctx, input.BuyerID, input.OrderIDs)
	if err != nil {
		return nil, err
	}

	amountPaise := sumPaise(loaded)
	if amountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	receipt := input.OrderIDs[0].String()
	gatewayOrderID, err := s.gateway.CreateOrder(ctx, amountPaise, string(enums.CurrencyINR), receipt)
	if err != nil {
		return nil, err
	}

	return &InitiateResult{
		GatewayOrderID: gatewayOrderID,
		AmountPaise:    amountPaise,
		Currency:       string(enums.CurrencyINR),
	}, nil
}

func (s *service) Capture(ctx context.Context, input CaptureInput) ([]models.Order, error) {
	outcome := "failed"
	defer func() { s.metrics.IncCapture(outcome) }()

	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id, and signature required")
	}
	if !s.gateway.VerifySignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature verification failed")
	}

	loaded, err := s.loadOwnedPendingOrders(ctx, input.BuyerID, input.OrderIDs)
	if err != nil {
		return nil, err
	}

	expectedPaise := sumPaise(loaded)
	gatewayOrder, err := s.gateway.FetchOrder(ctx, input.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if diff := expectedPaise - gatewayOrder.AmountPaise; diff > paiseTolerance || diff < -paiseTolerance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("gateway amount %d does not match order total %d", gatewayOrder.AmountPaise, expectedPaise))
	}

	if err := s.gateway.Capture(ctx, input.GatewayPaymentID, gatewayOrder.AmountPaise, string(enums.CurrencyINR)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &types.PaymentResult{
		GatewayOrderID:   input.GatewayOrderID,
		GatewayPaymentID: input.GatewayPaymentID,
		Signature:        input.Signature,
		Status:           "captured",
		PaidAt:           now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.orders.WithTx(tx).MarkPaid(ctx, input.OrderIDs, result, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders paid")
		}
		if affected != int64(len(input.OrderIDs)) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "an order was paid concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome = "captured"
	ctx = s.logg.WithBuyerID(ctx, input.BuyerID.String())
	s.logg.Info(ctx, fmt.Sprintf("captured payment %s for %d orders", input.GatewayPaymentID, len(input.OrderIDs)))

	updated, err := s.orders.FindByIDs(ctx, input.OrderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload orders")
	}
	return updated, nil
}

func (s *service) loadOwnedPendingOrders(ctx context.Context, buyerID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if len(orderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id required")
	}
	seen := make(map[uuid.UUID]bool, len(orderIDs))
	for _, id := range orderIDs {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
		}
		if seen[id] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate order id")
		}
		seen[id] = true
	}

	loaded, err := s.orders.FindByIDs(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	if len(loaded) != len(orderIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more orders not found")
	}
	for _, order := range loaded {
		if order.BuyerID != buyerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		if order.PaymentStatus != enums.PaymentStatusPending {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s is not awaiting payment", order.ID))
		}
	}
	return loaded, nil
}

// sumPaise converts the orders' decimal totals to minor units and adds them.
func sumPaise(loaded []models.Order) int64 {
	total := decimal.Zero
	for _, order := range loaded {
		total = total.Add(order.TotalPrice)
	}
	return total.Shift(2).Round(0).IntPart()
}
