package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
)

// earningsCreditor releases a delivered order's earnings into the seller's
// wallet. Failures are repairable offline, so delivery never blocks on it.
type earningsCreditor interface {
	CreditOrderEarnings(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Service drives the order lifecycle after checkout has created the orders.
type Service interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// allowedTransitions is the forward-only lifecycle. Terminal states have no
// outgoing edges; cancellation is reachable only before fulfilment starts.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
}

func transitionAllowed(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

type service struct {
	repo    Repository
	credits earningsCreditor
	logg    *logger.Logger
}

// NewService wires the order lifecycle service.
func NewService(repo Repository, credits earningsCreditor, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if credits == nil {
		return nil, fmt.Errorf("earnings creditor required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, credits: credits, logg: logg}, nil
}

func (s *service) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	orders, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return orders, nil
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	orders, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller orders")
	}
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", next))
	}

	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == next {
		return order, nil
	}
	if !transitionAllowed(order.OrderStatus, next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.OrderStatus, next))
	}

	now := time.Now().UTC()
	updates := map[string]any{"order_status": next}
	switch next {
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	if err := s.repo.UpdateStatus(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	order.OrderStatus = next
	switch next {
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
		s.creditEarnings(ctx, order.ID)
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.UpdateStatus(ctx, orderID, enums.OrderStatusCancelled)
}

// creditEarnings is best effort: the delivery status change has already
// committed, and a missed credit is recovered by ledger reconciliation.
func (s *service) creditEarnings(ctx context.Context, orderID uuid.UUID) {
	if _, err := s.credits.CreditOrderEarnings(ctx, orderID); err != nil {
		ctx = s.logg.WithField(ctx, "order_id", orderID.String())
		s.logg.Error(ctx, "earnings credit after delivery failed", err)
	}
}
