package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

// Repository manages persistence for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrders(ctx context.Context, orders []*models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDs(ctx context.Context, orderIDs []uuid.UUID) ([]models.Order, error)
	// FindByIdempotencyKey returns the buyer's orders created under the key
	// since the given cutoff, oldest first.
	FindByIdempotencyKey(ctx context.Context, buyerID uuid.UUID, key string, since time.Time) ([]models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	ListDeliveredBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	// MarkPaid flips payment_status pending -> paid for every given order and
	// stamps the gateway result. Returns the number of rows actually updated
	// so callers can detect a partial match and roll back.
	MarkPaid(ctx context.Context, orderIDs []uuid.UUID, result *types.PaymentResult, paidAt time.Time) (int64, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, updates map[string]any) error

	FindOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	// MarkEarningsCredited flips is_earnings_credited false -> true and reports
	// whether this call won the flip.
	MarkEarningsCredited(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	SetEarnings(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commission, earnings decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrders(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(orders).Error
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDs(ctx context.Context, orderIDs []uuid.UUID) ([]models.Order, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id IN ?", orderIDs).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, buyerID uuid.UUID, key string, since time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ? AND idempotency_key = ? AND created_at >= ?", buyerID, key, since).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListDeliveredBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND order_status = ?", sellerID, enums.OrderStatusDelivered).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) MarkPaid(ctx context.Context, orderIDs []uuid.UUID, result *types.PaymentResult, paidAt time.Time) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	// Struct-based update so the jsonb serializer applies to payment_result.
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND payment_status = ?", orderIDs, enums.PaymentStatusPending).
		Select("payment_status", "order_status", "payment_result", "paid_at").
		Updates(models.Order{
			PaymentStatus: enums.PaymentStatusPaid,
			OrderStatus:   enums.OrderStatusConfirmed,
			PaymentResult: result,
			PaidAt:        &paidAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	return r.WithTx(tx).FindByID(ctx, orderID)
}

func (r *repository) MarkEarningsCredited(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_earnings_credited = ?", orderID, false).
		Update("is_earnings_credited", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetEarnings(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commission, earnings decimal.Decimal) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"commission":      commission,
			"seller_earnings": earnings,
		}).Error
}
