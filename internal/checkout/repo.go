package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/pkg/db/models"
)

// Repository reads the catalog rows the splitter prices against and applies
// the counter updates that ride in the order-creation transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindListings(ctx context.Context, listingIDs []uuid.UUID) ([]models.SellerListing, error)
	FindProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error)
	IncrementSoldCount(ctx context.Context, productID uuid.UUID, quantity int) error
	// DecrementStock reduces listing stock with a floor guard; returns the
	// number of rows updated (0 means insufficient stock).
	DecrementStock(ctx context.Context, listingID uuid.UUID, quantity int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a checkout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindListings(ctx context.Context, listingIDs []uuid.UUID) ([]models.SellerListing, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}
	var listings []models.SellerListing
	err := r.db.WithContext(ctx).
		Where("id IN ?", listingIDs).
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *repository) FindProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) IncrementSoldCount(ctx context.Context, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("sold_count", gorm.Expr("sold_count + ?", quantity)).Error
}

func (r *repository) DecrementStock(ctx context.Context, listingID uuid.UUID, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SellerListing{}).
		Where("id = ? AND stock >= ?", listingID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
