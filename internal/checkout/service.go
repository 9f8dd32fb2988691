package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/pkg/config"
	"github.com/kharido-labs/kharido-backend/pkg/db/models"
	"github.com/kharido-labs/kharido-backend/pkg/enums"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/types"
)

// CartItem is one line of the buyer's flat cart.
type CartItem struct {
	ProductID uuid.UUID
	SellerID  uuid.UUID
	ListingID uuid.UUID
	Quantity  int
}

// SplitInput carries everything needed to turn a mixed-seller cart into
// per-seller orders.
type SplitInput struct {
	BuyerID         uuid.UUID
	IdempotencyKey  string
	ShippingAddress *types.Address
	PaymentMethod   enums.PaymentMethod
	Discount        decimal.Decimal
	Items           []CartItem
}

type txRetryRunner interface {
	WithTxRetry(ctx context.Context, attempts uint64, fn func(tx *gorm.DB) error) error
}

// Service splits a cart into per-seller orders atomically.
type Service interface {
	Split(ctx context.Context, input SplitInput) ([]models.Order, error)
}

type service struct {
	repo      Repository
	orders    orders.Repository
	tx        txRetryRunner
	cfg       config.CheckoutConfig
	walletCfg config.WalletConfig
	logg      *logger.Logger
}

// NewService wires the order splitter.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRetryRunner, cfg config.CheckoutConfig, walletCfg config.WalletConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if _, err := walletCfg.Commission(); err != nil {
		return nil, err
	}
	return &service{repo: repo, orders: ordersRepo, tx: tx, cfg: cfg, walletCfg: walletCfg, logg: logg}, nil
}

// sellerCart is one seller's slice of the cart with its priced lines.
type sellerCart struct {
	sellerID uuid.UUID
	lines    []pricedLine
	subtotal decimal.Decimal
}

type pricedLine struct {
	item      CartItem
	listing   models.SellerListing
	product   models.Product
	unitPrice decimal.Decimal
	lineTotal decimal.Decimal
}

func (s *service) Split(ctx context.Context, input SplitInput) ([]models.Order, error) {
	if err := validateSplitInput(input); err != nil {
		return nil, err
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = enums.PaymentMethodGateway
	}

	since := time.Now().UTC().Add(-s.cfg.IdempotencyWindow)

	var result []models.Order
	err := s.tx.WithTxRetry(ctx, s.cfg.TxRetryAttempts, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)

		// Replay of a recent checkout returns the original orders untouched.
		existing, err := ordersRepo.FindByIdempotencyKey(ctx, input.BuyerID, input.IdempotencyKey, since)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lookup")
		}
		if len(existing) > 0 {
			result = existing
			return nil
		}

		carts, err := s.priceCart(ctx, tx, input.Items)
		if err != nil {
			return err
		}

		built, err := s.buildOrders(input, carts)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		soldByProduct := make(map[uuid.UUID]int)
		for _, cart := range carts {
			for _, line := range cart.lines {
				rows, err := repo.DecrementStock(ctx, line.listing.ID, line.item.Quantity)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement listing stock")
				}
				if rows == 0 {
					return pkgerrors.New(pkgerrors.CodeStateConflict,
						fmt.Sprintf("insufficient stock for listing %s", line.listing.ID))
				}
				soldByProduct[line.product.ID] += line.item.Quantity
			}
		}
		for productID, quantity := range soldByProduct {
			if err := repo.IncrementSoldCount(ctx, productID, quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment sold count")
			}
		}

		if err := ordersRepo.CreateOrders(ctx, built); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create orders")
		}

		result = make([]models.Order, 0, len(built))
		for _, order := range built {
			result = append(result, *order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithBuyerID(ctx, input.BuyerID.String())
	s.logg.Info(ctx, fmt.Sprintf("checkout split into %d orders", len(result)))
	return result, nil
}

// priceCart loads the authoritative listings and products and partitions the
// cart by seller, preserving the order sellers first appear in.
func (s *service) priceCart(ctx context.Context, tx *gorm.DB, items []CartItem) ([]*sellerCart, error) {
	repo := s.repo.WithTx(tx)

	listingIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		listingIDs = append(listingIDs, item.ListingID)
	}
	listings, err := repo.FindListings(ctx, listingIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listings")
	}
	listingByID := make(map[uuid.UUID]models.SellerListing, len(listings))
	for _, listing := range listings {
		listingByID[listing.ID] = listing
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := repo.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	productByID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		productByID[product.ID] = product
	}

	cartBySeller := make(map[uuid.UUID]*sellerCart)
	var sellerOrder []uuid.UUID
	for _, item := range items {
		listing, ok := listingByID[item.ListingID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("listing %s not found", item.ListingID))
		}
		if !listing.Active {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("listing %s is inactive", item.ListingID))
		}
		// A seller or product mismatch poisons the whole request.
		if listing.SellerID != item.SellerID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("listing %s does not belong to seller %s", item.ListingID, item.SellerID))
		}
		if listing.ProductID != item.ProductID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("listing %s does not offer product %s", item.ListingID, item.ProductID))
		}
		product, ok := productByID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %s not found", item.ProductID))
		}

		cart, ok := cartBySeller[item.SellerID]
		if !ok {
			cart = &sellerCart{sellerID: item.SellerID, subtotal: decimal.Zero}
			cartBySeller[item.SellerID] = cart
			sellerOrder = append(sellerOrder, item.SellerID)
		}

		lineTotal := listing.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		cart.lines = append(cart.lines, pricedLine{
			item:      item,
			listing:   listing,
			product:   product,
			unitPrice: listing.Price,
			lineTotal: lineTotal,
		})
		cart.subtotal = cart.subtotal.Add(lineTotal)
	}

	carts := make([]*sellerCart, 0, len(sellerOrder))
	for _, sellerID := range sellerOrder {
		carts = append(carts, cartBySeller[sellerID])
	}
	return carts, nil
}

func (s *service) buildOrders(input SplitInput, carts []*sellerCart) ([]*models.Order, error) {
	totalValue := decimal.Zero
	for _, cart := range carts {
		totalValue = totalValue.Add(cart.subtotal)
	}
	if input.Discount.GreaterThan(totalValue) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds cart value")
	}

	shares := splitDiscount(input.Discount, carts, totalValue)

	commissionRate, err := s.walletCfg.Commission()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commission rate")
	}

	built := make([]*models.Order, 0, len(carts))
	for i, cart := range carts {
		total := cart.subtotal.Sub(shares[i])
		commission := total.Mul(commissionRate).Round(2)
		order := &models.Order{
			ID:              uuid.New(),
			BuyerID:         input.BuyerID,
			SellerID:        cart.sellerID,
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   input.PaymentMethod,
			Currency:        enums.CurrencyINR,
			ItemsPrice:      cart.subtotal,
			TaxPrice:        decimal.Zero,
			ShippingPrice:   decimal.Zero,
			Discount:        shares[i],
			TotalPrice:      total,
			OrderStatus:     enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			IdempotencyKey:  input.IdempotencyKey,
			Commission:      commission,
			SellerEarnings:  total.Sub(commission),
		}
		for _, line := range cart.lines {
			order.Items = append(order.Items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: line.product.ID,
				ListingID: line.listing.ID,
				Name:      line.product.Name,
				ImageURL:  line.product.ImageURL,
				SKU:       line.product.SKU,
				UnitPrice: line.unitPrice,
				Quantity:  line.item.Quantity,
			})
		}
		built = append(built, order)
	}
	return built, nil
}

// splitDiscount allocates the cart-level discount proportionally to each
// seller's subtotal. Rounding remainder lands on the last partition so the
// shares always sum to the exact discount.
func splitDiscount(discount decimal.Decimal, carts []*sellerCart, totalValue decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(carts))
	if totalValue.IsZero() || discount.IsZero() {
		for i := range shares {
			shares[i] = decimal.Zero
		}
		return shares
	}

	allocated := decimal.Zero
	for i, cart := range carts {
		if i == len(carts)-1 {
			shares[i] = discount.Sub(allocated)
			break
		}
		share := discount.Mul(cart.subtotal).Div(totalValue).Round(2)
		shares[i] = share
		allocated = allocated.Add(share)
	}
	return shares
}

func validateSplitInput(input SplitInput) error {
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.IdempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if input.Discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}
	if input.PaymentMethod != "" && !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil || item.SellerID == uuid.Nil || item.ListingID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %d is missing ids", i))
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %d has non-positive quantity", i))
		}
	}
	return nil
}
