package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/cache"
	"github.com/optiview/eyewear-shop/internal/gateway"
	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/mail"
	"github.com/optiview/eyewear-shop/internal/models"
	"github.com/optiview/eyewear-shop/internal/repo"
	"github.com/optiview/eyewear-shop/internal/service/coupon"
	"github.com/optiview/eyewear-shop/internal/users"
)

var (
	ErrValidation   = errors.New("validation")    // 400
	ErrNotFound     = errors.New("not found")     // 404
	ErrStock        = errors.New("out of stock")  // 400
	ErrBadSignature = errors.New("bad signature") // 400
	ErrGateway      = errors.New("gateway")       // 502
)

// Publisher is the order-event sink (Kafka in production).
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}

// Service owns order creation and settlement. All collaborators are
// injected; none are package-level singletons.
type Service struct {
	Repo     *repo.GormRepo
	Coupons  *coupon.Service
	Gateway  gateway.Client
	Cache    cache.Cache
	Mailer   mail.Mailer
	Producer Publisher
	Users    users.Directory
	Currency string
}

type ItemInput struct {
	ProductID uuid.UUID  `json:"product_id"`
	LensID    *uuid.UUID `json:"lens_id,omitempty"`
	Quantity  uint       `json:"quantity"`
}

type CreateOrderInput struct {
	Items      []ItemInput `json:"items"`
	AddressID  *uuid.UUID  `json:"address_id,omitempty"`
	CouponCode string      `json:"coupon_code,omitempty"`

	// Shipping and GSTRate are set by the server from its own pricing
	// config, never taken from the request body.
	Shipping float64 `json:"-"`
	GSTRate  float64 `json:"-"`
}

type GatewayIntent struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type CreateOrderResult struct {
	Order   *models.Order `json:"order"`
	Gateway GatewayIntent `json:"gateway"`
}

// CreateOrder snapshots prices and stock availability into an immutable
// order and registers a payment intent with the gateway. Stock is only
// checked here; the decrement belongs to settlement.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*CreateOrderResult, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	if in.Shipping < 0 || in.GSTRate < 0 {
		return nil, fmt.Errorf("%w: shipping and gst must not be negative", ErrValidation)
	}

	productIDs := make([]uuid.UUID, 0, len(in.Items))
	lensIDs := make([]uuid.UUID, 0)
	for _, it := range in.Items {
		if it.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if it.Quantity == 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
		productIDs = append(productIDs, it.ProductID)
		if it.LensID != nil {
			lensIDs = append(lensIDs, *it.LensID)
		}
	}

	products, err := s.Repo.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	lenses, err := s.Repo.GetLenses(ctx, lensIDs)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	snapshot := make([]models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, it.ProductID)
		}
		if p.Stock < int(it.Quantity) {
			return nil, fmt.Errorf("%w: %s has %d left", ErrStock, p.Name, p.Stock)
		}

		unit := decimal.NewFromFloat(p.EffectivePrice())
		line := models.OrderItem{
			ProductID: p.ID,
			Quantity:  it.Quantity,
			UnitPrice: p.EffectivePrice(),
		}
		if it.LensID != nil {
			lens, ok := lenses[*it.LensID]
			if !ok {
				return nil, fmt.Errorf("%w: lens %s", ErrNotFound, *it.LensID)
			}
			price := lens.Price
			line.LensID = &lens.ID
			line.LensName = lens.Name
			line.LensPrice = &price
			unit = unit.Add(decimal.NewFromFloat(lens.Price))
		}

		lineTotal := unit.Mul(decimal.NewFromInt(int64(it.Quantity)))
		line.LineTotal, _ = lineTotal.Round(2).Float64()
		subtotal = subtotal.Add(lineTotal)
		snapshot = append(snapshot, line)
	}

	discount := decimal.Zero
	var couponID *uuid.UUID
	if in.CouponCode != "" {
		subtotalF, _ := subtotal.Float64()
		res, err := s.Coupons.Validate(ctx, in.CouponCode, coupon.OrderContext{
			OrderValue: subtotalF,
			ProductIDs: productIDs,
			UserID:     userID,
		})
		if err != nil {
			return nil, err
		}
		discount = decimal.NewFromFloat(res.DiscountAmount)
		couponID = &res.Coupon.ID
	}

	if in.AddressID != nil {
		if _, err := s.Repo.GetUserAddress(ctx, *in.AddressID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: address does not belong to user", ErrValidation)
			}
			return nil, err
		}
	}

	// Shipping is added before tax; GST applies to goods plus shipping.
	payable := subtotal.Sub(discount)
	payable = payable.Add(decimal.NewFromFloat(in.Shipping))
	gst := payable.Mul(decimal.NewFromFloat(in.GSTRate)).Div(decimal.NewFromInt(100))
	payable = payable.Add(gst).Round(2)

	finalAmount, _ := payable.Float64()
	discountF, _ := discount.Round(2).Float64()
	totalAmount, _ := payable.Add(discount).Round(2).Float64()

	order := &models.Order{
		UserID:        userID,
		TotalAmount:   totalAmount,
		Discount:      discountF,
		FinalAmount:   finalAmount,
		Currency:      s.Currency,
		AddressID:     in.AddressID,
		CouponID:      couponID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Items:         snapshot,
	}
	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	gatewayOrderID, err := s.Gateway.CreateOrder(ctx, finalAmount, s.Currency, order.ID.String())
	if err != nil {
		// The PENDING row stays behind for manual reconciliation or a
		// later retry with a fresh gateway order.
		logging.FromContext(ctx).Error("gateway_order_failed",
			"order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := s.Repo.SetGatewayOrderID(ctx, order.ID, gatewayOrderID); err != nil {
		return nil, err
	}
	order.GatewayOrderID = gatewayOrderID

	s.publishAsync(ctx, order.ID.String(), map[string]any{
		"type":     "order.created",
		"order_id": order.ID,
		"user_id":  order.UserID,
		"amount":   order.FinalAmount,
	})

	return &CreateOrderResult{
		Order: order,
		Gateway: GatewayIntent{
			OrderID:  gatewayOrderID,
			Amount:   finalAmount,
			Currency: s.Currency,
		},
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order", ErrNotFound)
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListOrders(ctx, userID, limit, offset)
}
