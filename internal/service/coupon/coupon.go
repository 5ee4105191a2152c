package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
	"github.com/optiview/eyewear-shop/internal/repo"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
)

// RejectReason identifies which validation rule rejected the code.
type RejectReason string

const (
	ReasonNotFound      RejectReason = "not_found"
	ReasonInactive      RejectReason = "inactive"
	ReasonNotYetValid   RejectReason = "not_yet_valid"
	ReasonExpired       RejectReason = "expired"
	ReasonMinOrderValue RejectReason = "min_order_value"
	ReasonNotApplicable RejectReason = "not_applicable"
	ReasonUsageLimit    RejectReason = "usage_limit"
	ReasonAlreadyUsed   RejectReason = "already_used"
)

// ValidationError is a typed rejection the caller can render verbatim.
type ValidationError struct {
	Reason  RejectReason
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func reject(reason RejectReason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

type Service struct {
	Repo *repo.GormRepo
}

// OrderContext is what the engine knows about the order being priced.
// UserID may be uuid.Nil when the caller validates before login.
type OrderContext struct {
	OrderValue float64
	ProductIDs []uuid.UUID
	UserID     uuid.UUID
}

type Result struct {
	Coupon         *models.Coupon `json:"coupon"`
	DiscountAmount float64        `json:"discount_amount"`
	FinalAmount    float64        `json:"final_amount"`
}

// Validate runs the full rule chain and computes the discount. It is
// read-only: redemption happens at settlement, so callers may revalidate
// as often as the cart changes.
func (s *Service) Validate(ctx context.Context, code string, oc OrderContext) (*Result, error) {
	coupon, err := s.Repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject(ReasonNotFound, "coupon %q not found", strings.ToUpper(code))
		}
		return nil, err
	}

	if !coupon.IsActive {
		return nil, reject(ReasonInactive, "coupon is no longer active")
	}

	now := time.Now().UTC()
	if now.Before(coupon.ValidFrom) {
		return nil, reject(ReasonNotYetValid, "coupon is not valid yet")
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return nil, reject(ReasonExpired, "coupon has expired")
	}

	if coupon.MinOrderValue != nil && oc.OrderValue < *coupon.MinOrderValue {
		return nil, reject(ReasonMinOrderValue, "minimum order value of %.2f not met", *coupon.MinOrderValue)
	}

	if !coupon.ApplyToAll {
		if !intersects(coupon.Products, oc.ProductIDs) {
			return nil, reject(ReasonNotApplicable, "coupon is not applicable to the selected items")
		}
	}

	if coupon.UsageLimit != nil {
		used, err := s.Repo.CountRedemptions(ctx, coupon.ID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.UsageLimit) {
			return nil, reject(ReasonUsageLimit, "coupon usage limit reached")
		}
	}

	if coupon.PerUserLimit != nil && oc.UserID != uuid.Nil {
		used, err := s.Repo.CountUserRedemptions(ctx, coupon.ID, oc.UserID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.PerUserLimit) {
			return nil, reject(ReasonAlreadyUsed, "coupon already used")
		}
	}

	discount, final := computeDiscount(coupon, oc.OrderValue)
	return &Result{Coupon: coupon, DiscountAmount: discount, FinalAmount: final}, nil
}

func intersects(set []models.CouponProduct, ids []uuid.UUID) bool {
	allowed := make(map[uuid.UUID]struct{}, len(set))
	for _, p := range set {
		allowed[p.ProductID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := allowed[id]; ok {
			return true
		}
	}
	return false
}

func computeDiscount(coupon *models.Coupon, orderValue float64) (discount, final float64) {
	value := decimal.NewFromFloat(orderValue)
	raw := decimal.NewFromFloat(coupon.DiscountValue)

	var d decimal.Decimal
	switch {
	case value.IsZero():
		// Order value unknown at validation time: surface the raw
		// discount value instead of zero.
		d = raw
	case coupon.DiscountType == models.DiscountPercentage:
		d = value.Mul(raw).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscount != nil {
			limit := decimal.NewFromFloat(*coupon.MaxDiscount)
			if d.GreaterThan(limit) {
				d = limit
			}
		}
	default:
		d = raw
	}

	if value.IsPositive() && d.GreaterThan(value) {
		d = value
	}

	f := value.Sub(d)
	if f.IsNegative() {
		f = decimal.Zero
	}

	discount, _ = d.Round(2).Float64()
	final, _ = f.Round(2).Float64()
	return discount, final
}
