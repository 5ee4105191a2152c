package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
)

// Admin mutations. Coupons referenced by any order are only ever
// deactivated, never deleted.

func (s *Service) Create(ctx context.Context, coupon *models.Coupon) error {
	if err := checkCoupon(coupon); err != nil {
		return err
	}
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	return s.Repo.CreateCoupon(ctx, coupon)
}

func (s *Service) Update(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == uuid.Nil {
		return fmt.Errorf("%w: coupon id required", ErrValidation)
	}
	if err := checkCoupon(coupon); err != nil {
		return err
	}
	if _, err := s.Repo.GetCoupon(ctx, coupon.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: coupon", ErrNotFound)
		}
		return err
	}
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	return s.Repo.UpdateCoupon(ctx, coupon)
}

// Remove deletes an unreferenced coupon outright and deactivates one
// that any order already points at.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Repo.GetCoupon(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: coupon", ErrNotFound)
		}
		return err
	}

	referenced, err := s.Repo.CouponReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return s.Repo.DeactivateCoupon(ctx, id)
	}
	return s.Repo.DeleteCoupon(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.Repo.GetCoupon(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: coupon", ErrNotFound)
	}
	return coupon, err
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Coupon, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListCoupons(ctx, limit, offset)
}

func checkCoupon(coupon *models.Coupon) error {
	if strings.TrimSpace(coupon.Code) == "" {
		return fmt.Errorf("%w: code required", ErrValidation)
	}
	switch coupon.DiscountType {
	case models.DiscountPercentage:
		if coupon.DiscountValue <= 0 || coupon.DiscountValue > 100 {
			return fmt.Errorf("%w: percentage must be in (0, 100]", ErrValidation)
		}
	case models.DiscountFixedAmount:
		if coupon.DiscountValue <= 0 {
			return fmt.Errorf("%w: discount value must be positive", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, coupon.DiscountType)
	}
	if coupon.ValidTo != nil && coupon.ValidTo.Before(coupon.ValidFrom) {
		return fmt.Errorf("%w: valid_to before valid_from", ErrValidation)
	}
	if !coupon.ApplyToAll && len(coupon.Products) == 0 {
		return fmt.Errorf("%w: product set required when not applicable to all", ErrValidation)
	}
	return nil
}
