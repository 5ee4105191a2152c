package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
)

func (r *GormRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB.WithContext(ctx).
		Preload("Products").
		Where("code = ?", strings.ToUpper(code)).
		First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *GormRepo) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB.WithContext(ctx).Preload("Products").First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *GormRepo) ListCoupons(ctx context.Context, limit, offset int) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.DB.WithContext(ctx).
		Preload("Products").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

func (r *GormRepo) CountRedemptions(ctx context.Context, couponID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.RedeemedCoupon{}).
		Where("coupon_id = ?", couponID).
		Count(&n).Error
	return n, err
}

func (r *GormRepo) CountUserRedemptions(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.RedeemedCoupon{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&n).Error
	return n, err
}

func (r *GormRepo) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(coupon.Code)
	return r.DB.WithContext(ctx).Create(coupon).Error
}

func (r *GormRepo) UpdateCoupon(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(coupon.Code)
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("coupon_id = ?", coupon.ID).Delete(&models.CouponProduct{}).Error; err != nil {
			return err
		}
		return tx.Save(coupon).Error
	})
}

// CouponReferenced reports whether any order carries this coupon, in
// which case the coupon may only be deactivated, never deleted.
func (r *GormRepo) CouponReferenced(ctx context.Context, couponID uuid.UUID) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("coupon_id = ?", couponID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) DeactivateCoupon(ctx context.Context, couponID uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Update("is_active", false).Error
}

func (r *GormRepo) DeleteCoupon(ctx context.Context, couponID uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("coupon_id = ?", couponID).Delete(&models.CouponProduct{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Coupon{}, "id = ?", couponID).Error
	})
}
