package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optiview/eyewear-shop/internal/models"
)

// settleTimeout bounds the settlement transaction: it touches one stock
// row per snapshot item, and a partial decrement must never survive.
const settleTimeout = 30 * time.Second

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	return r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("gateway_order_id", gatewayOrderID).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// PaymentEvidence is what a settlement trigger proves about the payment.
type PaymentEvidence struct {
	GatewayOrderID   string
	GatewayPaymentID string
	RawPayload       string
}

// SettleCaptured applies the full capture effects list in one transaction:
// payment-status flip, payment record, coupon redemption, stock decrement,
// cart clear. The flip is a compare-and-swap on payment_status, so both
// notification paths can call this concurrently and exactly one of them
// performs the side effects; the loser sees settled=false with no error.
func (r *GormRepo) SettleCaptured(ctx context.Context, order *models.Order, ev PaymentEvidence) (settled bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status <> ?", order.ID, models.PaymentStatusPaid).
			Updates(map[string]any{
				"payment_status": models.PaymentStatusPaid,
				"status":         models.OrderStatusProcessing,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already PAID: idempotent replay, nothing to do.
			return nil
		}
		settled = true

		payment := models.Payment{
			OrderID:          order.ID,
			GatewayOrderID:   ev.GatewayOrderID,
			GatewayPaymentID: ev.GatewayPaymentID,
			Amount:           order.FinalAmount,
			Status:           models.PaymentCaptured,
			RawPayload:       ev.RawPayload,
		}
		// A FAILED diagnostic record from an earlier attempt may occupy
		// the order's payment slot; capture overwrites it.
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"gateway_order_id", "gateway_payment_id", "amount", "status", "raw_payload",
			}),
		}).Create(&payment).Error; err != nil {
			return err
		}

		if order.CouponID != nil {
			redeemed := models.RedeemedCoupon{
				UserID:     order.UserID,
				CouponID:   *order.CouponID,
				RedeemedAt: time.Now().UTC(),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "coupon_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"redeemed_at"}),
			}).Create(&redeemed).Error; err != nil {
				return err
			}
		}

		for _, item := range order.Items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Over-sold between the creation-time check and now;
				// floor at zero rather than going negative.
				if err := tx.Model(&models.Product{}).
					Where("id = ?", item.ProductID).
					Update("stock", 0).Error; err != nil {
					return err
				}
			}
		}

		return tx.Where("user_id = ?", order.UserID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}

// SettleFailed flips a still-pending order to the failed state and stores
// a FAILED payment record for diagnostics. An order that already reached
// PAID is left untouched: the payment succeeded on a later retry.
func (r *GormRepo) SettleFailed(ctx context.Context, order *models.Order, ev PaymentEvidence) (flipped bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
			Updates(map[string]any{
				"payment_status": models.PaymentStatusFailed,
				"status":         models.OrderStatusPaymentFailed,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		flipped = true

		payment := models.Payment{
			OrderID:          order.ID,
			GatewayOrderID:   ev.GatewayOrderID,
			GatewayPaymentID: ev.GatewayPaymentID,
			Amount:           order.FinalAmount,
			Status:           models.PaymentFailed,
			RawPayload:       ev.RawPayload,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).Create(&payment).Error
	})
	if err != nil {
		return false, err
	}
	return flipped, nil
}

func (r *GormRepo) GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
