package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
)

func (r *GormRepo) GetCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceCartItems rewrites the user's whole cart: delete existing lines,
// insert the current set. Carts are small, so a full replace beats diffing.
func (r *GormRepo) ReplaceCartItems(ctx context.Context, userID uuid.UUID, items []models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].UserID = userID
			items[i].ID = uuid.Nil
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *GormRepo) DeleteCart(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
