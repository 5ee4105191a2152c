package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// GetProducts resolves a set of product ids in one batch read. Unknown
// ids are simply absent from the returned map; callers decide whether
// that is an error.
func (r *GormRepo) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *GormRepo) GetLenses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Lens, error) {
	out := make(map[uuid.UUID]models.Lens, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var lenses []models.Lens
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&lenses).Error; err != nil {
		return nil, err
	}
	for _, l := range lenses {
		out[l.ID] = l
	}
	return out, nil
}

// GetUserAddress returns the address only when it belongs to the user.
func (r *GormRepo) GetUserAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	if err := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&addr).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}
