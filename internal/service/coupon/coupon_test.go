package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
	"github.com/optiview/eyewear-shop/internal/repo"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.Coupon{},
		&models.CouponProduct{},
		&models.RedeemedCoupon{},
	))

	return &Service{Repo: repo.New(db)}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func timePtr(v time.Time) *time.Time {
	return &v
}

func seedCoupon(t *testing.T, svc *Service, coupon *models.Coupon) *models.Coupon {
	t.Helper()
	if coupon.ValidFrom.IsZero() {
		coupon.ValidFrom = time.Now().Add(-time.Hour)
	}
	coupon.IsActive = true
	if coupon.DiscountType == "" {
		coupon.DiscountType = models.DiscountPercentage
	}
	require.NoError(t, svc.Repo.DB.Create(coupon).Error)
	return coupon
}

func TestValidate_PercentageDiscount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedCoupon(t, svc, &models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		ApplyToAll:    true,
	})

	res, err := svc.Validate(ctx, "SAVE10", OrderContext{OrderValue: 200})
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.DiscountAmount)
	assert.Equal(t, 180.0, res.FinalAmount)
}

func TestValidate_PercentageCappedByMaxDiscount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedCoupon(t, svc, &models.Coupon{
		Code:          "BIG20",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 20,
		MaxDiscount:   floatPtr(500),
		ApplyToAll:    true,
	})

	res, err := svc.Validate(ctx, "BIG20", OrderContext{OrderValue: 5000})
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.DiscountAmount)
	assert.Equal(t, 4500.0, res.FinalAmount)

	// The cap holds for arbitrarily large order values.
	res, err = svc.Validate(ctx, "BIG20", OrderContext{OrderValue: 10_000_000})
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.DiscountAmount)
}

func TestValidate_FixedAmountClampedToOrderValue(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedCoupon(t, svc, &models.Coupon{
		Code:          "FLAT300",
		DiscountType:  models.DiscountFixedAmount,
		DiscountValue: 300,
		ApplyToAll:    true,
	})

	res, err := svc.Validate(ctx, "FLAT300", OrderContext{OrderValue: 100})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.DiscountAmount)
	assert.Equal(t, 0.0, res.FinalAmount)
}

func TestValidate_ZeroOrderValueFallsBackToRawValue(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedCoupon(t, svc, &models.Coupon{
		Code:          "EARLY15",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 15,
		ApplyToAll:    true,
	})

	// Callers sometimes validate before pricing is known; the raw
	// discount value comes back instead of zero.
	res, err := svc.Validate(ctx, "EARLY15", OrderContext{OrderValue: 0})
	require.NoError(t, err)
	assert.Equal(t, 15.0, res.DiscountAmount)
	assert.Equal(t, 0.0, res.FinalAmount)
}

func TestValidate_CodeIsCaseNormalized(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedCoupon(t, svc, &models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		ApplyToAll:    true,
	})

	res, err := svc.Validate(ctx, "save10", OrderContext{OrderValue: 100})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", res.Coupon.Code)
}

func TestValidate_Rejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()
	otherProduct := uuid.New()

	inactive := seedCoupon(t, svc, &models.Coupon{
		Code: "GONE", DiscountValue: 10, ApplyToAll: true,
	})
	require.NoError(t, svc.Repo.DB.Model(inactive).Update("is_active", false).Error)

	seedCoupon(t, svc, &models.Coupon{
		Code: "SOON", DiscountValue: 10, ApplyToAll: true,
		ValidFrom: time.Now().Add(time.Hour),
	})
	seedCoupon(t, svc, &models.Coupon{
		Code: "OLD", DiscountValue: 10, ApplyToAll: true,
		ValidFrom: time.Now().Add(-48 * time.Hour),
		ValidTo:   timePtr(time.Now().Add(-time.Hour)),
	})
	seedCoupon(t, svc, &models.Coupon{
		Code: "MIN500", DiscountValue: 10, ApplyToAll: true,
		MinOrderValue: floatPtr(500),
	})
	scoped := seedCoupon(t, svc, &models.Coupon{
		Code: "FRAMES", DiscountValue: 10, ApplyToAll: false,
	})
	require.NoError(t, svc.Repo.DB.Create(&models.CouponProduct{
		CouponID: scoped.ID, ProductID: productID,
	}).Error)

	limited := seedCoupon(t, svc, &models.Coupon{
		Code: "LIMIT1", DiscountValue: 10, ApplyToAll: true,
		UsageLimit: intPtr(1),
	})
	require.NoError(t, svc.Repo.DB.Create(&models.RedeemedCoupon{
		UserID: uuid.New(), CouponID: limited.ID, RedeemedAt: time.Now(),
	}).Error)

	perUser := seedCoupon(t, svc, &models.Coupon{
		Code: "ONCE", DiscountValue: 10, ApplyToAll: true,
		PerUserLimit: intPtr(1),
	})
	require.NoError(t, svc.Repo.DB.Create(&models.RedeemedCoupon{
		UserID: userID, CouponID: perUser.ID, RedeemedAt: time.Now(),
	}).Error)

	tests := []struct {
		name   string
		code   string
		oc     OrderContext
		reason RejectReason
	}{
		{name: "unknown code", code: "NOPE", oc: OrderContext{OrderValue: 100}, reason: ReasonNotFound},
		{name: "inactive", code: "GONE", oc: OrderContext{OrderValue: 100}, reason: ReasonInactive},
		{name: "not yet valid", code: "SOON", oc: OrderContext{OrderValue: 100}, reason: ReasonNotYetValid},
		{name: "expired", code: "OLD", oc: OrderContext{OrderValue: 100}, reason: ReasonExpired},
		{name: "below minimum order value", code: "MIN500", oc: OrderContext{OrderValue: 499}, reason: ReasonMinOrderValue},
		{
			name: "not applicable to items", code: "FRAMES",
			oc:     OrderContext{OrderValue: 100, ProductIDs: []uuid.UUID{otherProduct}},
			reason: ReasonNotApplicable,
		},
		{name: "usage limit reached", code: "LIMIT1", oc: OrderContext{OrderValue: 100}, reason: ReasonUsageLimit},
		{
			name: "per-user limit reached", code: "ONCE",
			oc:     OrderContext{OrderValue: 100, UserID: userID},
			reason: ReasonAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(ctx, tt.code, tt.oc)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.reason, vErr.Reason)
			assert.NotEmpty(t, vErr.Message)
		})
	}

	t.Run("scoped coupon accepts matching item", func(t *testing.T) {
		res, err := svc.Validate(ctx, "FRAMES", OrderContext{
			OrderValue: 100,
			ProductIDs: []uuid.UUID{productID, otherProduct},
		})
		require.NoError(t, err)
		assert.Equal(t, 10.0, res.DiscountAmount)
	})

	t.Run("per-user limit skipped for anonymous caller", func(t *testing.T) {
		_, err := svc.Validate(ctx, "ONCE", OrderContext{OrderValue: 100})
		require.NoError(t, err)
	})
}

func TestMinOrderValueMessageIncludesThreshold(t *testing.T) {
	svc := newTestService(t)

	seedCoupon(t, svc, &models.Coupon{
		Code: "MIN250", DiscountValue: 10, ApplyToAll: true,
		MinOrderValue: floatPtr(250),
	})

	_, err := svc.Validate(context.Background(), "MIN250", OrderContext{OrderValue: 100})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "250")
}

func TestRemove_DeactivatesWhenReferenced(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	referenced := seedCoupon(t, svc, &models.Coupon{
		Code: "KEEP", DiscountValue: 10, ApplyToAll: true,
	})
	require.NoError(t, svc.Repo.DB.Create(&models.Order{
		UserID:        uuid.New(),
		TotalAmount:   100,
		FinalAmount:   90,
		Discount:      10,
		Currency:      "INR",
		CouponID:      &referenced.ID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}).Error)

	unreferenced := seedCoupon(t, svc, &models.Coupon{
		Code: "DROP", DiscountValue: 10, ApplyToAll: true,
	})

	require.NoError(t, svc.Remove(ctx, referenced.ID))
	kept, err := svc.Repo.GetCoupon(ctx, referenced.ID)
	require.NoError(t, err)
	assert.False(t, kept.IsActive, "referenced coupon must be soft-deleted")

	require.NoError(t, svc.Remove(ctx, unreferenced.ID))
	_, err = svc.Repo.GetCoupon(ctx, unreferenced.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		coupon models.Coupon
	}{
		{name: "empty code", coupon: models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: 10}},
		{name: "percentage above 100", coupon: models.Coupon{Code: "X", DiscountType: models.DiscountPercentage, DiscountValue: 150}},
		{name: "non-positive fixed amount", coupon: models.Coupon{Code: "X", DiscountType: models.DiscountFixedAmount, DiscountValue: 0}},
		{name: "unknown discount type", coupon: models.Coupon{Code: "X", DiscountType: "BOGOF", DiscountValue: 10}},
		{name: "empty product set without apply-to-all", coupon: models.Coupon{Code: "X", DiscountType: models.DiscountPercentage, DiscountValue: 10, ApplyToAll: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.coupon
			c.ValidFrom = time.Now()
			err := svc.Create(ctx, &c)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
