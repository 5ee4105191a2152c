package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusProcessing    OrderStatus = "PROCESSING"
	OrderStatusShipped       OrderStatus = "SHIPPED"
	OrderStatusDelivered     OrderStatus = "DELIVERED"
	OrderStatusCancelled     OrderStatus = "CANCELLED"
	OrderStatusReturned      OrderStatus = "RETURNED"
	OrderStatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

type Product struct {
	ID            uuid.UUID `gorm:"primaryKey"                          json:"id"`
	Name          string    `gorm:"not null"                            json:"name"`
	Description   string    `json:"description"`
	Price         float64   `gorm:"not null"                            json:"price"`
	DiscountPrice *float64  `json:"discount_price,omitempty"`
	Stock         int       `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectivePrice is the unit price used for checkout: the discounted
// price when one is set, the list price otherwise.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

type Lens struct {
	ID    uuid.UUID `gorm:"primaryKey" json:"id"`
	Name  string    `gorm:"not null"   json:"name"`
	Price float64   `gorm:"not null"   json:"price"`
}

func (l *Lens) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type Address struct {
	ID      uuid.UUID `gorm:"primaryKey"     json:"id"`
	UserID  uuid.UUID `gorm:"index;not null" json:"user_id"`
	Line1   string    `gorm:"not null"       json:"line1"`
	Line2   string    `json:"line2"`
	City    string    `gorm:"not null"       json:"city"`
	State   string    `json:"state"`
	Pincode string    `gorm:"not null"       json:"pincode"`
	Phone   string    `json:"phone"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// CartItem is one durable cart line. A product may appear more than once
// in a cart when the lens configuration differs, hence the three-column
// unique index.
type CartItem struct {
	ID        uuid.UUID  `gorm:"primaryKey"                                 json:"id"`
	UserID    uuid.UUID  `gorm:"uniqueIndex:idx_user_product_lens;not null" json:"user_id"`
	ProductID uuid.UUID  `gorm:"uniqueIndex:idx_user_product_lens;not null" json:"product_id"`
	LensID    *uuid.UUID `gorm:"uniqueIndex:idx_user_product_lens"          json:"lens_id,omitempty"`
	Quantity  uint       `gorm:"default:1;check:quantity > 0"               json:"quantity"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string { return "cart_items" }

type Order struct {
	ID             uuid.UUID     `gorm:"primaryKey"            json:"id"`
	UserID         uuid.UUID     `gorm:"index;not null"        json:"user_id"`
	TotalAmount    float64       `gorm:"not null"              json:"total_amount"`
	Discount       float64       `gorm:"not null;default:0"    json:"discount"`
	FinalAmount    float64       `gorm:"not null"              json:"final_amount"`
	Currency       string        `gorm:"not null;default:INR"  json:"currency"`
	AddressID      *uuid.UUID    `json:"address_id,omitempty"`
	CouponID       *uuid.UUID    `json:"coupon_id,omitempty"`
	GatewayOrderID string        `gorm:"index"                 json:"gateway_order_id"`
	Status         OrderStatus   `gorm:"not null"              json:"status"`
	PaymentStatus  PaymentStatus `gorm:"not null"              json:"payment_status"`
	Items          []OrderItem   `gorm:"foreignKey:OrderID"    json:"items"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is an immutable snapshot line: unit and lens prices are the
// prices resolved at order creation and are never recomputed from the
// live catalog.
type OrderItem struct {
	ID        uuid.UUID  `gorm:"primaryKey"     json:"id"`
	OrderID   uuid.UUID  `gorm:"index;not null" json:"order_id"`
	ProductID uuid.UUID  `gorm:"not null"       json:"product_id"`
	Quantity  uint       `gorm:"not null"       json:"quantity"`
	UnitPrice float64    `gorm:"not null"       json:"unit_price"`
	LensID    *uuid.UUID `json:"lens_id,omitempty"`
	LensName  string     `json:"lens_name,omitempty"`
	LensPrice *float64   `json:"lens_price,omitempty"`
	LineTotal float64    `gorm:"not null"       json:"line_total"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

const (
	PaymentCaptured = "CAPTURED"
	PaymentFailed   = "FAILED"
)

type Payment struct {
	ID               uuid.UUID `gorm:"primaryKey"           json:"id"`
	OrderID          uuid.UUID `gorm:"uniqueIndex;not null" json:"order_id"`
	GatewayOrderID   string    `gorm:"index;not null"       json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Amount           float64   `gorm:"not null"             json:"amount"`
	Status           string    `gorm:"not null"             json:"status"` // CAPTURED or FAILED
	RawPayload       string    `gorm:"type:text"            json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Coupon struct {
	ID            uuid.UUID       `gorm:"primaryKey"            json:"id"`
	Code          string          `gorm:"uniqueIndex;not null"  json:"code"`
	DiscountType  DiscountType    `gorm:"not null"              json:"discount_type"`
	DiscountValue float64         `gorm:"not null"              json:"discount_value"`
	MaxDiscount   *float64        `json:"max_discount,omitempty"`
	MinOrderValue *float64        `json:"min_order_value,omitempty"`
	ValidFrom     time.Time       `gorm:"not null"              json:"valid_from"`
	ValidTo       *time.Time      `json:"valid_to,omitempty"`
	UsageLimit    *int            `json:"usage_limit,omitempty"`
	PerUserLimit  *int            `json:"per_user_limit,omitempty"`
	ApplyToAll    bool            `gorm:"not null;default:true" json:"apply_to_all"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	Products      []CouponProduct `gorm:"foreignKey:CouponID"   json:"products,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CouponProduct is one row of a coupon's explicit product set, populated
// only when ApplyToAll is false.
type CouponProduct struct {
	CouponID  uuid.UUID `gorm:"primaryKey" json:"coupon_id"`
	ProductID uuid.UUID `gorm:"primaryKey" json:"product_id"`
}

// RedeemedCoupon records one user's redemption of a coupon. The pair is
// unique; settlement replays upsert the timestamp instead of inserting a
// duplicate row.
type RedeemedCoupon struct {
	ID         uuid.UUID `gorm:"primaryKey"                           json:"id"`
	UserID     uuid.UUID `gorm:"uniqueIndex:idx_user_coupon;not null" json:"user_id"`
	CouponID   uuid.UUID `gorm:"uniqueIndex:idx_user_coupon;not null" json:"coupon_id"`
	RedeemedAt time.Time `gorm:"not null"                             json:"redeemed_at"`
}

func (r *RedeemedCoupon) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
