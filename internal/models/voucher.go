package models

import (
	"time"

	"gorm.io/gorm"
)

// Voucher types. A discount voucher reduces the subtotal by a percentage
// (optionally capped); a free-ship voucher zeroes the shipping fee.
const (
	VoucherTypeDiscount = "DISCOUNT"
	VoucherTypeFreeShip = "FREE_SHIP"
)

// Voucher represents a promotion code.
type Voucher struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Code            string     `json:"code" gorm:"uniqueIndex;type:varchar(50)" validate:"required,min=3,max=50"`
	Type            string     `json:"type" gorm:"type:varchar(20)" validate:"required,oneof=DISCOUNT FREE_SHIP"`
	DiscountPercent int        `json:"discount_percent" validate:"omitempty,gte=1,lte=100"`
	MaxDiscount     *float64   `json:"max_discount,omitempty" validate:"omitempty,gt=0"`
	MinOrderAmount  float64    `json:"min_order_amount" validate:"gte=0"`
	UsageLimit      *int       `json:"usage_limit,omitempty" validate:"omitempty,gte=1"` // nil = unlimited
	UsedCount       int        `json:"used_count"`
	UserID          *string    `json:"user_id,omitempty"` // nil = public voucher
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	IsActive        bool       `json:"is_active" gorm:"default:true"`
	gorm.Model
}
