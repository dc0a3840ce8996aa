package services

import "cuahang/internal/models"

// BaseShippingFee is the flat shipping fee in VND applied to every order
// unless a free-ship voucher is present.
const BaseShippingFee = 30000

// PriceBreakdown is the result of pricing a set of cart lines.
type PriceBreakdown struct {
	Subtotal    float64 `json:"subtotal"`
	ShippingFee float64 `json:"shipping_fee"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
}

// Price computes the order totals from price snapshots and the selected
// vouchers. Pure function: inputs are already validated by the caller and
// nothing is mutated. Total is never negative because the discount is capped
// at a percentage of the subtotal and shipping is non-negative.
func Price(items []models.CartItem, discountVoucher, freeShipVoucher *models.Voucher) PriceBreakdown {
	var subtotal float64
	for _, item := range items {
		subtotal += item.PriceSnapshot * float64(item.Quantity)
	}

	shippingFee := float64(BaseShippingFee)
	if freeShipVoucher != nil {
		shippingFee = 0
	}

	var discount float64
	if discountVoucher != nil {
		discount = subtotal * float64(discountVoucher.DiscountPercent) / 100
		if discountVoucher.MaxDiscount != nil && discount > *discountVoucher.MaxDiscount {
			discount = *discountVoucher.MaxDiscount
		}
	}

	return PriceBreakdown{
		Subtotal:    subtotal,
		ShippingFee: shippingFee,
		Discount:    discount,
		Total:       subtotal + shippingFee - discount,
	}
}
