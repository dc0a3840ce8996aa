package models

import "time"

// Order statuses. Transitions are linear up to delivered; cancellation is
// only allowed before the order ships.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusShipping   OrderStatus = "shipping"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Payment statuses, tracked independently of the order status.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment methods accepted at checkout.
const (
	PaymentMethodCOD     = "cod"
	PaymentMethodVNPay   = "vnpay"
	PaymentMethodZaloPay = "zalopay"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:   {OrderStatusDelivered},
}

// CanTransition reports whether moving from s to next is a legal step in the
// order lifecycle. Delivered and cancelled are terminal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusConfirmed:
		return true
	}
	return false
}

// OrderItem is a durable snapshot of a product line at order time. It copies
// the name and price so later catalog edits never change historical orders.
type OrderItem struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string  `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID   string  `json:"product_id" gorm:"type:varchar(36)"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"` // unit price at order time
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

// Order is the system of record for a purchase.
// Total is fixed at creation: total = subtotal + shipping_fee - discount.
type Order struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber string      `json:"order_number" gorm:"uniqueIndex;type:varchar(20)"`
	UserID      string      `json:"user_id" gorm:"index;type:varchar(36)"`
	Items       []OrderItem `json:"items" gorm:"foreignKey:OrderID"`

	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	ShippingAddress string `json:"shipping_address"`
	Note            string `json:"note,omitempty"`

	PaymentMethod string        `json:"payment_method" gorm:"type:varchar(20)"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(20);default:pending"`
	OrderStatus   OrderStatus   `json:"order_status" gorm:"type:varchar(20);default:pending"`
	GatewayTxnID  string        `json:"gateway_txn_id,omitempty" gorm:"type:varchar(64)"`

	Subtotal    float64 `json:"subtotal"`
	ShippingFee float64 `json:"shipping_fee"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`

	DiscountVoucherID *string `json:"discount_voucher_id,omitempty" gorm:"type:varchar(36)"`
	FreeShipVoucherID *string `json:"free_ship_voucher_id,omitempty" gorm:"type:varchar(36)"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// VoucherIDs returns the voucher ids referenced by the order, if any.
func (o *Order) VoucherIDs() []string {
	var ids []string
	if o.DiscountVoucherID != nil {
		ids = append(ids, *o.DiscountVoucherID)
	}
	if o.FreeShipVoucherID != nil {
		ids = append(ids, *o.FreeShipVoucherID)
	}
	return ids
}
