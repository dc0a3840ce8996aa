package models

// Notification event types published to the message broker.
const (
	NotificationOrderCreated  = "order.created"
	NotificationPaymentPaid   = "payment.paid"
	NotificationPaymentFailed = "payment.failed"
	NotificationOrderCancelled = "order.cancelled"
)

// NotificationEvent is the payload sent to the notification side-channel.
// Delivery is best-effort and must never fail the operation that emits it.
type NotificationEvent struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
}
