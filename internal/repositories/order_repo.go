package repositories

import (
	"time"

	"cuahang/internal/models"
)

// OrderRepository defines the interface for order data access.
//
// CreateCheckout commits the whole checkout as one unit of work: it inserts
// the order with its item snapshots, conditionally decrements stock for every
// line, re-checks and redeems every referenced voucher, and clears the user's
// cart when clearCart is set. Any failure rolls the whole unit back.
//
// MarkPaid, MarkFailed and Cancel are compare-and-set transitions; they
// return false (and mutate nothing) when the order was already past the
// expected state, which is how duplicate gateway callbacks are absorbed.
// MarkFailed and Cancel restore stock for every order line in the same
// transaction as the status change.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	GetByOrderNumber(orderNumber string) (*models.Order, error)
	GetByUser(userID string) ([]models.Order, error)
	OrderNumberExists(orderNumber string) (bool, error)
	HasUserRedeemedVoucher(userID, voucherID string) (bool, error)
	CreateCheckout(order *models.Order, clearCart bool) error
	MarkPaid(id, gatewayTxnID string, paidAt time.Time) (bool, error)
	MarkFailed(id string) (bool, error)
	Cancel(id, reason string) (bool, error)
	UpdateStatus(id string, status models.OrderStatus) error
}
