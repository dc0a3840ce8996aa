package repositories

import (
	"fmt"
	"time"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"

	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetAll retrieves all orders with their item snapshots.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Preload("Items").Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// GetByOrderNumber retrieves an order by its human-readable number. The
// payment gateways only ever see the order number, never the internal ID.
func (r *GORMOrderRepository) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").First(&order, "order_number = ?", orderNumber).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by number %s: %w", orderNumber, err)
	}
	return &order, nil
}

// GetByUser retrieves all orders placed by a user, newest first.
func (r *GORMOrderRepository) GetByUser(userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Items").Where("user_id = ?", userID).Order("created_at desc").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// OrderNumberExists reports whether an order number is already taken.
func (r *GORMOrderRepository) OrderNumberExists(orderNumber string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Order{}).Where("order_number = ?", orderNumber).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check order number %s: %w", orderNumber, err)
	}
	return count > 0, nil
}

// HasUserRedeemedVoucher reports whether the user has any order in their
// history referencing the voucher. Cancelled orders count: voucher usage is
// never given back on cancellation, so one voucher per user means ever, not
// per live order.
func (r *GORMOrderRepository) HasUserRedeemedVoucher(userID, voucherID string) (bool, error) {
	return hasUserRedeemedVoucher(r.db, userID, voucherID, "")
}

func hasUserRedeemedVoucher(db *gorm.DB, userID, voucherID, excludeOrderID string) (bool, error) {
	q := db.Model(&models.Order{}).
		Where("user_id = ?", userID).
		Where("discount_voucher_id = ? OR free_ship_voucher_id = ?", voucherID, voucherID)
	if excludeOrderID != "" {
		q = q.Where("id <> ?", excludeOrderID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check voucher usage for user %s: %w", userID, err)
	}
	return count > 0, nil
}

// CreateCheckout commits the checkout unit of work in a single transaction:
// order insert, conditional stock decrements, voucher re-check + redemption,
// cart clear. Any failure rolls everything back so there is never an order
// without its stock reservation, or a reservation without its order.
func (r *GORMOrderRepository) CreateCheckout(order *models.Order, clearCart bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		for _, item := range order.Items {
			if err := decrementStock(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		for _, voucherID := range order.VoucherIDs() {
			// Re-check inside the transaction: two concurrent checkouts by
			// the same user can both pass service-level validation.
			used, err := hasUserRedeemedVoucher(tx, order.UserID, voucherID, order.ID)
			if err != nil {
				return err
			}
			if used {
				return apperrors.ErrVoucherAlreadyUsed
			}
			if err := redeemVoucher(tx, voucherID); err != nil {
				return err
			}
		}
		if clearCart {
			if err := tx.Where("user_id = ?", order.UserID).Delete(&models.CartItem{}).Error; err != nil {
				return fmt.Errorf("failed to clear cart: %w", err)
			}
		}
		return nil
	})
}

// MarkPaid transitions pending -> paid as a compare-and-set. It returns
// false without mutating anything when the payment status already moved,
// which absorbs duplicate gateway notifications.
func (r *GORMOrderRepository) MarkPaid(id, gatewayTxnID string, paidAt time.Time) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"order_status":   models.OrderStatusProcessing,
			"gateway_txn_id": gatewayTxnID,
			"paid_at":        paidAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark order %s paid: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed transitions pending -> failed/cancelled and restores the stock
// reserved at checkout, all in one transaction. The compare-and-set on
// payment_status makes repeated failure callbacks a no-op.
func (r *GORMOrderRepository) MarkFailed(id string) (bool, error) {
	changed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusFailed,
				"order_status":   models.OrderStatusCancelled,
				"cancel_reason":  "payment failed",
				"cancelled_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark order %s failed: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return restoreOrderStock(tx, id)
	})
	return changed, err
}

// Cancel transitions an order to cancelled and restores its stock. The
// status guard in the WHERE clause closes the race against a concurrent
// transition to shipping.
func (r *GORMOrderRepository) Cancel(id, reason string) (bool, error) {
	changed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND order_status IN ?", id, []models.OrderStatus{
				models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusConfirmed,
			}).
			Updates(map[string]interface{}{
				"order_status":  models.OrderStatusCancelled,
				"cancel_reason": reason,
				"cancelled_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return restoreOrderStock(tx, id)
	})
	return changed, err
}

func restoreOrderStock(tx *gorm.DB, orderID string) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to load items for order %s: %w", orderID, err)
	}
	for _, item := range items {
		if err := incrementStock(tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus applies an admin status transition, stamping shipped_at and
// delivered_at the first time those states are reached.
func (r *GORMOrderRepository) UpdateStatus(id string, status models.OrderStatus) error {
	updates := map[string]interface{}{"order_status": status}
	now := time.Now()
	switch status {
	case models.OrderStatusShipping:
		updates["shipped_at"] = gorm.Expr("COALESCE(shipped_at, ?)", now)
	case models.OrderStatusDelivered:
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", now)
	}
	res := r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}
