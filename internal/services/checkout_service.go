package services

import (
	"fmt"
	"math/rand"
	"time"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"
	"cuahang/internal/repositories"

	"github.com/google/uuid"
)

// orderNumberAttempts bounds the retry loop for order number generation.
// A collision on a 4-digit suffix within one day is unlikely but possible.
const orderNumberAttempts = 10

// ShippingInfo carries the customer-facing fields captured at checkout.
type ShippingInfo struct {
	CustomerName    string `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone   string `json:"customer_phone" validate:"required,min=8,max=20"`
	ShippingAddress string `json:"shipping_address" validate:"required,min=5,max=255"`
	Note            string `json:"note" validate:"omitempty,max=500"`
	PaymentMethod   string `json:"payment_method" validate:"required,oneof=cod vnpay zalopay"`
}

// CheckoutService converts a cart or a buy-now intent into a durable order
// with its inventory and voucher side effects committed atomically.
type CheckoutService struct {
	orderRepo      repositories.OrderRepository
	productRepo    repositories.ProductRepository
	cartRepo       repositories.CartRepository
	voucherService *VoucherService
	notifier       Notifier
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	cartRepo repositories.CartRepository,
	voucherService *VoucherService,
	notifier Notifier,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:      orderRepo,
		productRepo:    productRepo,
		cartRepo:       cartRepo,
		voucherService: voucherService,
		notifier:       notifier,
	}
}

// CreateFromCart places an order from the user's cart. The cart is cleared
// as part of the checkout transaction.
func (s *CheckoutService) CreateFromCart(userID string, shipping ShippingInfo, voucherCodes []string) (*models.Order, error) {
	items, err := s.cartRepo.GetItems(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, apperrors.ErrEmptyCart
	}
	return s.place(userID, items, shipping, voucherCodes, true)
}

// BuyNow places a single-product order without touching the cart. The price
// is the live product price at the moment of purchase.
func (s *CheckoutService) BuyNow(userID, productID string, quantity int, shipping ShippingInfo, voucherCodes []string) (*models.Order, error) {
	if quantity <= 0 {
		return nil, apperrors.New(apperrors.KindValidation, "invalid_quantity", "quantity must be positive")
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	item := models.CartItem{
		UserID:        userID,
		ProductID:     productID,
		Quantity:      quantity,
		PriceSnapshot: product.Price,
	}
	return s.place(userID, []models.CartItem{item}, shipping, voucherCodes, false)
}

// place is the shared checkout path. Steps 1-4 are pure validation with no
// side effects; the commit at the end is all-or-nothing.
func (s *CheckoutService) place(userID string, items []models.CartItem, shipping ShippingInfo, voucherCodes []string, clearCart bool) (*models.Order, error) {
	// Re-check availability against the live catalog. Prices stay frozen at
	// their snapshots; only existence, active flag and stock are re-read.
	products := make(map[string]*models.Product, len(items))
	for _, item := range items {
		product, err := s.productRepo.GetByID(item.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, apperrors.Newf(apperrors.KindBusinessRule, "product_unavailable", "product %s is not available", product.Name)
		}
		if product.Stock < item.Quantity {
			return nil, apperrors.Newf(apperrors.KindBusinessRule, "out_of_stock", "insufficient stock for product %s (requested: %d, available: %d)", product.Name, item.Quantity, product.Stock)
		}
		products[item.ProductID] = product
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.PriceSnapshot * float64(item.Quantity)
	}

	discountVoucher, freeShipVoucher, err := s.voucherService.ResolveForOrder(voucherCodes, userID, subtotal, time.Now())
	if err != nil {
		return nil, err
	}

	pricing := Price(items, discountVoucher, freeShipVoucher)

	orderNumber, err := s.generateOrderNumber()
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		OrderNumber:     orderNumber,
		UserID:          userID,
		CustomerName:    shipping.CustomerName,
		CustomerPhone:   shipping.CustomerPhone,
		ShippingAddress: shipping.ShippingAddress,
		Note:            shipping.Note,
		PaymentMethod:   shipping.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		OrderStatus:     models.OrderStatusPending,
		Subtotal:        pricing.Subtotal,
		ShippingFee:     pricing.ShippingFee,
		Discount:        pricing.Discount,
		Total:           pricing.Total,
	}
	if discountVoucher != nil {
		order.DiscountVoucherID = &discountVoucher.ID
	}
	if freeShipVoucher != nil {
		order.FreeShipVoucherID = &freeShipVoucher.ID
	}
	for _, item := range items {
		product := products[item.ProductID]
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Price:       item.PriceSnapshot,
			Quantity:    item.Quantity,
			Subtotal:    item.PriceSnapshot * float64(item.Quantity),
		})
	}

	if err := s.orderRepo.CreateCheckout(order, clearCart); err != nil {
		return nil, err
	}

	notify(s.notifier, models.NotificationEvent{
		UserID:  userID,
		Type:    models.NotificationOrderCreated,
		Title:   "New order",
		Message: fmt.Sprintf("Order %s placed for %.0f", order.OrderNumber, order.Total),
		OrderID: order.ID,
	})
	return order, nil
}

// generateOrderNumber produces ORD + yymmdd + a 4-digit random suffix,
// retrying against the order ledger on collision.
func (s *CheckoutService) generateOrderNumber() (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		candidate := fmt.Sprintf("ORD%s%04d", time.Now().Format("060102"), rand.Intn(10000))
		exists, err := s.orderRepo.OrderNumberExists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check order number: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperrors.New(apperrors.KindConflict, "order_number_exhausted", "could not generate a unique order number")
}

// GetOrdersByUser lists the user's orders, newest first.
func (s *CheckoutService) GetOrdersByUser(userID string) ([]models.Order, error) {
	return s.orderRepo.GetByUser(userID)
}

// GetOrder retrieves an order and verifies ownership.
func (s *CheckoutService) GetOrder(userID, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrNotOrderOwner
	}
	return order, nil
}

// Cancel cancels the user's own order, restoring reserved stock. Permitted
// only before shipping. Voucher usage is not given back.
func (s *CheckoutService) Cancel(userID, orderID, reason string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrNotOrderOwner
	}
	if !order.OrderStatus.Cancellable() {
		return nil, apperrors.Newf(apperrors.KindBusinessRule, "not_cancellable", "order %s can no longer be cancelled (status: %s)", order.OrderNumber, order.OrderStatus)
	}
	changed, err := s.orderRepo.Cancel(orderID, reason)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race against a concurrent transition.
		return nil, apperrors.Newf(apperrors.KindBusinessRule, "not_cancellable", "order %s can no longer be cancelled", order.OrderNumber)
	}
	notify(s.notifier, models.NotificationEvent{
		UserID:  userID,
		Type:    models.NotificationOrderCancelled,
		Title:   "Order cancelled",
		Message: fmt.Sprintf("Order %s was cancelled: %s", order.OrderNumber, reason),
		OrderID: order.ID,
	})
	return s.orderRepo.GetByID(orderID)
}

// UpdateStatus applies an admin status transition following the order
// lifecycle. Cancellation goes through the compensating Cancel path so stock
// is restored.
func (s *CheckoutService) UpdateStatus(orderID string, next models.OrderStatus) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if !order.OrderStatus.CanTransition(next) {
		return nil, apperrors.Newf(apperrors.KindBusinessRule, "invalid_transition", "cannot move order %s from %s to %s", order.OrderNumber, order.OrderStatus, next)
	}
	if next == models.OrderStatusCancelled {
		if _, err := s.orderRepo.Cancel(orderID, "cancelled by admin"); err != nil {
			return nil, err
		}
	} else if err := s.orderRepo.UpdateStatus(orderID, next); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(orderID)
}
