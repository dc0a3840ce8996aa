package repositories

import (
	"sort"
	"strings"
	"sync"
	"time"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of ProductRepository,
// CartRepository, VoucherRepository and OrderRepository behind a single
// mutex, so the multi-entity checkout unit of work is atomic the same way
// the GORM transaction makes it atomic. Used by tests and local mode.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]models.Product
	carts    map[string][]models.CartItem // keyed by userID
	vouchers map[string]models.Voucher
	orders   map[string]models.Order
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]models.Product),
		carts:    make(map[string][]models.CartItem),
		vouchers: make(map[string]models.Voucher),
		orders:   make(map[string]models.Order),
	}
}

// --- ProductRepository ---

func (s *MemoryStore) GetAll() ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) GetByID(id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "product_not_found", "product with ID %s not found", id)
	}
	return &p, nil
}

func (s *MemoryStore) Create(product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryStore) Update(product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return apperrors.Newf(apperrors.KindNotFound, "product_not_found", "product with ID %s not found for update", product.ID)
	}
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return apperrors.Newf(apperrors.KindNotFound, "product_not_found", "product with ID %s not found for deletion", id)
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) DecrementStock(id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrementStockLocked(id, qty)
}

func (s *MemoryStore) IncrementStock(id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementStockLocked(id, qty)
}

func (s *MemoryStore) decrementStockLocked(id string, qty int) error {
	p, ok := s.products[id]
	if !ok || p.Stock < qty {
		return apperrors.Newf(apperrors.KindBusinessRule, "out_of_stock", "insufficient stock for product %s", id)
	}
	p.Stock -= qty
	s.products[id] = p
	return nil
}

func (s *MemoryStore) incrementStockLocked(id string, qty int) error {
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	p.Stock += qty
	s.products[id] = p
	return nil
}

// --- CartRepository ---

func (s *MemoryStore) GetItems(userID string) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.CartItem, len(s.carts[userID]))
	copy(items, s.carts[userID])
	return items, nil
}

func (s *MemoryStore) GetItem(userID, productID string) (*models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.carts[userID] {
		if item.ProductID == productID {
			found := item
			return &found, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Upsert(item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	items := s.carts[item.UserID]
	for i, existing := range items {
		if existing.ProductID == item.ProductID {
			item.ID = existing.ID
			item.CreatedAt = existing.CreatedAt
			items[i] = *item
			return nil
		}
	}
	item.CreatedAt = time.Now()
	s.carts[item.UserID] = append(items, *item)
	return nil
}

func (s *MemoryStore) Remove(userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	for i, item := range items {
		if item.ProductID == productID {
			s.carts[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Clear(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

// --- VoucherRepository ---

func (s *MemoryStore) GetAllVouchers() ([]models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vouchers := make([]models.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		vouchers = append(vouchers, v)
	}
	sort.Slice(vouchers, func(i, j int) bool { return vouchers[i].ID < vouchers[j].ID })
	return vouchers, nil
}

func (s *MemoryStore) GetVoucherByID(id string) (*models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[id]
	if !ok {
		return nil, apperrors.ErrVoucherNotFound
	}
	return &v, nil
}

func (s *MemoryStore) FindByCode(code string) (*models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code = strings.ToUpper(code)
	for _, v := range s.vouchers {
		if v.Code == code {
			found := v
			return &found, nil
		}
	}
	return nil, apperrors.ErrVoucherNotFound
}

func (s *MemoryStore) CreateVoucher(voucher *models.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if voucher.ID == "" {
		voucher.ID = uuid.New().String()
	}
	voucher.Code = strings.ToUpper(voucher.Code)
	s.vouchers[voucher.ID] = *voucher
	return nil
}

func (s *MemoryStore) UpdateVoucher(voucher *models.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vouchers[voucher.ID]; !ok {
		return apperrors.ErrVoucherNotFound
	}
	voucher.Code = strings.ToUpper(voucher.Code)
	s.vouchers[voucher.ID] = *voucher
	return nil
}

func (s *MemoryStore) Redeem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redeemLocked(id)
}

func (s *MemoryStore) redeemLocked(id string) error {
	v, ok := s.vouchers[id]
	if !ok {
		return apperrors.ErrVoucherNotFound
	}
	if v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit {
		return apperrors.ErrVoucherLimitReached
	}
	v.UsedCount++
	s.vouchers[id] = v
	return nil
}

// --- OrderRepository ---

func (s *MemoryStore) GetAllOrders() ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *MemoryStore) GetOrderByID(id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return &o, nil
}

func (s *MemoryStore) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.OrderNumber == orderNumber {
			found := o
			return &found, nil
		}
	}
	return nil, apperrors.ErrOrderNotFound
}

func (s *MemoryStore) GetByUser(userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *MemoryStore) OrderNumberExists(orderNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) HasUserRedeemedVoucher(userID, voucherID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasUserRedeemedVoucherLocked(userID, voucherID, ""), nil
}

func (s *MemoryStore) hasUserRedeemedVoucherLocked(userID, voucherID, excludeOrderID string) bool {
	for _, o := range s.orders {
		if o.UserID != userID || o.ID == excludeOrderID {
			continue
		}
		for _, id := range o.VoucherIDs() {
			if id == voucherID {
				return true
			}
		}
	}
	return false
}

// CreateCheckout applies the whole checkout under one lock. Mutations are
// staged against copies and only written back once every step has passed,
// mirroring the rollback semantics of the GORM transaction.
func (s *MemoryStore) CreateCheckout(order *models.Order, clearCart bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]models.Product, len(order.Items))
	for _, item := range order.Items {
		p, ok := s.products[item.ProductID]
		if !ok || p.Stock < item.Quantity {
			return apperrors.Newf(apperrors.KindBusinessRule, "out_of_stock", "insufficient stock for product %s", item.ProductID)
		}
		p.Stock -= item.Quantity
		staged[p.ID] = p
	}
	stagedVouchers := make(map[string]models.Voucher)
	for _, voucherID := range order.VoucherIDs() {
		if s.hasUserRedeemedVoucherLocked(order.UserID, voucherID, order.ID) {
			return apperrors.ErrVoucherAlreadyUsed
		}
		v, ok := s.vouchers[voucherID]
		if !ok {
			return apperrors.ErrVoucherNotFound
		}
		if v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit {
			return apperrors.ErrVoucherLimitReached
		}
		v.UsedCount++
		stagedVouchers[v.ID] = v
	}

	for id, p := range staged {
		s.products[id] = p
	}
	for id, v := range stagedVouchers {
		s.vouchers[id] = v
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	s.orders[order.ID] = *order
	if clearCart {
		delete(s.carts, order.UserID)
	}
	return nil
}

func (s *MemoryStore) MarkPaid(id, gatewayTxnID string, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = models.PaymentStatusPaid
	o.OrderStatus = models.OrderStatusProcessing
	o.GatewayTxnID = gatewayTxnID
	o.PaidAt = &paidAt
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	return true, nil
}

func (s *MemoryStore) MarkFailed(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	now := time.Now()
	o.PaymentStatus = models.PaymentStatusFailed
	o.OrderStatus = models.OrderStatusCancelled
	o.CancelReason = "payment failed"
	o.CancelledAt = &now
	o.UpdatedAt = now
	s.orders[id] = o
	for _, item := range o.Items {
		s.incrementStockLocked(item.ProductID, item.Quantity)
	}
	return true, nil
}

func (s *MemoryStore) Cancel(id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !o.OrderStatus.Cancellable() {
		return false, nil
	}
	now := time.Now()
	o.OrderStatus = models.OrderStatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	s.orders[id] = o
	for _, item := range o.Items {
		s.incrementStockLocked(item.ProductID, item.Quantity)
	}
	return true, nil
}

func (s *MemoryStore) UpdateStatus(id string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	now := time.Now()
	o.OrderStatus = status
	switch status {
	case models.OrderStatusShipping:
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case models.OrderStatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}
	o.UpdatedAt = now
	s.orders[id] = o
	return nil
}

// --- interface views ---
//
// GetAll/GetByID/Create/Update collide across the per-entity repository
// interfaces, so MemoryStore exposes each interface through a thin view.
// Product and cart methods use the canonical names directly.

// Products returns the store viewed as a ProductRepository.
func (s *MemoryStore) Products() ProductRepository { return s }

// Carts returns the store viewed as a CartRepository.
func (s *MemoryStore) Carts() CartRepository { return s }

// Vouchers returns the store viewed as a VoucherRepository.
func (s *MemoryStore) Vouchers() VoucherRepository { return memoryVoucherView{s} }

// Orders returns the store viewed as an OrderRepository.
func (s *MemoryStore) Orders() OrderRepository { return memoryOrderView{s} }

type memoryVoucherView struct{ *MemoryStore }

func (v memoryVoucherView) GetAll() ([]models.Voucher, error)         { return v.GetAllVouchers() }
func (v memoryVoucherView) GetByID(id string) (*models.Voucher, error) { return v.GetVoucherByID(id) }
func (v memoryVoucherView) Create(voucher *models.Voucher) error       { return v.CreateVoucher(voucher) }
func (v memoryVoucherView) Update(voucher *models.Voucher) error       { return v.UpdateVoucher(voucher) }

type memoryOrderView struct{ *MemoryStore }

func (o memoryOrderView) GetAll() ([]models.Order, error)          { return o.GetAllOrders() }
func (o memoryOrderView) GetByID(id string) (*models.Order, error) { return o.GetOrderByID(id) }
