package services

import (
	"fmt"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"
	"cuahang/internal/repositories"
)

// CartService handles business logic for the shopping cart.
type CartService struct {
	cartRepo    repositories.CartRepository
	productRepo repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(cartRepo repositories.CartRepository, productRepo repositories.ProductRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// GetCart retrieves the user's cart items.
func (s *CartService) GetCart(userID string) ([]models.CartItem, error) {
	return s.cartRepo.GetItems(userID)
}

// AddItem adds a product to the cart, freezing the current product price as
// the line's snapshot. Adding a product already in the cart accumulates the
// quantity and refreshes the snapshot.
func (s *CartService) AddItem(userID, productID string, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, apperrors.New(apperrors.KindValidation, "invalid_quantity", "quantity must be at least 1")
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperrors.Newf(apperrors.KindBusinessRule, "product_unavailable", "product %s is not available", product.Name)
	}
	if product.Stock < quantity {
		return nil, apperrors.Newf(apperrors.KindBusinessRule, "out_of_stock", "insufficient stock for product %s", product.Name)
	}

	item := &models.CartItem{
		UserID:        userID,
		ProductID:     productID,
		Quantity:      quantity,
		PriceSnapshot: product.Price,
	}
	existing, err := s.cartRepo.GetItem(userID, productID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		item.Quantity += existing.Quantity
	}
	if err := s.cartRepo.Upsert(item); err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}
	return item, nil
}

// UpdateQuantity sets the quantity of a cart line and refreshes its price
// snapshot to the live product price. Quantity 0 removes the line.
func (s *CartService) UpdateQuantity(userID, productID string, quantity int) error {
	if quantity < 0 {
		return apperrors.New(apperrors.KindValidation, "invalid_quantity", "quantity must not be negative")
	}
	if quantity == 0 {
		return s.cartRepo.Remove(userID, productID)
	}
	existing, err := s.cartRepo.GetItem(userID, productID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.Newf(apperrors.KindNotFound, "cart_item_not_found", "product %s is not in the cart", productID)
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return err
	}
	existing.Quantity = quantity
	existing.PriceSnapshot = product.Price
	return s.cartRepo.Upsert(existing)
}

// RemoveItem removes a product line from the cart.
func (s *CartService) RemoveItem(userID, productID string) error {
	return s.cartRepo.Remove(userID, productID)
}

// ClearCart empties the user's cart.
func (s *CartService) ClearCart(userID string) error {
	return s.cartRepo.Clear(userID)
}
