package repositories

import (
	"cuahang/internal/models"
)

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	GetItems(userID string) ([]models.CartItem, error)
	GetItem(userID, productID string) (*models.CartItem, error)
	Upsert(item *models.CartItem) error
	Remove(userID, productID string) error
	Clear(userID string) error
}
