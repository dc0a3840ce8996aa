package repositories

import (
	"fmt"

	"cuahang/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db: db,
	}
}

// GetItems retrieves all cart items for a user.
func (r *GORMCartRepository) GetItems(userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get cart items for user %s: %w", userID, err)
	}
	return items, nil
}

// GetItem retrieves a single cart item by user and product.
func (r *GORMCartRepository) GetItem(userID, productID string) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return &item, nil
}

// Upsert inserts or replaces the cart line for (user, product).
func (r *GORMCartRepository) Upsert(item *models.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	existing, err := r.GetItem(item.UserID, item.ProductID)
	if err != nil {
		return err
	}
	if existing != nil {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
	}
	if err := r.db.Save(item).Error; err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

// Remove deletes one product line from a user's cart.
func (r *GORMCartRepository) Remove(userID, productID string) error {
	res := r.db.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove cart item: %w", res.Error)
	}
	return nil
}

// Clear empties a user's cart.
func (r *GORMCartRepository) Clear(userID string) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart for user %s: %w", userID, err)
	}
	return nil
}
