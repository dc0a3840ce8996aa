package repositories

import (
	"cuahang/internal/models"
)

// ProductRepository defines the interface for product data access.
// Stock mutations are atomic: DecrementStock is a single conditional update
// that fails with apperrors.ErrOutOfStock instead of going negative.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
	DecrementStock(id string, qty int) error
	IncrementStock(id string, qty int) error
}
