package repositories

import (
	"fmt"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all products from the database.
func (r *GORMProductRepository) GetAll() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.Newf(apperrors.KindNotFound, "product_not_found", "product with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update updates an existing product in the database.
func (r *GORMProductRepository) Update(product *models.Product) error {
	res := r.db.Save(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "product_not_found", "product with ID %s not found for update", product.ID)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(id string) error {
	res := r.db.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "product_not_found", "product with ID %s not found for deletion", id)
	}
	return nil
}

// DecrementStock decrements stock by qty as a single conditional update.
// The WHERE clause guards sufficiency, so two concurrent checkouts racing
// for the last units cannot both win.
func (r *GORMProductRepository) DecrementStock(id string, qty int) error {
	return decrementStock(r.db, id, qty)
}

// IncrementStock gives reserved stock back, e.g. after a failed payment.
func (r *GORMProductRepository) IncrementStock(id string, qty int) error {
	return incrementStock(r.db, id, qty)
}

// decrementStock and incrementStock are shared with the checkout and payment
// transactions in GORMOrderRepository, which run them against a tx handle.
func decrementStock(db *gorm.DB, id string, qty int) error {
	res := db.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to decrement stock for product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.KindBusinessRule, "out_of_stock", "insufficient stock for product %s", id)
	}
	return nil
}

func incrementStock(db *gorm.DB, id string, qty int) error {
	res := db.Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock for product %s: %w", id, res.Error)
	}
	return nil
}
