package models

import "time"

// CartItem is one line in a user's cart. PriceSnapshot is frozen when the
// item is added (and refreshed on quantity update); checkout charges the
// snapshot, not the live product price.
type CartItem struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string    `json:"user_id" gorm:"index:idx_cart_user_product,unique;type:varchar(36)" validate:"required"`
	ProductID     string    `json:"product_id" gorm:"index:idx_cart_user_product,unique;type:varchar(36)" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,gte=1"`
	PriceSnapshot float64   `json:"price_snapshot"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
