package repositories

import (
	"cuahang/internal/models"
)

// VoucherRepository defines the interface for voucher data access.
// Redeem increments used_count atomically and fails with
// apperrors.ErrVoucherLimitReached once the usage limit is hit.
type VoucherRepository interface {
	GetAll() ([]models.Voucher, error)
	GetByID(id string) (*models.Voucher, error)
	FindByCode(code string) (*models.Voucher, error)
	Create(voucher *models.Voucher) error
	Update(voucher *models.Voucher) error
	Redeem(id string) error
}
