package repositories

import (
	"fmt"
	"strings"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMVoucherRepository is a GORM implementation of VoucherRepository.
type GORMVoucherRepository struct {
	db *gorm.DB
}

// NewGORMVoucherRepository creates a new instance of GORMVoucherRepository.
func NewGORMVoucherRepository(db *gorm.DB) *GORMVoucherRepository {
	return &GORMVoucherRepository{
		db: db,
	}
}

// GetAll retrieves all vouchers.
func (r *GORMVoucherRepository) GetAll() ([]models.Voucher, error) {
	var vouchers []models.Voucher
	if err := r.db.Find(&vouchers).Error; err != nil {
		return nil, fmt.Errorf("failed to get all vouchers: %w", err)
	}
	return vouchers, nil
}

// GetByID retrieves a voucher by its ID.
func (r *GORMVoucherRepository) GetByID(id string) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.First(&voucher, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("failed to get voucher by ID %s: %w", id, err)
	}
	return &voucher, nil
}

// FindByCode retrieves a voucher by its code. Codes are case-insensitive;
// they are stored uppercased and lookups uppercase the input.
func (r *GORMVoucherRepository) FindByCode(code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.First(&voucher, "code = ?", strings.ToUpper(code)).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("failed to find voucher by code %s: %w", code, err)
	}
	return &voucher, nil
}

// Create creates a new voucher.
func (r *GORMVoucherRepository) Create(voucher *models.Voucher) error {
	if voucher.ID == "" {
		voucher.ID = uuid.New().String()
	}
	voucher.Code = strings.ToUpper(voucher.Code)
	if err := r.db.Create(voucher).Error; err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

// Update updates an existing voucher.
func (r *GORMVoucherRepository) Update(voucher *models.Voucher) error {
	voucher.Code = strings.ToUpper(voucher.Code)
	res := r.db.Save(voucher)
	if res.Error != nil {
		return fmt.Errorf("failed to update voucher: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrVoucherNotFound
	}
	return nil
}

// Redeem increments used_count atomically. The WHERE clause enforces the
// usage limit so two concurrent redemptions cannot both take the last slot.
func (r *GORMVoucherRepository) Redeem(id string) error {
	return redeemVoucher(r.db, id)
}

// redeemVoucher is shared with the checkout transaction in
// GORMOrderRepository, which runs it against a tx handle.
func redeemVoucher(db *gorm.DB, id string) error {
	res := db.Model(&models.Voucher{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to redeem voucher %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrVoucherLimitReached
	}
	return nil
}
