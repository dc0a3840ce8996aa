package services

import (
	"fmt"
	"time"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"
	"cuahang/internal/repositories"
)

// VoucherService handles voucher validation and administration.
type VoucherService struct {
	voucherRepo repositories.VoucherRepository
	orderRepo   repositories.OrderRepository
}

// NewVoucherService creates a new VoucherService.
func NewVoucherService(voucherRepo repositories.VoucherRepository, orderRepo repositories.OrderRepository) *VoucherService {
	return &VoucherService{
		voucherRepo: voucherRepo,
		orderRepo:   orderRepo,
	}
}

// Validate runs the full eligibility ladder for a voucher code against a
// prospective order amount. The already-used check consults the user's whole
// order history: one voucher per user, ever. This is a read-only pre-check;
// checkout re-verifies usage inside its transaction before redeeming.
func (s *VoucherService) Validate(code, userID string, orderAmount float64, now time.Time) (*models.Voucher, error) {
	voucher, err := s.voucherRepo.FindByCode(code)
	if err != nil {
		return nil, err
	}
	if !voucher.IsActive {
		return nil, apperrors.ErrVoucherInactive
	}
	if now.Before(voucher.StartDate) {
		return nil, apperrors.ErrVoucherNotYetValid
	}
	if now.After(voucher.EndDate) {
		return nil, apperrors.ErrVoucherExpired
	}
	if voucher.UsageLimit != nil && voucher.UsedCount >= *voucher.UsageLimit {
		return nil, apperrors.ErrVoucherLimitReached
	}
	if voucher.UserID != nil && *voucher.UserID != userID {
		return nil, apperrors.ErrVoucherNotEligible
	}
	if orderAmount < voucher.MinOrderAmount {
		return nil, apperrors.Newf(apperrors.KindBusinessRule, "voucher_min_amount",
			"voucher %s requires a minimum order of %.0f", voucher.Code, voucher.MinOrderAmount)
	}
	used, err := s.orderRepo.HasUserRedeemedVoucher(userID, voucher.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check voucher usage: %w", err)
	}
	if used {
		return nil, apperrors.ErrVoucherAlreadyUsed
	}
	return voucher, nil
}

// ResolveForOrder validates every supplied code and buckets the results into
// at most one discount voucher and one free-ship voucher. A second voucher of
// the same type fails the whole set.
func (s *VoucherService) ResolveForOrder(codes []string, userID string, orderAmount float64, now time.Time) (discount, freeShip *models.Voucher, err error) {
	for _, code := range codes {
		voucher, err := s.Validate(code, userID, orderAmount, now)
		if err != nil {
			return nil, nil, fmt.Errorf("voucher %s: %w", code, err)
		}
		switch voucher.Type {
		case models.VoucherTypeDiscount:
			if discount != nil {
				return nil, nil, apperrors.ErrDuplicateVoucherType
			}
			discount = voucher
		case models.VoucherTypeFreeShip:
			if freeShip != nil {
				return nil, nil, apperrors.ErrDuplicateVoucherType
			}
			freeShip = voucher
		default:
			return nil, nil, apperrors.Newf(apperrors.KindSystem, "unknown_voucher_type", "voucher %s has unknown type %s", voucher.Code, voucher.Type)
		}
	}
	return discount, freeShip, nil
}

// GetAllVouchers lists every voucher (admin).
func (s *VoucherService) GetAllVouchers() ([]models.Voucher, error) {
	return s.voucherRepo.GetAll()
}

// CreateVoucher creates a voucher (admin).
func (s *VoucherService) CreateVoucher(voucher *models.Voucher) error {
	if voucher.Type == models.VoucherTypeDiscount && (voucher.DiscountPercent < 1 || voucher.DiscountPercent > 100) {
		return apperrors.New(apperrors.KindValidation, "invalid_discount_percent", "discount percent must be between 1 and 100")
	}
	if !voucher.EndDate.After(voucher.StartDate) {
		return apperrors.New(apperrors.KindValidation, "invalid_validity_window", "end date must be after start date")
	}
	return s.voucherRepo.Create(voucher)
}

// UpdateVoucher updates a voucher definition (admin).
func (s *VoucherService) UpdateVoucher(voucher *models.Voucher) error {
	return s.voucherRepo.Update(voucher)
}
