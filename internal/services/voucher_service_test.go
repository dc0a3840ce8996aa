package services_test

import (
	"testing"
	"time"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"
	"cuahang/internal/repositories"
	"cuahang/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVoucherFixture(t *testing.T) (*services.VoucherService, *repositories.MemoryStore) {
	t.Helper()
	store := repositories.NewMemoryStore()
	return services.NewVoucherService(store.Vouchers(), store.Orders()), store
}

func seedVoucher(t *testing.T, store *repositories.MemoryStore, v models.Voucher) models.Voucher {
	t.Helper()
	if v.StartDate.IsZero() {
		v.StartDate = time.Now().Add(-time.Hour)
	}
	if v.EndDate.IsZero() {
		v.EndDate = time.Now().Add(time.Hour)
	}
	require.NoError(t, store.CreateVoucher(&v))
	return v
}

func TestVoucherValidate_Success(t *testing.T) {
	service, store := newVoucherFixture(t)
	seedVoucher(t, store, models.Voucher{
		Code: "SALE10", Type: models.VoucherTypeDiscount, DiscountPercent: 10, IsActive: true,
	})

	voucher, err := service.Validate("sale10", "user-1", 100000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "SALE10", voucher.Code) // lookup is case-insensitive
}

func TestVoucherValidate_NotFound(t *testing.T) {
	service, _ := newVoucherFixture(t)

	_, err := service.Validate("NOPE", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherNotFound)
}

func TestVoucherValidate_Inactive(t *testing.T) {
	service, store := newVoucherFixture(t)
	seedVoucher(t, store, models.Voucher{Code: "OFF", Type: models.VoucherTypeDiscount, DiscountPercent: 5, IsActive: false})

	_, err := service.Validate("OFF", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherInactive)
}

func TestVoucherValidate_ValidityWindow(t *testing.T) {
	service, store := newVoucherFixture(t)
	seedVoucher(t, store, models.Voucher{
		Code: "FUTURE", Type: models.VoucherTypeDiscount, DiscountPercent: 5, IsActive: true,
		StartDate: time.Now().Add(time.Hour), EndDate: time.Now().Add(2 * time.Hour),
	})
	seedVoucher(t, store, models.Voucher{
		Code: "PAST", Type: models.VoucherTypeDiscount, DiscountPercent: 5, IsActive: true,
		StartDate: time.Now().Add(-2 * time.Hour), EndDate: time.Now().Add(-time.Hour),
	})

	_, err := service.Validate("FUTURE", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherNotYetValid)

	_, err = service.Validate("PAST", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherExpired)
}

func TestVoucherValidate_LimitReached(t *testing.T) {
	service, store := newVoucherFixture(t)
	limit := 5
	seedVoucher(t, store, models.Voucher{
		Code: "MAXED", Type: models.VoucherTypeDiscount, DiscountPercent: 5, IsActive: true,
		UsageLimit: &limit, UsedCount: 5,
	})

	_, err := service.Validate("MAXED", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherLimitReached)
}

func TestVoucherValidate_BoundToAnotherUser(t *testing.T) {
	service, store := newVoucherFixture(t)
	owner := "user-2"
	seedVoucher(t, store, models.Voucher{
		Code: "PERSONAL", Type: models.VoucherTypeDiscount, DiscountPercent: 5, IsActive: true, UserID: &owner,
	})

	_, err := service.Validate("PERSONAL", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherNotEligible)

	_, err = service.Validate("PERSONAL", "user-2", 100000, time.Now())
	assert.NoError(t, err)
}

func TestVoucherValidate_MinOrderAmount(t *testing.T) {
	service, store := newVoucherFixture(t)
	seedVoucher(t, store, models.Voucher{
		Code: "BIG", Type: models.VoucherTypeDiscount, DiscountPercent: 5, IsActive: true, MinOrderAmount: 500000,
	})

	_, err := service.Validate("BIG", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherMinAmount)

	_, err = service.Validate("BIG", "user-1", 500000, time.Now())
	assert.NoError(t, err)
}

func TestVoucherValidate_AlreadyUsedAcrossHistory(t *testing.T) {
	service, store := newVoucherFixture(t)
	voucher := seedVoucher(t, store, models.Voucher{
		Code: "ONCE", Type: models.VoucherTypeDiscount, DiscountPercent: 5, IsActive: true,
	})

	// A cancelled order referencing the voucher still counts as usage.
	order := &models.Order{
		ID: "order-1", OrderNumber: "ORD2501010001", UserID: "user-1",
		OrderStatus: models.OrderStatusCancelled, PaymentStatus: models.PaymentStatusFailed,
		DiscountVoucherID: &voucher.ID,
	}
	require.NoError(t, store.CreateCheckout(order, false))

	_, err := service.Validate("ONCE", "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrVoucherAlreadyUsed)

	// A different user is unaffected.
	_, err = service.Validate("ONCE", "user-2", 100000, time.Now())
	assert.NoError(t, err)
}

func TestResolveForOrder_OnePerType(t *testing.T) {
	service, store := newVoucherFixture(t)
	seedVoucher(t, store, models.Voucher{Code: "SALE10", Type: models.VoucherTypeDiscount, DiscountPercent: 10, IsActive: true})
	seedVoucher(t, store, models.Voucher{Code: "SALE20", Type: models.VoucherTypeDiscount, DiscountPercent: 20, IsActive: true})
	seedVoucher(t, store, models.Voucher{Code: "FREESHIP", Type: models.VoucherTypeFreeShip, IsActive: true})

	discount, freeShip, err := service.ResolveForOrder([]string{"SALE10", "FREESHIP"}, "user-1", 100000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "SALE10", discount.Code)
	assert.Equal(t, "FREESHIP", freeShip.Code)

	_, _, err = service.ResolveForOrder([]string{"SALE10", "SALE20"}, "user-1", 100000, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrDuplicateVoucherType)
}

func TestCreateVoucher_RejectsBadDefinitions(t *testing.T) {
	service, _ := newVoucherFixture(t)

	err := service.CreateVoucher(&models.Voucher{
		Code: "BAD", Type: models.VoucherTypeDiscount, DiscountPercent: 0,
		StartDate: time.Now(), EndDate: time.Now().Add(time.Hour),
	})
	assert.Error(t, err)

	err = service.CreateVoucher(&models.Voucher{
		Code: "BADWINDOW", Type: models.VoucherTypeDiscount, DiscountPercent: 10,
		StartDate: time.Now(), EndDate: time.Now().Add(-time.Hour),
	})
	assert.Error(t, err)
}
